package ssa

// Dominators computes the immediate dominator of every reachable block
// in g using the standard iterative (Cooper/Harvey/Kennedy)
// algorithm, which converges quickly even on the irreducible graphs
// spec section 4.2 calls out as something SSA construction must
// tolerate.
func Dominators(g *Graph) map[*BasicBlock]*BasicBlock {
	order, index := reversePostorder(g)
	idom := make(map[*BasicBlock]*BasicBlock, len(order))
	idom[g.Entry] = g.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == g.Entry {
				continue
			}
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, index, newIdom, p)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, g.Entry) // entry has no dominator, per convention
	return idom
}

func intersect(idom map[*BasicBlock]*BasicBlock, index map[*BasicBlock]int, a, b *BasicBlock) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder returns all reachable blocks in reverse-postorder
// and a lookup from block to its position in that order (the
// Cooper/Harvey/Kennedy "earlier in RPO dominates" numbering).
func reversePostorder(g *Graph) ([]*BasicBlock, map[*BasicBlock]int) {
	var post []*BasicBlock
	visited := make(map[*BasicBlock]bool)
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(g.Entry)

	order := make([]*BasicBlock, len(post))
	for i, b := range post {
		order[len(post)-1-i] = b
	}
	index := make(map[*BasicBlock]int, len(order))
	for i, b := range order {
		index[b] = i
	}
	return order, index
}

// DominanceFrontier computes, for every block, the set of blocks in
// its dominance frontier (spec section 4.2: "MULTIEQUAL operations
// materialize phis at dominance frontiers").
func DominanceFrontier(g *Graph, idom map[*BasicBlock]*BasicBlock) map[*BasicBlock][]*BasicBlock {
	df := make(map[*BasicBlock][]*BasicBlock)
	for _, b := range g.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			runner := p
			for runner != idom[b] && runner != nil {
				df[runner] = appendUnique(df[runner], b)
				runner = idom[runner]
			}
		}
	}
	return df
}

func appendUnique(list []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}
