package block

// MarkGotos traces a DAG over blocks in reverse postorder, opening
// each destination the first time a non-back edge reaches it and
// marking every later edge into an already-opened destination as a
// goto (spec section 4.4 stage 2, TraceDAG's "bad-edge selection").
// A self-loop edge (block branching to itself) is always a goto: its
// head is collapsed by ruleBlockInfLoop/ruleBlockDoWhile instead.
func MarkGotos(blocks []*FlowBlock) {
	order := reversePostorder(blocks)
	opened := make(map[*FlowBlock]bool, len(order))
	for _, blk := range order {
		for _, e := range blk.Out {
			if e.IsBack {
				continue
			}
			if e.From == e.To {
				e.IsGoto = true
				continue
			}
			if opened[e.To] {
				e.IsGoto = true
				continue
			}
			opened[e.To] = true
		}
	}
}

// reversePostorder returns blocks ordered by a depth-first postorder
// traversal over non-back edges, reversed, starting from every block
// with no in-edge among the given set (to cover disconnected roots)
// and falling back to the given order for anything left unvisited.
func reversePostorder(blocks []*FlowBlock) []*FlowBlock {
	inSet := make(map[*FlowBlock]bool, len(blocks))
	for _, b := range blocks {
		inSet[b] = true
	}
	visited := make(map[*FlowBlock]bool, len(blocks))
	var post []*FlowBlock
	var visit func(b *FlowBlock)
	visit = func(b *FlowBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range b.Out {
			if e.IsBack || e.From == e.To {
				continue
			}
			if inSet[e.To] {
				visit(e.To)
			}
		}
		post = append(post, b)
	}
	for _, b := range blocks {
		visit(b)
	}
	out := make([]*FlowBlock, len(post))
	for i, b := range post {
		out[len(post)-1-i] = b
	}
	return out
}
