package block

// LoopBody is one discovered natural loop (spec section 4.4, stage 1):
// a head, its merged tails (back-edge sources sharing that head), the
// set of blocks reaching a tail without crossing the head, and the
// chosen exit.
type LoopBody struct {
	Head      *FlowBlock
	Tails     []*FlowBlock
	Body      map[*FlowBlock]bool
	Order     []*FlowBlock // Body's members in discovery order, head first
	Exit      *FlowBlock
	Container *LoopBody // immed_container: the nearest body enclosing Head, if any
}

func (lb *LoopBody) add(b *FlowBlock) {
	if lb.Body[b] {
		return
	}
	lb.Body[b] = true
	lb.Order = append(lb.Order, b)
}

// FindLoopBodies discovers one LoopBody per distinct head from the
// graph's back-edges (already marked IsBack by the caller that built
// g), merging multiple tails sharing a head (spec section 4.4,
// "multi-tail loops").
func FindLoopBodies(g *Graph) []*LoopBody {
	byHead := make(map[*FlowBlock]*LoopBody)
	var headOrder []*FlowBlock

	for _, blk := range g.Blocks {
		for _, e := range blk.Out {
			if !e.IsBack {
				continue
			}
			lb, ok := byHead[e.To]
			if !ok {
				lb = &LoopBody{Head: e.To, Body: map[*FlowBlock]bool{}}
				lb.add(e.To)
				byHead[e.To] = lb
				headOrder = append(headOrder, e.To)
			}
			lb.Tails = append(lb.Tails, blk)
			findBase(g, lb, blk)
		}
	}

	out := make([]*LoopBody, 0, len(headOrder))
	for _, h := range headOrder {
		out = append(out, byHead[h])
	}

	labelContainments(out)
	for _, lb := range out {
		findExit(g, lb)
		orderTails(lb)
		extend(g, lb)
	}
	return out
}

// labelContainments sets each body's immed_container to the smallest
// other discovered body whose Body set contains this body's head --
// the nearest enclosing loop, if this body is itself nested inside
// one (spec section 4.4, "labelContainments").
func labelContainments(bodies []*LoopBody) {
	for _, lb := range bodies {
		for _, candidate := range bodies {
			if candidate == lb || !candidate.Body[lb.Head] {
				continue
			}
			if lb.Container == nil || len(candidate.Body) < len(lb.Container.Body) {
				lb.Container = candidate
			}
		}
	}
}

// extend adds non-exit successors all of whose non-goto predecessors
// are already in the body, to a fixed point (spec section 4.4,
// "extend").
func extend(g *Graph, lb *LoopBody) {
	for changed := true; changed; {
		changed = false
		for _, blk := range g.Blocks {
			if lb.Body[blk] || blk == lb.Exit {
				continue
			}
			preds := predecessorsOf(g, blk)
			if len(preds) == 0 {
				continue
			}
			allIn := true
			for _, p := range preds {
				if !lb.Body[p] {
					allIn = false
					break
				}
			}
			if allIn {
				lb.add(blk)
				changed = true
			}
		}
	}
}

// findBase walks breadth-first backward from tail against the
// reversed non-goto edges, stopping at head, adding every block that
// reaches tail without crossing head.
func findBase(g *Graph, lb *LoopBody, tail *FlowBlock) {
	queue := []*FlowBlock{tail}
	lb.add(tail)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == lb.Head {
			continue
		}
		for _, p := range predecessorsOf(g, cur) {
			if lb.Body[p] {
				continue
			}
			lb.add(p)
			queue = append(queue, p)
		}
	}
}

// findExit picks the candidate exit preferring a tail's successor,
// then the head's, then an interior block's, bounding the choice to
// lie inside the immediate container's body if this loop is nested
// (spec section 4.4).
func findExit(g *Graph, lb *LoopBody) {
	try := func(b *FlowBlock) *FlowBlock {
		for _, e := range nonGotoOutEdges(b) {
			if lb.Body[e.To] {
				continue
			}
			if lb.Container != nil && !lb.Container.Body[e.To] {
				continue
			}
			return e.To
		}
		return nil
	}
	for _, t := range lb.Tails {
		if x := try(t); x != nil {
			lb.Exit = x
			return
		}
	}
	if x := try(lb.Head); x != nil {
		lb.Exit = x
		return
	}
	for _, b := range lb.Order {
		if b == lb.Head || isTail(lb, b) {
			continue
		}
		if x := try(b); x != nil {
			lb.Exit = x
			return
		}
	}
}

func isTail(lb *LoopBody, b *FlowBlock) bool {
	for _, t := range lb.Tails {
		if t == b {
			return true
		}
	}
	return false
}

// orderTails puts first the tail with an outgoing edge to the chosen
// exit (spec section 4.4's E3 scenario).
func orderTails(lb *LoopBody) {
	if lb.Exit == nil || len(lb.Tails) < 2 {
		return
	}
	var withExit, without []*FlowBlock
	for _, t := range lb.Tails {
		found := false
		for _, e := range nonGotoOutEdges(t) {
			if e.To == lb.Exit {
				found = true
				break
			}
		}
		if found {
			withExit = append(withExit, t)
		} else {
			without = append(without, t)
		}
	}
	lb.Tails = append(withExit, without...)
}

// EmitLikelyEdges returns the loop's back-edges in removal order:
// later tails (in lb.Tails order) emitted before earlier ones, so the
// tail most likely to carry the exit (ordered first by orderTails) is
// emitted last.
func (lb *LoopBody) EmitLikelyEdges() []*Edge {
	var out []*Edge
	for i := len(lb.Tails) - 1; i >= 0; i-- {
		for _, e := range lb.Tails[i].Out {
			if e.IsBack && e.To == lb.Head {
				out = append(out, e)
			}
		}
	}
	return out
}

// SetExitMarks labels exactly one out-edge reaching lb.Exit as the
// loop's exit edge, trying tails first, then the head, then interior
// blocks, in removal-priority order (spec section 4.4, "labelExitEdges").
func (lb *LoopBody) SetExitMarks() {
	if lb.Exit == nil {
		return
	}
	marked := false
	mark := func(b *FlowBlock) {
		if marked {
			return
		}
		for _, e := range b.Out {
			if e.To == lb.Exit && !e.IsGoto {
				e.IsExit = true
				marked = true
				return
			}
		}
	}
	for _, t := range lb.Tails {
		mark(t)
	}
	mark(lb.Head)
	for _, b := range lb.Order {
		if b == lb.Head || isTail(lb, b) {
			continue
		}
		mark(b)
	}
}
