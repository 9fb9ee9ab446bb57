package block

// CollapseStructure repeatedly matches and collapses patterns over
// g's block graph (spec section 4.4 stage 3) until no rule applies.
// loops supplies the LoopBody set discovered before tracing began; it
// is consulted by the loop-shaped rules only while a body's head is
// still an active block of g; once the head has been collapsed into a
// composite the body is skipped. It returns the number of dataflow-affecting
// condition negations applied, which callers should treat as "rerun
// dataflow actions" (spec section 4.4, "reported upstream").
func CollapseStructure(g *Graph, loops []*LoopBody) int {
	dataflowChanges := 0
	for {
		active := make(map[*FlowBlock]bool, len(g.Blocks))
		for _, b := range g.Blocks {
			active[b] = true
		}
		var live []*LoopBody
		for _, lb := range loops {
			if active[lb.Head] {
				live = append(live, lb)
			}
		}
		if ruleCheckSwitchSkips(g) {
			continue
		}
		if ruleBlockSwitch(g) {
			continue
		}
		if ruleCaseFallthru(g) {
			continue
		}
		if ruleBlockWhileDo(g, live) {
			continue
		}
		if ruleBlockDoWhile(g, live) {
			continue
		}
		if ruleBlockInfLoop(g, live) {
			continue
		}
		if changed, delta := ruleBlockOr(g); changed {
			dataflowChanges += delta
			continue
		}
		if ruleBlockIfElse(g) {
			continue
		}
		if ruleBlockProperIf(g) {
			continue
		}
		if ruleBlockCat(g) {
			continue
		}
		if ruleBlockGoto(g) {
			continue
		}
		break
	}
	clipExtraRoots(g)
	return dataflowChanges
}

// ruleBlockGoto wraps a block whose only remaining out edge is a goto
// as a KindGoto, so printing sees an explicit unstructured-jump node
// instead of a bare basic block with a dangling edge.
func ruleBlockGoto(g *Graph) bool {
	for _, b := range g.Blocks {
		if b.Kind == KindGoto || len(b.Out) != 1 || !b.Out[0].IsGoto {
			continue
		}
		composite := g.newBlock(KindGoto)
		composite.Children = flattenMembers(b)
		replace(g, []*FlowBlock{b}, composite, b, []*Edge{{From: composite, To: b.Out[0].To, IsGoto: true}})
		return true
	}
	return false
}

// ruleBlockCat folds a maximal straight-line chain a->b (a's only
// non-goto successor is b, b's only in-edge is from a) into a single
// KindList.
func ruleBlockCat(g *Graph) bool {
	for _, a := range g.Blocks {
		outs := nonGotoOutEdges(a)
		if len(outs) != 1 {
			continue
		}
		b := outs[0].To
		if b == a || len(inEdges(g, b)) != 1 {
			continue
		}
		composite := g.newBlock(KindList)
		composite.Children = append(flattenMembers(a), flattenMembers(b)...)
		replace(g, []*FlowBlock{a, b}, composite, a, b.Out)
		return true
	}
	return false
}

// ruleBlockProperIf folds a two-way conditional a whose clause side t
// has a single in-edge and a single decision out-edge to the other
// side f into a KindIf (spec section 4.4's E2 scenario).
func ruleBlockProperIf(g *Graph) bool {
	for _, a := range g.Blocks {
		outs := nonGotoOutEdges(a)
		if len(outs) != 2 {
			continue
		}
		for ti := range outs {
			t := outs[ti].To
			f := outs[1-ti].To
			if t == f || len(inEdges(g, t)) != 1 {
				continue
			}
			tOuts := nonGotoOutEdges(t)
			if len(tOuts) != 1 || tOuts[0].To != f {
				continue
			}
			composite := g.newBlock(KindIf)
			composite.Children = []*FlowBlock{a, t}
			composite.Negate = []bool{ti == 1}
			replace(g, []*FlowBlock{a, t}, composite, a, []*Edge{{To: f}})
			return true
		}
	}
	return false
}

// ruleBlockIfElse folds a two-way conditional whose two sides each
// have a single in, single out, and the same successor into a
// KindIfElse.
func ruleBlockIfElse(g *Graph) bool {
	for _, a := range g.Blocks {
		outs := nonGotoOutEdges(a)
		if len(outs) != 2 {
			continue
		}
		t, f := outs[0].To, outs[1].To
		if t == f || len(inEdges(g, t)) != 1 || len(inEdges(g, f)) != 1 {
			continue
		}
		tOuts, fOuts := nonGotoOutEdges(t), nonGotoOutEdges(f)
		if len(tOuts) != 1 || len(fOuts) != 1 || tOuts[0].To != fOuts[0].To {
			continue
		}
		m := tOuts[0].To
		composite := g.newBlock(KindIfElse)
		composite.Children = []*FlowBlock{a, t, f}
		replace(g, []*FlowBlock{a, t, f}, composite, a, []*Edge{{To: m}})
		return true
	}
	return false
}

// ruleBlockOr folds two sequential two-way conditionals that share
// both targets into a KindCondition(OR), negating the second
// condition when its true/false slots don't line up with the first's
// shared target (spec section 4.4, "counts a dataflow change per
// negation").
func ruleBlockOr(g *Graph) (bool, int) {
	for _, a := range g.Blocks {
		outs := nonGotoOutEdges(a)
		if len(outs) != 2 {
			continue
		}
		for i := range outs {
			aShared := outs[1-i].To
			b := outs[i].To
			if b == a || len(inEdges(g, b)) != 1 {
				continue
			}
			bOuts := nonGotoOutEdges(b)
			if len(bOuts) != 2 {
				continue
			}
			var x *FlowBlock
			var negate bool
			switch {
			case bOuts[0].To == aShared:
				x, negate = bOuts[1].To, false
			case bOuts[1].To == aShared:
				x, negate = bOuts[0].To, true
			default:
				continue
			}
			composite := g.newBlock(KindCondition)
			composite.CondOp = CondOr
			composite.Children = []*FlowBlock{a, b}
			composite.Negate = []bool{false, negate}
			replace(g, []*FlowBlock{a, b}, composite, a, []*Edge{{To: aShared}, {To: x}})
			delta := 0
			if negate {
				delta = 1
			}
			return true, delta
		}
	}
	return false, 0
}

// ruleBlockWhileDo folds a loop whose head is a condition block
// (exit and body both reached from the head, body loops straight
// back) into a KindWhileDo.
func ruleBlockWhileDo(g *Graph, loops []*LoopBody) bool {
	for _, lb := range loops {
		if len(lb.Tails) != 1 || lb.Tails[0] == lb.Head || lb.Exit == nil {
			continue
		}
		h, tail := lb.Head, lb.Tails[0]
		outs := nonGotoOutEdges(h)
		if len(outs) != 2 {
			continue
		}
		var body *FlowBlock
		sawExit := false
		for _, e := range outs {
			if e.To == lb.Exit {
				sawExit = true
			} else if lb.Body[e.To] {
				body = e.To
			}
		}
		if !sawExit || body != tail || len(inEdges(g, body)) != 1 {
			continue
		}
		bodyOuts := nonGotoOutEdges(body)
		if len(bodyOuts) != 1 || bodyOuts[0].To != h {
			continue
		}
		composite := g.newBlock(KindWhileDo)
		composite.Children = []*FlowBlock{h, body}
		replace(g, []*FlowBlock{h, body}, composite, h, []*Edge{{To: lb.Exit}})
		return true
	}
	return false
}

// ruleBlockDoWhile folds a loop that tests its condition at the tail
// (the head has no exit edge of its own; the tail branches back to
// head or out to the loop's exit) into a KindDoWhile.
func ruleBlockDoWhile(g *Graph, loops []*LoopBody) bool {
	for _, lb := range loops {
		if len(lb.Tails) != 1 || lb.Exit == nil {
			continue
		}
		if lb.Tails[0] == lb.Head {
			// A single-block loop that both loops back to itself and
			// exits tests its condition at the bottom, the degenerate
			// one-block case of do-while.
			outs := nonGotoOutEdges(lb.Head)
			if len(outs) != 2 {
				continue
			}
			sawBack, sawExit := false, false
			for _, e := range outs {
				switch e.To {
				case lb.Head:
					sawBack = true
				case lb.Exit:
					sawExit = true
				}
			}
			if !sawBack || !sawExit {
				continue
			}
			composite := g.newBlock(KindDoWhile)
			composite.Children = []*FlowBlock{lb.Head}
			replace(g, []*FlowBlock{lb.Head}, composite, lb.Head, []*Edge{{To: lb.Exit}})
			return true
		}
		tail := lb.Tails[0]
		if len(nonGotoOutEdges(lb.Head)) != 1 {
			continue
		}
		tOuts := nonGotoOutEdges(tail)
		if len(tOuts) != 2 {
			continue
		}
		sawBack := false
		for _, e := range tOuts {
			if e.To == lb.Head {
				sawBack = true
			} else if e.To != lb.Exit {
				sawBack = false
				break
			}
		}
		if !sawBack {
			continue
		}
		members := make([]*FlowBlock, len(lb.Order))
		copy(members, lb.Order)
		composite := g.newBlock(KindDoWhile)
		composite.Children = members
		replace(g, members, composite, lb.Head, []*Edge{{To: lb.Exit}})
		return true
	}
	return false
}

// ruleBlockInfLoop folds a single-block loop with no non-back exit
// edge (every iteration falls back to the head) into a KindInfLoop.
func ruleBlockInfLoop(g *Graph, loops []*LoopBody) bool {
	for _, lb := range loops {
		if len(lb.Tails) != 1 || lb.Tails[0] != lb.Head {
			continue
		}
		h := lb.Head
		hasExit := false
		for _, e := range nonGotoOutEdges(h) {
			if e.To != h {
				hasExit = true
			}
		}
		if hasExit {
			continue
		}
		composite := g.newBlock(KindInfLoop)
		composite.Children = []*FlowBlock{h}
		replace(g, []*FlowBlock{h}, composite, h, nil)
		return true
	}
	return false
}

// ruleCheckSwitchSkips marks a header's direct edge to a target some
// other out-edge also reaches as goto: a default case that jumps
// straight to the switch's exit without its own case block (spec
// section 4.4's E5 scenario, "checkSwitchSkips").
func ruleCheckSwitchSkips(g *Graph) bool {
	for _, h := range g.Blocks {
		outs := nonGotoOutEdges(h)
		if len(outs) < 3 {
			continue
		}
		counts := make(map[*FlowBlock]int, len(outs))
		for _, e := range outs {
			counts[e.To]++
		}
		for _, e := range outs {
			if counts[e.To] > 1 {
				e.IsGoto = true
				return true
			}
		}
	}
	return false
}

// ruleBlockSwitch folds a header with 3+ case successors, each having
// a single in-edge and at most one out-edge, all converging on the
// same exit (or none), into a KindSwitch.
func ruleBlockSwitch(g *Graph) bool {
	for _, h := range g.Blocks {
		outs := nonGotoOutEdges(h)
		if len(outs) < 3 {
			continue
		}
		var exit *FlowBlock
		exitSet := false
		ok := true
		var cases []*FlowBlock
		for _, e := range outs {
			c := e.To
			if len(inEdges(g, c)) != 1 {
				ok = false
				break
			}
			co := nonGotoOutEdges(c)
			if len(co) > 1 {
				ok = false
				break
			}
			var target *FlowBlock
			if len(co) == 1 {
				target = co[0].To
			}
			if !exitSet {
				exit, exitSet = target, true
			} else if target != exit {
				ok = false
				break
			}
			cases = append(cases, c)
		}
		if !ok {
			continue
		}
		members := append([]*FlowBlock{h}, cases...)
		composite := g.newBlock(KindSwitch)
		composite.Children = members
		var outEdges []*Edge
		if exit != nil {
			outEdges = []*Edge{{To: exit}}
		}
		replace(g, members, composite, h, outEdges)
		return true
	}
	return false
}

// ruleCaseFallthru marks as goto any already-collapsed switch case
// edge that converges back to the switch's own header before reaching
// its exit.
func ruleCaseFallthru(g *Graph) bool {
	for _, sw := range g.Blocks {
		if sw.Kind != KindSwitch || len(sw.Children) == 0 {
			continue
		}
		h := sw.Children[0]
		for _, c := range sw.Children[1:] {
			for _, e := range nonGotoOutEdges(c) {
				if e.To == h {
					e.IsGoto = true
					return true
				}
			}
		}
	}
	return false
}

// clipExtraRoots removes any basic block with no in-edges and no
// out-edges left after collapse has run to completion; these are
// unreachable or fully-folded subgraphs with nothing left to report
// (spec section 4.4, "until clipExtraRoots gets applied"). A graph
// reduced to a single block keeps it: that block is the function body.
func clipExtraRoots(g *Graph) {
	if len(g.Blocks) <= 1 {
		return
	}
	var kept []*FlowBlock
	for _, b := range g.Blocks {
		if len(b.Out) == 0 && len(inEdges(g, b)) == 0 && b.Kind == KindBasic {
			continue
		}
		kept = append(kept, b)
	}
	g.Blocks = kept
}
