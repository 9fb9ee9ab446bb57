package block

import (
	"github.com/Urethramancer/pcodec/internal/highvar"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

// FunctionalEqualityLevel compares two Varnodes' defining expressions
// structurally: 0 means identical, 1 means equal up to Varnodes that
// still need merging (same opcode shape, differing leaf storage), and
// anything higher means they are not interchangeable (spec section 8,
// "ConditionalJoin.execute is correct iff functionalEqualityLevel ≤ 1
// before joining").
func FunctionalEqualityLevel(a, b *pcode.Varnode) int {
	if a == nil || b == nil {
		return 2
	}
	if a == b {
		return 0
	}
	if a.IsConstant() && b.IsConstant() {
		if a.Addr.Off == b.Addr.Off {
			return 0
		}
		return 2
	}
	if a.Def == nil || b.Def == nil {
		if a.Addr == b.Addr || (a.Def == nil && b.Def == nil) {
			return 1
		}
		return 2
	}
	if a.Def.Opcode != b.Def.Opcode || len(a.Def.Inputs) != len(b.Def.Inputs) {
		return 2
	}
	level := 0
	for i := range a.Def.Inputs {
		if l := FunctionalEqualityLevel(a.Def.Inputs[i], b.Def.Inputs[i]); l > level {
			level = l
		}
	}
	return level
}

// ConditionalJoin detects pairs of blocks ending in a CBRANCH into the
// same successor pair whose conditions are functionally equal up to
// one merge, folds the second block's predecessors onto the first,
// and asks mg to merge the two condition Varnodes (spec section 4.4
// stage 4). It returns the number of pairs joined.
func ConditionalJoin(g *Graph, mg *highvar.Merger) int {
	joined := 0
	for i := 0; i < len(g.Blocks); i++ {
		a := g.Blocks[i]
		aCond, aOuts, ok := cbranchShape(a)
		if !ok {
			continue
		}
		for j := i + 1; j < len(g.Blocks); j++ {
			b := g.Blocks[j]
			bCond, bOuts, ok := cbranchShape(b)
			if !ok {
				continue
			}
			if aOuts[0].To != bOuts[0].To || aOuts[1].To != bOuts[1].To {
				continue
			}
			if FunctionalEqualityLevel(aCond, bCond) > 1 {
				continue
			}
			if aCond != bCond {
				mg.SpeculativeMerge([]*pcode.Varnode{aCond, bCond})
			}
			joinPair(g, a, b)
			j--
			joined++
		}
	}
	return joined
}

func cbranchShape(b *FlowBlock) (*pcode.Varnode, []*Edge, bool) {
	if b.Kind != KindBasic || len(b.Basic.Ops) == 0 {
		return nil, nil, false
	}
	last := b.Basic.Ops[len(b.Basic.Ops)-1]
	if last.Opcode != pcode.OpCbranch || len(last.Inputs) < 2 {
		return nil, nil, false
	}
	outs := nonGotoOutEdges(b)
	if len(outs) != 2 {
		return nil, nil, false
	}
	return last.Inputs[1], outs, true
}

// joinPair retargets every edge pointing at b onto a and drops b from
// the active block list.
func joinPair(g *Graph, a, b *FlowBlock) {
	for _, blk := range g.Blocks {
		if blk == b {
			continue
		}
		for _, e := range blk.Out {
			if e.To == b {
				e.To = a
			}
		}
	}
	kept := make([]*FlowBlock, 0, len(g.Blocks)-1)
	for _, blk := range g.Blocks {
		if blk != b {
			kept = append(kept, blk)
		}
	}
	g.Blocks = kept
}

// ActionReturnSplit duplicates a phis/copies/RETURN-only block reached
// by more than one predecessor via an unstructured goto, giving each
// predecessor its own tail so later printing can shorten a goto into
// a plain return (spec section 4.4, "ActionReturnSplit").
func ActionReturnSplit(g *Graph) int {
	splits := 0
	for _, b := range append([]*FlowBlock{}, g.Blocks...) {
		if b.Kind != KindBasic || !isReturnOnly(b.Basic) {
			continue
		}
		preds := gotoPredecessors(g, b)
		if len(preds) < 2 {
			continue
		}
		for _, e := range preds[1:] {
			dup := g.newBlock(KindBasic)
			dup.Basic = b.Basic
			dup.Out = make([]*Edge, len(b.Out))
			for i, oe := range b.Out {
				dup.Out[i] = &Edge{From: dup, To: oe.To, IsGoto: oe.IsGoto, IsBack: oe.IsBack}
			}
			e.To = dup
			g.Blocks = append(g.Blocks, dup)
			splits++
		}
	}
	return splits
}

func isReturnOnly(b *ssa.BasicBlock) bool {
	if len(b.Ops) == 0 {
		return false
	}
	last := b.Ops[len(b.Ops)-1]
	if last.Opcode != pcode.OpReturn {
		return false
	}
	for _, op := range b.Ops[:len(b.Ops)-1] {
		if op.Opcode != pcode.OpMultiequal && op.Opcode != pcode.OpCopy {
			return false
		}
	}
	return true
}

func gotoPredecessors(g *Graph, b *FlowBlock) []*Edge {
	var out []*Edge
	for _, blk := range g.Blocks {
		for _, e := range blk.Out {
			if e.To == b && e.IsGoto {
				out = append(out, e)
			}
		}
	}
	return out
}
