package block

import (
	"github.com/Urethramancer/pcodec/internal/highvar"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

// Build wraps a finished ssa.Graph as a block.Graph, marking each edge
// a back-edge iff its target dominates its source (spec section 4.4,
// stage 0: back-edges are known before loop discovery can run).
func Build(g *ssa.Graph) *Graph {
	idom := ssa.Dominators(g)
	out := NewGraph()
	fb := make(map[*ssa.BasicBlock]*FlowBlock, len(g.Blocks))
	for _, b := range g.Blocks {
		fb[b] = out.AddBasic(b)
	}
	for _, b := range g.Blocks {
		for _, succ := range b.Succs {
			out.AddEdge(fb[b], fb[succ], dominates(idom, succ, b))
		}
	}
	return out
}

// dominates reports whether candidate dominates b, by walking b's
// immediate-dominator chain looking for candidate.
func dominates(idom map[*ssa.BasicBlock]*ssa.BasicBlock, candidate, b *ssa.BasicBlock) bool {
	for cur := b; ; {
		if cur == candidate {
			return true
		}
		next, ok := idom[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

// Structure runs the full control-flow structuring pipeline over a
// finished ssa.Graph: back-edge detection, loop discovery, goto
// selection, the CollapseStructure rule set to a fixed point, then the
// two cross-loop cleanups (spec section 4.4).
func Structure(g *ssa.Graph, mg *highvar.Merger) *Graph {
	fg := Build(g)
	loops := FindLoopBodies(fg)
	for _, lb := range loops {
		lb.SetExitMarks()
	}
	MarkGotos(fg.Blocks)
	CollapseStructure(fg, loops)
	ConditionalJoin(fg, mg)
	ActionReturnSplit(fg)
	CollapseStructure(fg, FindLoopBodies(fg))
	return fg
}
