// Package ssa builds and maintains SSA form over a function's basic
// block graph (spec section 4.2): dominators, dominance-frontier phi
// placement with renaming, and the liveness cover sets that
// internal/highvar consults when merging Varnodes into HighVariables.
//
// The dominance and phi-placement algorithm below follows the shape
// of aclements-go-misc's obj/internal/ssa.SSA (dominance frontier +
// iterated phi insertion over read/write sets per basic block),
// generalized from per-assembly-variable locations to arbitrary
// pcode.Varnode storage locations.
package ssa

import "github.com/Urethramancer/pcodec/internal/pcode"

// BasicBlock is the raw (pre-structuring) control-flow-graph node SSA
// construction runs over. The structurer (package block) builds its
// FlowBlock hierarchy on top of a finished set of these.
type BasicBlock struct {
	id      int
	Ops     []*pcode.PcodeOp
	Preds   []*BasicBlock
	Succs   []*BasicBlock
	IsEntry bool
}

func (b *BasicBlock) BlockID() int { return b.id }

// Graph is a function's raw basic-block graph: exactly one entry,
// rooted, possibly irreducible (spec section 3, "FlowBlock").
type Graph struct {
	Blocks []*BasicBlock
	Entry  *BasicBlock
}

// NewGraph creates an empty graph.
func NewGraph() *Graph { return &Graph{} }

// AddBlock appends a new, empty basic block and returns it.
func (g *Graph) AddBlock() *BasicBlock {
	b := &BasicBlock{id: len(g.Blocks)}
	g.Blocks = append(g.Blocks, b)
	if g.Entry == nil {
		b.IsEntry = true
		g.Entry = b
	}
	return b
}

// AddEdge records a control-flow edge from -> to.
func (g *Graph) AddEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}
