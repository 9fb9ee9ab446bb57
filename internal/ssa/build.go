package ssa

import (
	"sort"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

// Location is the (address, size) key SSA construction merges
// definitions over — one entry per distinct storage window, exactly
// the granularity spec section 3 defines for a Varnode.
type Location struct {
	Addr address.Address
	Size int
}

// Builder constructs and maintains SSA form for one function's IR.
type Builder struct {
	store  *pcode.Store
	unique *address.Space
}

// NewBuilder creates a Builder writing new SSA temporaries into
// unique (the architecture's internal/"uniques" space).
func NewBuilder(store *pcode.Store, unique *address.Space) *Builder {
	return &Builder{store: store, unique: unique}
}

// BuildSSA raises g's flat (non-SSA) p-code into SSA form: MULTIEQUAL
// phis are inserted at dominance frontiers of every written location,
// and every read is rewritten to name the Varnode version that
// dominates it (spec section 4.2, "Construction").
func (b *Builder) BuildSSA(g *Graph) {
	idom := Dominators(g)
	df := DominanceFrontier(g, idom)
	domKids := dominatorChildren(g, idom)

	phis := b.placePhis(g, df)
	b.rename(g.Entry, domKids, phis, map[Location][]*pcode.Varnode{})
}

// placePhis runs the standard iterated-dominance-frontier worklist
// algorithm once per distinct written Location and returns, for each
// block that ended up with a phi, the phi op keyed by Location.
func (b *Builder) placePhis(g *Graph, df map[*BasicBlock][]*BasicBlock) map[*BasicBlock]map[Location]*pcode.PcodeOp {
	defsites := make(map[Location][]*BasicBlock)
	for _, blk := range g.Blocks {
		for _, op := range blk.Ops {
			if op.Output == nil || op.Output.Addr.Space == b.unique {
				continue
			}
			loc := Location{Addr: op.Output.Addr, Size: op.Output.Size}
			defsites[loc] = appendBlockUnique(defsites[loc], blk)
		}
	}

	result := make(map[*BasicBlock]map[Location]*pcode.PcodeOp)
	for loc, sites := range defsites {
		hasPhi := make(map[*BasicBlock]bool)
		worklist := append([]*BasicBlock(nil), sites...)
		for len(worklist) > 0 {
			blk := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, d := range df[blk] {
				if hasPhi[d] {
					continue
				}
				hasPhi[d] = true
				op := b.store.NewOp(len(d.Preds), loc.Addr, 0)
				b.store.OpSetOpcode(op, pcode.OpMultiequal)
				op.Flags |= pcode.OpFlagMarker
				b.store.OpInsertBegin(op, d)
				d.Ops = append([]*pcode.PcodeOp{op}, d.Ops...)
				if result[d] == nil {
					result[d] = make(map[Location]*pcode.PcodeOp)
				}
				result[d][loc] = op
				worklist = append(worklist, d)
			}
		}
	}
	return result
}

// rename walks the dominator tree depth-first, maintaining a
// reaching-definition stack per Location, rewriting reads to the
// current top of stack and creating a fresh versioned Varnode for
// every write (spec section 4.2).
func (b *Builder) rename(blk *BasicBlock, domKids map[*BasicBlock][]*BasicBlock, phis map[*BasicBlock]map[Location]*pcode.PcodeOp, stacks map[Location][]*pcode.Varnode) {
	pushed := make(map[Location]int)
	push := func(loc Location, vn *pcode.Varnode) {
		stacks[loc] = append(stacks[loc], vn)
		pushed[loc]++
	}

	blockPhis := phis[blk]
	// Phi outputs come first: each defines a fresh version before any
	// ordinary op in this block is processed.
	locs := make([]Location, 0, len(blockPhis))
	for loc := range blockPhis {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Addr.Less(locs[j].Addr) })
	for _, loc := range locs {
		op := blockPhis[loc]
		newVn := b.store.NewVarnode(loc.Addr, loc.Size)
		_ = b.store.OpSetOutput(op, newVn)
		push(loc, newVn)
	}

	for _, op := range blk.Ops {
		if op.IsMarker() {
			continue // phi inputs are wired from predecessors below, not rewritten here
		}
		for slot, in := range op.Inputs {
			if in == nil || in.Addr.Space == b.unique || in.IsConstant() {
				continue
			}
			loc := Location{Addr: in.Addr, Size: in.Size}
			if stack := stacks[loc]; len(stack) > 0 {
				_ = b.store.OpSetInput(op, stack[len(stack)-1], slot)
			}
		}
		if op.Output != nil && op.Output.Addr.Space != b.unique {
			loc := Location{Addr: op.Output.Addr, Size: op.Output.Size}
			newVn := b.store.NewVarnode(loc.Addr, loc.Size)
			_ = b.store.OpSetOutput(op, newVn)
			push(loc, newVn)
		}
	}

	for _, succ := range blk.Succs {
		predIndex := predIndexOf(succ, blk)
		for loc, phiOp := range phis[succ] {
			if stack := stacks[loc]; len(stack) > 0 {
				_ = b.store.OpSetInput(phiOp, stack[len(stack)-1], predIndex)
			}
		}
	}

	for _, kid := range domKids[blk] {
		b.rename(kid, domKids, phis, stacks)
	}

	for loc, n := range pushed {
		stacks[loc] = stacks[loc][:len(stacks[loc])-n]
	}
}

func predIndexOf(blk, pred *BasicBlock) int {
	for i, p := range blk.Preds {
		if p == pred {
			return i
		}
	}
	return -1
}

func dominatorChildren(g *Graph, idom map[*BasicBlock]*BasicBlock) map[*BasicBlock][]*BasicBlock {
	kids := make(map[*BasicBlock][]*BasicBlock)
	for _, blk := range g.Blocks {
		if blk == g.Entry {
			continue
		}
		if parent, ok := idom[blk]; ok {
			kids[parent] = append(kids[parent], blk)
		}
	}
	return kids
}

func appendBlockUnique(list []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}
