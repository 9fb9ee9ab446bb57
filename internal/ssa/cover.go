package ssa

import "github.com/Urethramancer/pcodec/internal/pcode"

// Range is one contiguous live span of a Varnode within a single
// block: from the op index that defines (or enters) it up to and
// including the op index of its last read in that block.
type Range struct {
	Block      *BasicBlock
	Start, End int
}

// Cover is the set of ranges where at least one Varnode of a
// HighVariable is live (spec section 4.2, "Cover").
type Cover []Range

// ComputeCover builds the cover of a single Varnode: one Range per
// block that either defines it or reads it, spanning from the
// earliest relevant op index to the latest.
func ComputeCover(vn *pcode.Varnode) Cover {
	spans := make(map[*BasicBlock]*Range)
	touch := func(op *pcode.PcodeOp) {
		blk, ok := op.Parent.(*BasicBlock)
		if !ok || blk == nil {
			return
		}
		idx := indexInBlock(blk, op)
		if idx < 0 {
			return
		}
		r, ok := spans[blk]
		if !ok {
			spans[blk] = &Range{Block: blk, Start: idx, End: idx}
			return
		}
		if idx < r.Start {
			r.Start = idx
		}
		if idx > r.End {
			r.End = idx
		}
	}
	if vn.Def != nil {
		touch(vn.Def)
	}
	for _, d := range vn.Descendants() {
		touch(d)
	}

	out := make(Cover, 0, len(spans))
	for _, r := range spans {
		out = append(out, *r)
	}
	return out
}

func indexInBlock(blk *BasicBlock, op *pcode.PcodeOp) int {
	for i, o := range blk.Ops {
		if o == op {
			return i
		}
	}
	return -1
}

// Overlaps reports whether two ranges in the same block intersect.
func (r Range) Overlaps(o Range) bool {
	if r.Block != o.Block {
		return false
	}
	return r.Start <= o.End && o.Start <= r.End
}

// Compatible reports whether two covers may be merged into one
// HighVariable: they must not overlap, except at a shared MULTIEQUAL
// boundary or at an op-position where one side is only writing (spec
// section 4.2, "Cover").
func Compatible(a, b Cover) bool {
	for _, ra := range a {
		for _, rb := range b {
			if !ra.Overlaps(rb) {
				continue
			}
			if isWriteBoundary(ra, rb) {
				continue
			}
			return false
		}
	}
	return true
}

// isWriteBoundary allows exactly the touching-at-a-single-point case
// (one range's Start equals the other's End, i.e. a def immediately
// following a last use — the MULTIEQUAL/COPY-chain seam spec section
// 4.2 carves out) while still rejecting genuine overlap.
func isWriteBoundary(a, b Range) bool {
	return a.Start == b.End || b.Start == a.End
}
