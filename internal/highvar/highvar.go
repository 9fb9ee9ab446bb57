// Package highvar implements HighVariable merging (spec section 4.2,
// "Merging"): grouping SSA Varnodes that must share storage in
// output into a single source-level variable, via a speculative pass
// (same address, compatible covers) followed by a required pass
// (MULTIEQUAL inputs, COPY chains, INDIRECT).
package highvar

import (
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

// HighVariable is an equivalence class of Varnodes representing one
// source-level variable (spec section 3).
type HighVariable struct {
	Name    string
	Symbol  *datatype.Symbol
	Type    *datatype.Datatype
	Format  datatype.DisplayFormat
	Members []*pcode.Varnode
	cover   ssa.Cover
}

// Cover returns the union of live ranges across every member Varnode.
func (h *HighVariable) Cover() ssa.Cover { return h.cover }

// Merger groups Varnodes into HighVariables for one function.
type Merger struct {
	classes map[*pcode.Varnode]*HighVariable
	// isolated marks Varnodes whose owning symbol forbids speculative
	// merge across them (spec section 4.2, "the isolated flag").
	isolated map[*pcode.Varnode]bool
}

// NewMerger creates an empty Merger.
func NewMerger() *Merger {
	return &Merger{classes: make(map[*pcode.Varnode]*HighVariable), isolated: make(map[*pcode.Varnode]bool)}
}

// MarkIsolated excludes vn from speculative merging.
func (m *Merger) MarkIsolated(vn *pcode.Varnode) { m.isolated[vn] = true }

// classOf returns vn's current HighVariable, creating a singleton one
// if it doesn't have one yet.
func (m *Merger) classOf(vn *pcode.Varnode) *HighVariable {
	if h, ok := m.classes[vn]; ok {
		return h
	}
	h := &HighVariable{Members: []*pcode.Varnode{vn}, cover: ssa.ComputeCover(vn)}
	m.classes[vn] = h
	return h
}

// union merges b's members into a, refusing the merge (returning
// false) when the combined cover is incompatible (spec section 4.2,
// "Merging is refused when covers conflict").
func (m *Merger) union(a, b *HighVariable) bool {
	if a == b {
		return true
	}
	if !ssa.Compatible(a.cover, b.cover) {
		return false
	}
	for _, vn := range b.Members {
		m.classes[vn] = a
	}
	a.Members = append(a.Members, b.Members...)
	a.cover = append(a.cover, b.cover...)
	return true
}

// SpeculativeMerge merges Varnodes that share a storage address and
// have compatible covers, skipping any pair where either side is
// isolated.
func (m *Merger) SpeculativeMerge(allVarnodes []*pcode.Varnode) {
	byAddr := make(map[string][]*pcode.Varnode)
	for _, vn := range allVarnodes {
		if vn.IsConstant() {
			continue
		}
		key := vn.Addr.String()
		byAddr[key] = append(byAddr[key], vn)
	}
	for _, group := range byAddr {
		for i := 0; i < len(group); i++ {
			if m.isolated[group[i]] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if m.isolated[group[j]] {
					continue
				}
				a, b := m.classOf(group[i]), m.classOf(group[j])
				m.union(a, b)
			}
		}
	}
}

// RequiredMerge merges MULTIEQUAL operands with the phi's own output,
// COPY chains (COPY's single input with its output), and INDIRECT
// pseudo-defs with their "guarded" original — these merges are not
// optional: the decompiler relies on them sharing storage in the
// printed output (spec section 4.2, "required merges").
func (m *Merger) RequiredMerge(ops []*pcode.PcodeOp) {
	for _, op := range ops {
		if !op.IsAlive() || op.Output == nil {
			continue
		}
		switch op.Opcode {
		case pcode.OpMultiequal, pcode.OpIndirect:
			out := m.classOf(op.Output)
			for _, in := range op.Inputs {
				if in == nil || in.IsConstant() {
					continue
				}
				m.union(out, m.classOf(in))
			}
		case pcode.OpCopy:
			if in := op.Inputs[0]; in != nil && !in.IsConstant() {
				m.union(m.classOf(op.Output), m.classOf(in))
			}
		}
	}
}

// Result returns the distinct HighVariables produced so far.
func (m *Merger) Result() []*HighVariable {
	seen := make(map[*HighVariable]bool)
	var out []*HighVariable
	for _, h := range m.classes {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// Of returns vn's HighVariable, or nil if it has not been classified.
func (m *Merger) Of(vn *pcode.Varnode) *HighVariable {
	return m.classes[vn]
}
