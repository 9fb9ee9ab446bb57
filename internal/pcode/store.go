// Store.go implements the per-function IR store (spec section 4.1):
// ownership of Varnodes and PcodeOps, stable handles, iteration by
// address/definition-order/opcode/aliveness, and the mutation API
// that keeps the def-use graph consistent after every call returns.
//
// This generalizes the teacher's cpu.CPU arena (a struct owning all
// mutable machine state behind small accessor methods, cpu/cpu.go)
// to an IR arena owning Varnodes and PcodeOps behind stable int IDs,
// per spec section 9's "arena + stable indices, never bare shared
// mutable pointers" guidance.
package pcode

import (
	"fmt"
	"sort"

	"github.com/Urethramancer/pcodec/internal/address"
)

// Store owns every Varnode and PcodeOp belonging to one function.
type Store struct {
	varnodes []*Varnode
	ops      []*PcodeOp

	nextVarnodeID int
	nextOpID      int
	createIndex   int // per-function monotone counter (spec section 5)
}

// NewStore creates an empty IR store for one function.
func NewStore() *Store {
	return &Store{}
}

// NextCreateIndex returns the counter's current value without
// advancing it; exposed so tests can assert determinism (spec
// section 8) and so SPEC_FULL's supplemented statistics can report it.
func (s *Store) NextCreateIndex() int { return s.createIndex }

func (s *Store) tick() int {
	i := s.createIndex
	s.createIndex++
	return i
}

// --- Varnode creation & lookup -------------------------------------------------

// NewVarnode allocates a free Varnode at addr of the given size. It is
// neither input nor written until one of MarkInput or a defining
// opSetOutput call changes that.
func (s *Store) NewVarnode(addr address.Address, size int) *Varnode {
	vn := &Varnode{id: s.nextVarnodeID, Addr: addr, Size: size, Flags: FlagFree, createIndex: s.tick()}
	s.nextVarnodeID++
	s.varnodes = append(s.varnodes, vn)
	if addr.IsConstant() {
		vn.Flags |= FlagConstant
		vn.Flags &^= FlagFree // constants are never "free" in the input/written sense, but also never written
	}
	return vn
}

// MarkInput promotes a free Varnode to a function input.
func (s *Store) MarkInput(vn *Varnode) {
	vn.Flags |= FlagInput
	vn.Flags &^= FlagFree
}

// FindVarnodeInput finds an existing input Varnode at (addr, size), if any.
func (s *Store) FindVarnodeInput(size int, addr address.Address) (*Varnode, bool) {
	for _, vn := range s.varnodes {
		if vn.Flags.Has(FlagInput) && vn.Size == size && vn.Addr.Equal(addr) {
			return vn, true
		}
	}
	return nil, false
}

// FindVarnodeWritten finds the Varnode written at (addr,size) by the
// op at seqnum (pc,uniq).
func (s *Store) FindVarnodeWritten(size int, addr address.Address, pc address.Address, uniq uint32) (*Varnode, error) {
	for _, vn := range s.varnodes {
		if vn.Def == nil || vn.Size != size || !vn.Addr.Equal(addr) {
			continue
		}
		if vn.Def.Seq.Addr.Equal(pc) && (uniq == address.AnyUniq || vn.Def.Seq.Uniq == uniq) {
			return vn, nil
		}
	}
	return nil, fmt.Errorf("requested varnode does not exist")
}

// BeginLoc returns all Varnodes at a storage location, ordered by
// (seqnum of definition, creation index) — free/input Varnodes (no
// definition) sort first.
func (s *Store) BeginLoc(size int, addr address.Address) []*Varnode {
	var out []*Varnode
	for _, vn := range s.varnodes {
		if vn.Size == size && vn.Addr.Equal(addr) {
			out = append(out, vn)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Def == nil) != (b.Def == nil) {
			return a.Def == nil
		}
		if a.Def != nil && b.Def != nil && !a.Def.Seq.Addr.Equal(b.Def.Seq.Addr) {
			return a.Def.Seq.Less(b.Def.Seq)
		}
		return a.createIndex < b.createIndex
	})
	return out
}

// BeginDef returns all Varnodes matching every bit in flags, in
// definition order (free/input first by creation index, then by
// defining op's seqnum).
func (s *Store) BeginDef(flags Flag) []*Varnode {
	var out []*Varnode
	for _, vn := range s.varnodes {
		if vn.Flags.Has(flags) {
			out = append(out, vn)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Def == nil) != (b.Def == nil) {
			return a.Def == nil
		}
		if a.Def != nil && b.Def != nil {
			return a.Def.Seq.Less(b.Def.Seq)
		}
		return a.createIndex < b.createIndex
	})
	return out
}

// AllVarnodes returns every Varnode owned by this store, in creation
// order. Mostly for tests and the printer.
func (s *Store) AllVarnodes() []*Varnode {
	out := make([]*Varnode, len(s.varnodes))
	copy(out, s.varnodes)
	return out
}

// --- Op creation & lookup -------------------------------------------------

// NewOp allocates a new op with numInputs unset input slots at addr,
// with the caller-supplied uniq. Not yet inserted into any block.
func (s *Store) NewOp(numInputs int, addr address.Address, uniq uint32) *PcodeOp {
	op := &PcodeOp{
		id:          s.nextOpID,
		Seq:         address.SeqNum{Addr: addr, Uniq: uniq},
		Inputs:      make([]*Varnode, numInputs),
		createIndex: s.tick(),
	}
	s.nextOpID++
	s.ops = append(s.ops, op)
	return op
}

// FindOp retrieves an op by SeqNum.
func (s *Store) FindOp(seq address.SeqNum) (*PcodeOp, error) {
	for _, op := range s.ops {
		if op.Seq.Addr.Equal(seq.Addr) && op.Seq.Uniq == seq.Uniq {
			return op, nil
		}
	}
	return nil, fmt.Errorf("missing p-code sequence number %s", seq)
}

// BeginOp returns all ops of a given opcode, in seqnum order.
func (s *Store) BeginOp(opc Opcode) []*PcodeOp {
	var out []*PcodeOp
	for _, op := range s.ops {
		if op.Opcode == opc {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq.Less(out[j].Seq) })
	return out
}

// BeginOpAlive returns all non-dead ops, in seqnum order.
func (s *Store) BeginOpAlive() []*PcodeOp {
	var out []*PcodeOp
	for _, op := range s.ops {
		if op.IsAlive() {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq.Less(out[j].Seq) })
	return out
}

// --- Mutation -------------------------------------------------------------
//
// Every mutation below maintains descendant sets and def pointers
// atomically: after it returns, the def-use graph is consistent
// (spec section 4.1's IR-store invariant, re-asserted as a universal
// invariant in section 8).

// OpSetOpcode changes op's opcode in place.
func (s *Store) OpSetOpcode(op *PcodeOp, opc Opcode) {
	op.Opcode = opc
	if opc.Info().IsMarker {
		op.Flags |= OpFlagMarker
	}
}

// OpSetInput sets op's slot-th input to vn, detaching whatever was
// there before (removing op from its old descendant set) and
// registering op as a descendant of vn.
func (s *Store) OpSetInput(op *PcodeOp, vn *Varnode, slot int) error {
	if slot < 0 || slot >= len(op.Inputs) {
		return fmt.Errorf("input slot %d out of range for op %s", slot, op.Opcode)
	}
	if old := op.Inputs[slot]; old != nil {
		old.removeDescendant(op)
	}
	op.Inputs[slot] = vn
	if vn != nil {
		vn.addDescendant(op)
	}
	return nil
}

// OpRemoveInput deletes op's slot-th input entirely, shifting later
// inputs down by one.
func (s *Store) OpRemoveInput(op *PcodeOp, slot int) error {
	if slot < 0 || slot >= len(op.Inputs) {
		return fmt.Errorf("input slot %d out of range for op %s", slot, op.Opcode)
	}
	if old := op.Inputs[slot]; old != nil {
		old.removeDescendant(op)
	}
	op.Inputs = append(op.Inputs[:slot], op.Inputs[slot+1:]...)
	return nil
}

// OpSetOutput assigns op as vn's unique definition, setting vn's
// written flag. vn must not already be defined elsewhere.
func (s *Store) OpSetOutput(op *PcodeOp, vn *Varnode) error {
	if vn.Def != nil && vn.Def != op {
		return fmt.Errorf("varnode at %s already has a definition", vn.Addr)
	}
	if op.Output != nil && op.Output != vn {
		op.Output.Def = nil
		op.Output.Flags &^= FlagWritten
		op.Output.Flags |= FlagFree
	}
	op.Output = vn
	vn.Def = op
	vn.Flags |= FlagWritten
	vn.Flags &^= FlagFree
	return nil
}

// NewUniqueOut allocates a fresh unique-space output Varnode of size
// bytes, wired as op's output. u must be the architecture's unique
// space (obtained from address.Manager.Unique()).
func (s *Store) NewUniqueOut(u *address.Space, size int, op *PcodeOp) *Varnode {
	addr := address.Address{Space: u, Off: u.Wrap(uint64(s.nextVarnodeID))}
	vn := s.NewVarnode(addr, size)
	_ = s.OpSetOutput(op, vn)
	return vn
}

// opInsert is shared by OpInsertBegin/OpInsertEnd: it only records the
// parent block on the op; placing the op in the block's own op list
// is left to the caller (e.g. internal/ssa appends to BasicBlock.Ops),
// since pcode does not know Block's concrete shape (spec section 9
// avoiding the cycle).
func (s *Store) opInsert(op *PcodeOp, parent Block) {
	op.Parent = parent
}

// OpInsertBegin marks op as belonging to parent, conceptually at the
// start of its op list.
func (s *Store) OpInsertBegin(op *PcodeOp, parent Block) { s.opInsert(op, parent) }

// OpInsertEnd marks op as belonging to parent, conceptually at the
// end of its op list.
func (s *Store) OpInsertEnd(op *PcodeOp, parent Block) { s.opInsert(op, parent) }

// OpUninsert detaches op from its parent block without destroying it.
func (s *Store) OpUninsert(op *PcodeOp) { op.Parent = nil }

// OpDestroy permanently removes op: all of its inputs are detached
// (removing op from their descendant sets) and its output, if any, is
// freed. The op itself is marked dead rather than removed from the
// store's slice, so existing handles remain valid but BeginOpAlive
// skips it.
func (s *Store) OpDestroy(op *PcodeOp) {
	for i, in := range op.Inputs {
		if in != nil {
			in.removeDescendant(op)
		}
		op.Inputs[i] = nil
	}
	if op.Output != nil {
		op.Output.Def = nil
		op.Output.Flags &^= FlagWritten
		op.Output.Flags |= FlagFree
		op.Output = nil
	}
	op.Parent = nil
	op.Flags |= OpFlagDead
}
