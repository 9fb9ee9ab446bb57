package pcode

import "github.com/Urethramancer/pcodec/internal/address"

// Flag is a Varnode boolean property bit (spec section 3, "Varnode").
type Flag uint32

const (
	FlagInput Flag = 1 << iota
	FlagWritten
	FlagFree
	FlagConstant
	FlagAnnotation
	FlagTypelock
	FlagNamelock
	FlagPersist
	FlagVolatile
	FlagReadonly
	FlagSpacebase
	FlagImplied
	FlagMark // scratch for traversals; must be cleared before returning to the caller
	FlagAddrtied
	FlagUnaffected
)

// Has reports whether all bits in mask are set.
func (f Flag) Has(mask Flag) bool { return f&mask == mask }

// Block is the minimal surface PcodeOp needs from its owning basic
// block. internal/ssa's BasicBlock implements it; pcode never
// imports ssa, avoiding a cycle (spec section 9, "Cyclic graphs,
// back-references" — arena + stable identifiers, not shared pointers
// across packages that would otherwise need to import each other).
type Block interface {
	BlockID() int
}

// Varnode is a storage location participating in dataflow.
type Varnode struct {
	id   int
	Addr address.Address
	Size int

	Def         *PcodeOp
	descendants []*PcodeOp // ordered by seqnum of the reading op

	Type  *DatatypeRef
	Flags Flag

	createIndex int // per-function monotone tie-break (spec section 5, "Ordering")
}

// DatatypeRef breaks the import cycle with package datatype: pcode
// only needs an opaque, comparable handle here, and typeprop is the
// package that actually knows the datatype.Datatype shape.
type DatatypeRef struct {
	Any any
}

func (v *Varnode) ID() int { return v.id }

// CreateIndex is the per-function monotone counter value assigned
// when this Varnode was created; it is the deterministic tie-break
// spec section 5 requires beyond seqnum ordering.
func (v *Varnode) CreateIndex() int { return v.createIndex }

// IsFree reports the free ⇔ ¬input ∧ ¬written invariant (spec
// section 3 and section 8).
func (v *Varnode) IsFree() bool {
	return !v.Flags.Has(FlagInput) && !v.Flags.Has(FlagWritten)
}

// IsConstant reports whether this Varnode's storage is the constant
// space; it must agree with FlagConstant.
func (v *Varnode) IsConstant() bool {
	return v.Addr.IsConstant()
}

// Descendants returns the ops that read this Varnode, in seqnum order.
func (v *Varnode) Descendants() []*PcodeOp {
	return v.descendants
}

// addDescendant inserts op into the descendant set, keeping it sorted
// by SeqNum and refusing duplicates (spec section 8: "op exactly once").
func (v *Varnode) addDescendant(op *PcodeOp) {
	for _, d := range v.descendants {
		if d == op {
			return
		}
	}
	i := 0
	for i < len(v.descendants) && v.descendants[i].Seq.Less(op.Seq) {
		i++
	}
	v.descendants = append(v.descendants, nil)
	copy(v.descendants[i+1:], v.descendants[i:])
	v.descendants[i] = op
}

func (v *Varnode) removeDescendant(op *PcodeOp) {
	for i, d := range v.descendants {
		if d == op {
			v.descendants = append(v.descendants[:i], v.descendants[i+1:]...)
			return
		}
	}
}
