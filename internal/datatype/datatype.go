// Package datatype implements the decompiler's datatype lattice (spec
// section 3, "Datatype"): a sum-of-variants value carrying a metatype
// tag, size, alignment and composite content. Opcode behavior and
// block variants in sibling packages use the same "tagged record, not
// virtual dispatch" shape recommended in spec section 9.
//
// The core never parses C declarations (spec section 9 places that
// front end outside the core); Datatype values are built directly
// with the constructors below, which is the "supplemented feature"
// SPEC_FULL.md adds in place of a declarator parser.
package datatype

import "fmt"

// Meta is the metatype tag of a Datatype.
type Meta int

const (
	Void Meta = iota
	Bool
	Int
	Uint
	Float
	Code
	Ptr
	PtrRelative
	Array
	Struct
	Union
	PartialUnion
	Typedef
	Unknown
)

func (m Meta) String() string {
	switch m {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case Code:
		return "code"
	case Ptr:
		return "ptr"
	case PtrRelative:
		return "ptr-relative"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Union:
		return "union"
	case PartialUnion:
		return "partial-union"
	case Typedef:
		return "typedef"
	default:
		return "unknown"
	}
}

// Field is one member of a struct or union.
type Field struct {
	Name   string
	Offset int // byte offset within the parent; meaningless for union members' sizing but used for scoring
	Type   *Datatype
}

// Datatype is the decompiler's single type value. Only the fields
// relevant to Meta are populated; the others are left zero.
type Datatype struct {
	ID    int64
	Name  string
	Meta  Meta
	Size  int
	Align int

	// Ptr / PtrRelative
	PointsTo *Datatype
	WordSize int // for PtrRelative: a non-byte scale, e.g. 2 for 16-bit-addressed spaces

	// Array
	Elem     *Datatype
	NumElems int

	// Struct / Union
	Fields []Field

	// PartialUnion: a sized window into Parent starting at Offset.
	Parent *Datatype
	Offset int

	// Typedef
	Base *Datatype

	// Locks set by symbols/overrides; propagation treats locked
	// varnodes as sinks (spec section 4.2).
	Locked bool
}

func (d *Datatype) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.Name != "" {
		return d.Name
	}
	switch d.Meta {
	case Ptr, PtrRelative:
		return fmt.Sprintf("%s*", d.PointsTo)
	case Array:
		return fmt.Sprintf("%s[%d]", d.Elem, d.NumElems)
	case PartialUnion:
		return fmt.Sprintf("partial(%s@%d,%d)", d.Parent, d.Offset, d.Size)
	default:
		return d.Meta.String()
	}
}

// FieldAt returns the field at byte offset off with matching size, or
// ok=false. Used by SUBPIECE truncation scoring (spec section 4.5).
func (d *Datatype) FieldAt(off, size int) (Field, bool) {
	for _, f := range d.Fields {
		if f.Offset == off && f.Type.Size == size {
			return f, true
		}
	}
	return Field{}, false
}

// idSeq is a process-local monotone counter; IDs only need to be
// stable within one run, matching spec section 3's "Ids are stable
// across serialization" (serialization itself is out of core scope).
var idSeq int64

func nextID() int64 {
	idSeq++
	return idSeq
}

func NewInt(name string, size int, signed bool) *Datatype {
	m := Uint
	if signed {
		m = Int
	}
	return &Datatype{ID: nextID(), Name: name, Meta: m, Size: size, Align: size}
}

func NewFloat(name string, size int) *Datatype {
	return &Datatype{ID: nextID(), Name: name, Meta: Float, Size: size, Align: size}
}

func NewBool() *Datatype {
	return &Datatype{ID: nextID(), Name: "bool", Meta: Bool, Size: 1, Align: 1}
}

func NewVoid() *Datatype {
	return &Datatype{ID: nextID(), Name: "void", Meta: Void, Size: 0, Align: 1}
}

func NewCode(name string) *Datatype {
	return &Datatype{ID: nextID(), Name: name, Meta: Code, Size: 0, Align: 1}
}

func NewPtr(to *Datatype, size int) *Datatype {
	return &Datatype{ID: nextID(), Meta: Ptr, PointsTo: to, Size: size, Align: size}
}

func NewPtrRelative(to *Datatype, size, wordSize int) *Datatype {
	return &Datatype{ID: nextID(), Meta: PtrRelative, PointsTo: to, Size: size, Align: size, WordSize: wordSize}
}

func NewArray(elem *Datatype, n int) *Datatype {
	return &Datatype{ID: nextID(), Meta: Array, Elem: elem, NumElems: n, Size: elem.Size * n, Align: elem.Align}
}

func NewStruct(name string, fields []Field) *Datatype {
	size := 0
	align := 1
	for _, f := range fields {
		end := f.Offset + f.Type.Size
		if end > size {
			size = end
		}
		if f.Type.Align > align {
			align = f.Type.Align
		}
	}
	return &Datatype{ID: nextID(), Name: name, Meta: Struct, Fields: fields, Size: size, Align: align}
}

func NewUnion(name string, fields []Field) *Datatype {
	size := 0
	align := 1
	// Union fields all start at offset 0 unless the caller explicitly
	// overlays a sub-structure at a nonzero offset (rare, but legal:
	// it is what PartialUnion's Offset distinguishes).
	for i := range fields {
		if fields[i].Type.Size > size {
			size = fields[i].Type.Size
		}
		if fields[i].Type.Align > align {
			align = fields[i].Type.Align
		}
	}
	return &Datatype{ID: nextID(), Name: name, Meta: Union, Fields: fields, Size: size, Align: align}
}

// NewPartialUnion carves a size-byte window starting at off into parent.
func NewPartialUnion(parent *Datatype, off, size int) *Datatype {
	return &Datatype{ID: nextID(), Meta: PartialUnion, Parent: parent, Offset: off, Size: size, Align: 1}
}

func NewTypedef(name string, base *Datatype) *Datatype {
	return &Datatype{ID: nextID(), Name: name, Meta: Typedef, Base: base, Size: base.Size, Align: base.Align}
}

// Underlying strips Typedef wrappers.
func (d *Datatype) Underlying() *Datatype {
	for d != nil && d.Meta == Typedef {
		d = d.Base
	}
	return d
}

// IsUnionLike reports whether d (after stripping typedefs and pointer
// indirection) is a union or partial union — the cases ScoreUnionFields
// is invoked for.
func (d *Datatype) IsUnionLike() bool {
	u := d.Underlying()
	if u == nil {
		return false
	}
	if u.Meta == Ptr || u.Meta == PtrRelative {
		u = u.PointsTo.Underlying()
	}
	return u != nil && (u.Meta == Union || u.Meta == PartialUnion)
}
