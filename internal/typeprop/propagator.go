// Package typeprop implements the datatype propagator (spec section
// 4.2, "Propagation"): types flow bidirectionally across dataflow
// edges to a fixpoint, bounded by a pass budget, with locked
// Varnodes acting as sinks and ambiguous union edges handed to
// internal/unionscore.
package typeprop

import (
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

// Resolver is the subset of internal/unionscore's API the propagator
// needs; kept as an interface here so typeprop never imports
// unionscore directly (unionscore does not import typeprop either;
// internal/funcdata passes a *unionscore.Scorer in as the Resolver).
type Resolver interface {
	// Resolve scores candidate fields of parent for the access at
	// (op, slot) and returns the winning field's type, or parent
	// itself if the whole-union interpretation wins.
	Resolve(parent *datatype.Datatype, op *pcode.PcodeOp, slot int) *datatype.Datatype
}

// Propagator carries the current best-known type for every Varnode in
// one function and drives propagation to a fixpoint.
type Propagator struct {
	types    map[*pcode.Varnode]*datatype.Datatype
	locked   map[*pcode.Varnode]bool
	resolver Resolver
	MaxPass  int
}

// New creates a Propagator. resolver may be nil if no union-typed
// access will be encountered (propagation simply skips the union
// step in that case).
func New(resolver Resolver) *Propagator {
	return &Propagator{
		types:    make(map[*pcode.Varnode]*datatype.Datatype),
		locked:   make(map[*pcode.Varnode]bool),
		resolver: resolver,
		MaxPass:  defaultMaxPass,
	}
}

const defaultMaxPass = 16

// SetType seeds vn's type. Passing locked=true makes it a propagation
// sink: its type is never overwritten by a later pass (spec section
// 4.2, "locked varnodes are sinks").
func (p *Propagator) SetType(vn *pcode.Varnode, t *datatype.Datatype, locked bool) {
	p.types[vn] = t
	if locked {
		p.locked[vn] = true
	}
}

// TypeOf returns vn's current best-known type, or nil if unknown.
func (p *Propagator) TypeOf(vn *pcode.Varnode) *datatype.Datatype {
	return p.types[vn]
}

// Run propagates types across ops until no Varnode's type changes in
// a full pass, or MaxPass is reached; it returns the number of passes
// that changed at least one type (0 when the first pass changed
// nothing).
func (p *Propagator) Run(ops []*pcode.PcodeOp) int {
	pass := 0
	for ; pass < p.MaxPass; pass++ {
		changed := false
		for _, op := range ops {
			if !op.IsAlive() {
				continue
			}
			if p.propagateOp(op) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return pass
}

// propagateOp applies one opcode's type-effect rule (spec section
// 4.2's "per-slot type effect" data, generalizing the teacher's
// switch-on-opcode decode tables (cpu/decode.go) from instruction
// decoding to type inference) and reports whether anything changed.
func (p *Propagator) propagateOp(op *pcode.PcodeOp) bool {
	changed := false
	set := func(vn *pcode.Varnode, t *datatype.Datatype) {
		if vn == nil || t == nil || p.locked[vn] {
			return
		}
		if cur := p.types[vn]; cur == t {
			return
		}
		p.types[vn] = t
		changed = true
	}

	switch op.Opcode {
	case pcode.OpCopy, pcode.OpCast:
		in := op.Inputs[0]
		if t := p.types[in]; t != nil {
			set(op.Output, t)
		} else if t := p.types[op.Output]; t != nil {
			set(in, t)
		}

	case pcode.OpMultiequal, pcode.OpIndirect:
		// Flow the first known input type into the output; if the output
		// is locked (a symbol pinned it) flow back out to unlocked
		// inputs instead.
		var outT *datatype.Datatype
		for _, in := range op.Inputs {
			if t := p.types[in]; t != nil {
				outT = t
				break
			}
		}
		set(op.Output, outT)
		if p.locked[op.Output] {
			for _, in := range op.Inputs {
				set(in, p.types[op.Output])
			}
		}

	case pcode.OpIntAdd, pcode.OpIntSub, pcode.OpPtradd, pcode.OpPtrsub:
		p.propagatePointerArith(op, set)

	case pcode.OpLoad:
		p.propagateLoad(op, set)

	case pcode.OpStore:
		p.propagateStore(op)

	case pcode.OpSubpiece:
		p.propagateSubpiece(op, set)

	case pcode.OpPiece:
		// No strong constraint: a PIECE's output type is inferred
		// elsewhere (e.g. by a consuming CAST); nothing to propagate.

	default:
		if op.Opcode.Info().IsFloat {
			set(op.Output, floatOfSize(op.Output.Size))
		}
	}
	return changed
}

// propagatePointerArith flows a pointer type through INT_ADD/PTRADD
// (index arithmetic) and PTRSUB (constant struct-field offset),
// consulting the union resolver when the base is union-typed (spec
// section 4.5's INT_ADD/PTRSUB "downchain" scoring rule).
func (p *Propagator) propagatePointerArith(op *pcode.PcodeOp, set func(*pcode.Varnode, *datatype.Datatype)) {
	base := op.Inputs[0]
	baseT := p.types[base]
	if baseT == nil {
		return
	}
	u := baseT.Underlying()
	if u == nil || (u.Meta != datatype.Ptr && u.Meta != datatype.PtrRelative) {
		return
	}
	if u.PointsTo != nil && u.PointsTo.IsUnionLike() && p.resolver != nil {
		resolved := p.resolver.Resolve(u.PointsTo, op, 0)
		set(op.Output, datatype.NewPtr(resolved, baseT.Size))
		return
	}
	set(op.Output, baseT)
}

// propagateLoad flows the pointee type of a LOAD's pointer input to
// its output, resolving a union pointee through the scorer.
func (p *Propagator) propagateLoad(op *pcode.PcodeOp, set func(*pcode.Varnode, *datatype.Datatype)) {
	ptrT := p.types[op.Inputs[1]]
	if ptrT == nil {
		return
	}
	u := ptrT.Underlying()
	if u == nil || (u.Meta != datatype.Ptr && u.Meta != datatype.PtrRelative) {
		return
	}
	pointee := u.PointsTo
	if pointee != nil && pointee.IsUnionLike() && p.resolver != nil {
		pointee = p.resolver.Resolve(pointee, op, 1)
	}
	set(op.Output, pointee)
}

// propagateStore resolves the union pointee of a STORE's destination
// (slot 1), if any; STORE has no output Varnode to set.
func (p *Propagator) propagateStore(op *pcode.PcodeOp) {
	ptrT := p.types[op.Inputs[1]]
	if ptrT == nil || p.resolver == nil {
		return
	}
	u := ptrT.Underlying()
	if u == nil || u.PointsTo == nil || !u.PointsTo.IsUnionLike() {
		return
	}
	p.resolver.Resolve(u.PointsTo, op, 1)
}

// propagateSubpiece computes the truncated field type at the
// endian-adjusted byte offset (spec section 4.5, "SUBPIECE").
func (p *Propagator) propagateSubpiece(op *pcode.PcodeOp, set func(*pcode.Varnode, *datatype.Datatype)) {
	srcT := p.types[op.Inputs[0]]
	if srcT == nil {
		return
	}
	u := srcT.Underlying()
	if u == nil || (u.Meta != datatype.Struct && u.Meta != datatype.Union) {
		return
	}
	off := int(constantOf(op.Inputs[1]))
	if f, ok := u.FieldAt(off, op.Output.Size); ok {
		set(op.Output, f.Type)
	}
}

func constantOf(vn *pcode.Varnode) uint64 {
	if vn == nil || !vn.IsConstant() {
		return 0
	}
	return vn.Addr.Off
}

var float4 = datatype.NewFloat("float", 4)
var float8 = datatype.NewFloat("double", 8)

func floatOfSize(size int) *datatype.Datatype {
	if size == 8 {
		return float8
	}
	return float4
}
