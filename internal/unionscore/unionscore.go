// Package unionscore implements ScoreUnionFields (spec section 4.5):
// given a union (or pointer-to-union, or partial-union) datatype and
// an access edge (op, slot — slot -1 means the output), score every
// candidate field plus the whole-union interpretation and return the
// winner.
//
// The scoring loop's shape — enqueue a trial per candidate, score it
// against the opcode at its edge, accumulate into a per-candidate
// total — follows DataDog-datadog-agent's pkg/dyninst/compiler
// logical_encode.go/ops.go pattern of walking a small typed op tree
// and scoring candidates against the operation at each node.
package unionscore

import (
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

const (
	maxPasses    = 6
	maxTrials    = 1024
	softCapTrial = 256
)

// ResolvedUnion is a scored-winning interpretation of a union access.
type ResolvedUnion struct {
	Base     *datatype.Datatype
	FieldNum int // -1 means the whole union, else an index into Base.Fields
	Resolved *datatype.Datatype
	Locked   bool
}

// edgeKey identifies one access edge for the locked-result cache.
type edgeKey struct {
	op   *pcode.PcodeOp
	slot int
}

// Scorer resolves union-field accesses for one function, remembering
// locked results so re-scoring the same edge is idempotent (spec
// section 8: "For a locked result, re-scoring the same edge returns
// the same fieldNum").
type Scorer struct {
	locked map[edgeKey]ResolvedUnion
}

// New creates an empty Scorer.
func New() *Scorer {
	return &Scorer{locked: make(map[edgeKey]ResolvedUnion)}
}

// Lock pins an edge's result so future queries skip scoring. Used
// when a symbol's convert/facet directive already names the field
// (spec section 4.6, "union-facet directives").
func (s *Scorer) Lock(parent *datatype.Datatype, op *pcode.PcodeOp, slot int, fieldNum int) {
	key := edgeKey{op, slot}
	s.locked[key] = ResolvedUnion{Base: parent, FieldNum: fieldNum, Resolved: fieldType(parent, fieldNum), Locked: true}
}

// Resolve scores parent's candidate fields for the access at (op,
// slot) and returns the winning field's type (or parent itself if
// the whole-union interpretation wins). It satisfies typeprop.Resolver.
func (s *Scorer) Resolve(parent *datatype.Datatype, op *pcode.PcodeOp, slot int) *datatype.Datatype {
	return s.ScoreUnionFields(parent, op, slot).Resolved
}

// ScoreUnionFields runs the full scored resolution and returns the
// ResolvedUnion (spec section 4.5).
func (s *Scorer) ScoreUnionFields(parent *datatype.Datatype, op *pcode.PcodeOp, slot int) ResolvedUnion {
	key := edgeKey{op, slot}
	if r, ok := s.locked[key]; ok {
		return r
	}

	base, baseOffset := underlyingUnion(parent)
	if base == nil {
		return ResolvedUnion{Base: parent, FieldNum: -1, Resolved: parent}
	}

	accessSize := slotSize(op, slot)
	scores := make(map[int]int, len(base.Fields)+1)
	scores[-1] = 0 // whole-union interpretation, always a trial

	trialCount := 1
	for i, f := range base.Fields {
		if trialCount >= maxTrials {
			break
		}
		if f.Offset != baseOffset && baseOffset != 0 {
			continue // a partial-union window only exposes fields at its own offset
		}
		if accessSize > 0 && f.Type.Size != accessSize {
			scores[i] = -10
			trialCount++
			continue
		}
		scores[i] = 0
		trialCount++
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for i := range scores {
			if i == -1 {
				continue
			}
			delta := scorePass(base.Fields[i], op, slot, accessSize)
			if delta != 0 {
				scores[i] += delta
				changed = true
			}
		}
		if !changed {
			break
		}
		if trialCount > softCapTrial {
			break
		}
	}

	bestIdx := -1
	bestScore := scores[-1]
	for i := 0; i < len(base.Fields); i++ {
		sc, ok := scores[i]
		if !ok {
			continue
		}
		if sc > bestScore {
			bestScore = sc
			bestIdx = i
		}
		// Ties keep the earlier (lower) index already recorded; since
		// we scan in increasing order and only replace on strictly
		// greater score, the lowest-indexed field naturally wins ties
		// among fields, and the whole-union (-1) wins ties against any
		// field because it was seeded first and is never beaten by an
		// equal score (spec section 9's computeBestIndex decision).
	}

	resolved := parent
	if bestIdx >= 0 {
		resolved = base.Fields[bestIdx].Type
	}
	return ResolvedUnion{Base: base, FieldNum: bestIdx, Resolved: resolved}
}

// scorePass applies one round of the categorical scoring table (spec
// section 4.5 excerpt) for field f against the opcode at (op, slot).
func scorePass(f datatype.Field, op *pcode.PcodeOp, slot int, accessSize int) int {
	switch op.Opcode {
	case pcode.OpIntAdd, pcode.OpIntSub, pcode.OpPtrsub:
		if slot >= 0 && slot < len(op.Inputs) && op.Inputs[slot] != nil && op.Inputs[slot].IsConstant() {
			if f.Type.Underlying().Meta == datatype.Struct || f.Type.Underlying().Meta == datatype.Array {
				return 5
			}
		}
		return 0

	case pcode.OpLoad, pcode.OpStore:
		if slot == 1 || slot == -1 {
			if accessSize > 0 && f.Type.Size >= accessSize {
				return 10
			}
			return -10
		}
		return 0

	case pcode.OpCbranch:
		if f.Type.Underlying().Meta != datatype.Bool {
			return -10
		}
		return 0

	case pcode.OpIntEqual, pcode.OpIntNotEqual:
		switch f.Type.Underlying().Meta {
		case datatype.Struct, datatype.Union, datatype.Array, datatype.Float:
			return -1
		}
		return 0

	case pcode.OpSubpiece:
		off := int(constantSlot(op, 1))
		if ff, ok := f.Type.Underlying().FieldAt(off, accessSize); ok && ff.Type != nil {
			return 10
		}
		return -5

	default:
		if op.Opcode.Info().IsFloat {
			if f.Type.Underlying().Meta == datatype.Float {
				return 10
			}
			return -10
		}
		return 0
	}
}

func constantSlot(op *pcode.PcodeOp, slot int) uint64 {
	if slot < 0 || slot >= len(op.Inputs) || op.Inputs[slot] == nil || !op.Inputs[slot].IsConstant() {
		return 0
	}
	return op.Inputs[slot].Addr.Off
}

// underlyingUnion strips typedefs/pointers down to the union or
// partial-union datatype being accessed, returning its backing union
// datatype and the byte offset a partial-union window starts at (0
// for a plain union).
func underlyingUnion(t *datatype.Datatype) (*datatype.Datatype, int) {
	u := t.Underlying()
	if u == nil {
		return nil, 0
	}
	if u.Meta == datatype.Ptr || u.Meta == datatype.PtrRelative {
		u = u.PointsTo.Underlying()
	}
	switch {
	case u == nil:
		return nil, 0
	case u.Meta == datatype.Union:
		return u, 0
	case u.Meta == datatype.PartialUnion:
		return u.Parent.Underlying(), u.Offset
	default:
		return nil, 0
	}
}

func slotSize(op *pcode.PcodeOp, slot int) int {
	if slot == -1 {
		if op.Output != nil {
			return op.Output.Size
		}
		return 0
	}
	if slot < 0 || slot >= len(op.Inputs) || op.Inputs[slot] == nil {
		return 0
	}
	return op.Inputs[slot].Size
}

func fieldType(parent *datatype.Datatype, fieldNum int) *datatype.Datatype {
	base, _ := underlyingUnion(parent)
	if base == nil || fieldNum < 0 || fieldNum >= len(base.Fields) {
		return parent
	}
	return base.Fields[fieldNum].Type
}
