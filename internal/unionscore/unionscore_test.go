package unionscore_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/unionscore"
)

func newRAM(t *testing.T) (*address.Manager, *address.Space) {
	t.Helper()
	m := address.NewManager()
	ram, err := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	if err != nil {
		t.Fatalf("AddSpace: %v", err)
	}
	return m, ram
}

func sampleUnion() *datatype.Datatype {
	i4 := datatype.NewInt("int", 4, true)
	f4 := datatype.NewFloat("float", 4)
	return datatype.NewUnion("u", []datatype.Field{
		{Name: "asInt", Offset: 0, Type: i4},
		{Name: "asFloat", Offset: 0, Type: f4},
	})
}

// LOAD through a pointer to a union whose fields both match the
// 4-byte access should prefer a size-matching field over the
// whole-union interpretation.
func TestScoreUnionFieldsLoadPrefersSizeMatchingField(t *testing.T) {
	_, ram := newRAM(t)
	store := pcode.NewStore()

	u := sampleUnion()
	ptr := datatype.NewPtr(u, 4)

	op := store.NewOp(2, address.Address{Space: ram, Off: 0}, 0)
	store.OpSetOpcode(op, pcode.OpLoad)
	spaceConst := store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	_ = store.OpSetInput(op, spaceConst, 0)
	ptrVn := store.NewVarnode(address.Address{Space: ram, Off: 0x10}, 4)
	_ = store.OpSetInput(op, ptrVn, 1)
	out := store.NewVarnode(address.Address{Space: ram, Off: 0x20}, 4)
	_ = store.OpSetOutput(op, out)

	s := unionscore.New()
	r := s.ScoreUnionFields(ptr, op, 1)
	if r.FieldNum < 0 {
		t.Fatalf("expected a field to win over the whole-union interpretation, got FieldNum=%d", r.FieldNum)
	}
	if r.Resolved.Size != 4 {
		t.Errorf("expected resolved field size 4, got %d", r.Resolved.Size)
	}
}

// CBRANCH consuming a non-bool union field should penalize every
// non-bool field, leaving the whole-union interpretation as the
// winner when no field is boolean.
func TestScoreUnionFieldsCbranchNoBoolField(t *testing.T) {
	_, ram := newRAM(t)
	store := pcode.NewStore()
	u := sampleUnion()

	op := store.NewOp(2, address.Address{Space: ram, Off: 0}, 0)
	store.OpSetOpcode(op, pcode.OpCbranch)
	target := store.NewVarnode(address.Address{Space: ram, Off: 0x100}, 4)
	_ = store.OpSetInput(op, target, 0)
	cond := store.NewVarnode(address.Address{Space: ram, Off: 0x30}, 1)
	_ = store.OpSetInput(op, cond, 1)

	s := unionscore.New()
	r := s.ScoreUnionFields(u, op, 1)
	if r.FieldNum != -1 {
		t.Errorf("expected whole-union interpretation to win, got field %d", r.FieldNum)
	}
}

// A locked edge must keep returning the same field on re-scoring.
func TestScoreUnionFieldsLockIsStable(t *testing.T) {
	_, ram := newRAM(t)
	store := pcode.NewStore()
	u := sampleUnion()

	op := store.NewOp(2, address.Address{Space: ram, Off: 0}, 0)
	store.OpSetOpcode(op, pcode.OpLoad)
	spaceConst := store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	_ = store.OpSetInput(op, spaceConst, 0)
	ptrVn := store.NewVarnode(address.Address{Space: ram, Off: 0x10}, 4)
	_ = store.OpSetInput(op, ptrVn, 1)

	s := unionscore.New()
	s.Lock(u, op, 1, 0)

	r1 := s.ScoreUnionFields(u, op, 1)
	r2 := s.ScoreUnionFields(u, op, 1)
	if r1.FieldNum != 0 || r2.FieldNum != 0 {
		t.Errorf("expected locked field 0 on both calls, got %d then %d", r1.FieldNum, r2.FieldNum)
	}
}

// Resolve must satisfy typeprop.Resolver's exact shape: given a parent
// union pointee it returns a concrete field type.
func TestResolveSatisfiesResolverShape(t *testing.T) {
	_, ram := newRAM(t)
	store := pcode.NewStore()
	u := sampleUnion()

	op := store.NewOp(2, address.Address{Space: ram, Off: 0}, 0)
	store.OpSetOpcode(op, pcode.OpLoad)
	spaceConst := store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	_ = store.OpSetInput(op, spaceConst, 0)
	ptrVn := store.NewVarnode(address.Address{Space: ram, Off: 0x10}, 4)
	_ = store.OpSetInput(op, ptrVn, 1)

	s := unionscore.New()
	got := s.Resolve(u, op, 1)
	if got == nil {
		t.Fatalf("expected a resolved type, got nil")
	}
}
