package pcode_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/pcode"
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

// Exercises the IR store invariant from spec section 8: for every op
// with inputs vi and output vo, vo.Def == op and each vi's
// descendants contains op exactly once.
func TestOpInputOutputInvariant(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x1000}

	a := s.NewVarnode(addr, 4)
	b := s.NewVarnode(addr.Add(4), 4)

	op := s.NewOp(2, addr, 0)
	s.OpSetOpcode(op, pcode.OpIntAdd)
	if err := s.OpSetInput(op, a, 0); err != nil {
		t.Fatalf("OpSetInput: %v", err)
	}
	if err := s.OpSetInput(op, b, 1); err != nil {
		t.Fatalf("OpSetInput: %v", err)
	}
	out := s.NewVarnode(addr.Add(8), 4)
	if err := s.OpSetOutput(op, out); err != nil {
		t.Fatalf("OpSetOutput: %v", err)
	}

	if out.Def != op {
		t.Errorf("expected out.Def == op")
	}
	for _, vn := range []*pcode.Varnode{a, b} {
		count := 0
		for _, d := range vn.Descendants() {
			if d == op {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected op in descendants exactly once, got %d", count)
		}
	}
}

func TestFreeWrittenInvariant(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x2000}

	vn := s.NewVarnode(addr, 4)
	if !vn.IsFree() {
		t.Errorf("fresh varnode should be free")
	}

	op := s.NewOp(0, addr, 0)
	if err := s.OpSetOutput(op, vn); err != nil {
		t.Fatalf("OpSetOutput: %v", err)
	}
	if vn.IsFree() {
		t.Errorf("written varnode must not be free")
	}
	if !vn.Flags.Has(pcode.FlagWritten) {
		t.Errorf("expected FlagWritten set")
	}
}

func TestOpDestroyDetachesDescendants(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x3000}

	a := s.NewVarnode(addr, 4)
	op := s.NewOp(1, addr, 0)
	s.OpSetOpcode(op, pcode.OpCopy)
	_ = s.OpSetInput(op, a, 0)
	out := s.NewVarnode(addr.Add(4), 4)
	_ = s.OpSetOutput(op, out)

	s.OpDestroy(op)

	if op.IsAlive() {
		t.Errorf("expected op to be dead after OpDestroy")
	}
	if len(a.Descendants()) != 0 {
		t.Errorf("expected a's descendants cleared, got %v", a.Descendants())
	}
	if out.Def != nil {
		t.Errorf("expected out.Def cleared")
	}
	if !out.IsFree() {
		t.Errorf("expected out free after its defining op was destroyed")
	}
}

func TestFindOpMissingSequenceNumber(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	_, err := s.FindOp(address.SeqNum{Addr: address.Address{Space: ram, Off: 0x9999}, Uniq: 0})
	if err == nil {
		t.Errorf("expected error for missing seqnum")
	}
}

func TestFindVarnodeWrittenMissing(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x4000}
	_, err := s.FindVarnodeWritten(4, addr, addr, address.AnyUniq)
	if err == nil {
		t.Errorf("expected 'varnode does not exist' error")
	}
}

func TestBeginOpAliveSkipsDestroyed(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x5000}

	op1 := s.NewOp(0, addr, 0)
	s.OpSetOpcode(op1, pcode.OpCopy)
	op2 := s.NewOp(0, addr.Add(2), 0)
	s.OpSetOpcode(op2, pcode.OpCopy)
	s.OpDestroy(op1)

	alive := s.BeginOpAlive()
	if len(alive) != 1 || alive[0] != op2 {
		t.Errorf("expected only op2 alive, got %v", alive)
	}
}

func TestBeginLocOrdersByCreationWhenUndefined(t *testing.T) {
	_, ram := newRAM(t)
	s := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x6000}

	v1 := s.NewVarnode(addr, 4)
	v2 := s.NewVarnode(addr, 4)

	got := s.BeginLoc(4, addr)
	if len(got) != 2 || got[0] != v1 || got[1] != v2 {
		t.Errorf("expected creation-order tie-break, got %v", got)
	}
}
