package override_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/override"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

func TestForcedGotoOverridesDecodedTarget(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	s := override.New()

	from := address.Address{Space: ram, Off: 0x100}
	to := address.Address{Space: ram, Off: 0x200}
	s.ForceGoto(from, to)

	got, ok := s.ForcedGoto(from)
	if !ok || got != to {
		t.Errorf("expected forced goto to %v, got %v ok=%v", to, got, ok)
	}

	if _, ok := s.ForcedGoto(to); ok {
		t.Errorf("expected no forced goto registered at an unrelated address")
	}
}

func TestFlowKindAtDefaultsToUnchanged(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	s := override.New()
	addr := address.Address{Space: ram, Off: 0x10}

	if s.FlowKindAt(addr) != override.FlowUnchanged {
		t.Errorf("expected FlowUnchanged for an unregistered address")
	}
	s.SetFlowKind(addr, override.FlowReturn)
	if s.FlowKindAt(addr) != override.FlowReturn {
		t.Errorf("expected overridden flow kind to stick")
	}
}

func TestApplyCallDestroysOpAndReturnsFixupOps(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	store := pcode.NewStore()
	addr := address.Address{Space: ram, Off: 0x300}

	op := store.NewOp(0, addr, 0)
	store.OpSetOpcode(op, pcode.OpCall)
	if !op.IsAlive() {
		t.Fatalf("expected freshly created op to be alive")
	}

	fixupOp := store.NewOp(1, addr, 0)
	store.OpSetOpcode(fixupOp, pcode.OpCopy)

	s := override.New()
	s.SetCallFixup(addr, &override.Fixup{Name: "inline-memcpy", Ops: []*pcode.PcodeOp{fixupOp}})

	replacement := override.ApplyCall(s, store, op, addr)
	if len(replacement) != 1 || replacement[0] != fixupOp {
		t.Fatalf("expected the fixup's own ops back, got %v", replacement)
	}
	if op.IsAlive() {
		t.Errorf("expected the original CALL op destroyed after fixup application")
	}
}
