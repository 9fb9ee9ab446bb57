package proto_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/proto"
)

func newRule(t *testing.T) (*address.Manager, *proto.StorageRule) {
	t.Helper()
	m := address.NewManager()
	reg, err := m.AddSpace("register", 'r', 1, 4, true, address.Processor)
	if err != nil {
		t.Fatalf("AddSpace register: %v", err)
	}
	stack, err := m.AddSpace("stack", 's', 1, 4, true, address.Spacebase)
	if err != nil {
		t.Fatalf("AddSpace stack: %v", err)
	}
	rule := &proto.StorageRule{
		Name: "cdecl-like",
		Registers: []address.Address{
			{Space: reg, Off: 0},
			{Space: reg, Off: 4},
		},
		StackSpace: stack,
		StackBase:  4,
		StackSlot:  4,
		Output:     address.Address{Space: reg, Off: 0},
	}
	return m, rule
}

func TestAssignParamsRegistersThenStack(t *testing.T) {
	_, rule := newRule(t)
	i4 := datatype.NewInt("int", 4, true)
	addrs := rule.AssignParams([]*datatype.Datatype{i4, i4, i4})
	if len(addrs) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(addrs))
	}
	if addrs[0] != rule.Registers[0] || addrs[1] != rule.Registers[1] {
		t.Errorf("expected first two params in registers, got %v %v", addrs[0], addrs[1])
	}
	if addrs[2].Space != rule.StackSpace || addrs[2].Off != rule.StackBase {
		t.Errorf("expected third param on the stack at base offset, got %v", addrs[2])
	}
}

func TestLockedInputPrototypeNotOverwrittenByMerge(t *testing.T) {
	_, rule := newRule(t)
	i4 := datatype.NewInt("int", 4, true)
	locked := proto.New(rule, 0, "", []*datatype.Datatype{i4}, nil)
	locked.Lock(true, false, false)

	inferred := proto.Infer(rule, []proto.CallSite{
		{ArgTypes: []*datatype.Datatype{i4, i4, i4}},
	})
	locked.Merge(inferred)

	if len(locked.Params) != 1 {
		t.Errorf("expected locked prototype's param count to survive merge, got %d", len(locked.Params))
	}
}

func TestUnlockedPrototypeAdoptsWiderInferredArgList(t *testing.T) {
	_, rule := newRule(t)
	i4 := datatype.NewInt("int", 4, true)
	p := proto.New(rule, 0, "", []*datatype.Datatype{i4}, nil)

	inferred := proto.Infer(rule, []proto.CallSite{
		{ArgTypes: []*datatype.Datatype{i4, i4, i4}},
	})
	p.Merge(inferred)

	if len(p.Params) != 3 {
		t.Errorf("expected unlocked prototype to adopt the wider inferred arg list, got %d", len(p.Params))
	}
	if len(p.ParamAddr) != 3 {
		t.Errorf("expected storage reassigned for the new param count, got %d", len(p.ParamAddr))
	}
}
