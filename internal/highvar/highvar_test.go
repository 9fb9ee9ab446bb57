package highvar_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/highvar"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

func TestRequiredMergeJoinsPhiOperands(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	store := pcode.NewStore()
	g := ssa.NewGraph()
	blk := g.AddBlock()

	phi := store.NewOp(2, address.Address{Space: ram, Off: 0}, 0)
	store.OpSetOpcode(phi, pcode.OpMultiequal)
	a := store.NewVarnode(address.Address{Space: ram, Off: 0x10}, 4)
	b := store.NewVarnode(address.Address{Space: ram, Off: 0x20}, 4)
	_ = store.OpSetInput(phi, a, 0)
	_ = store.OpSetInput(phi, b, 1)
	out := store.NewVarnode(address.Address{Space: ram, Off: 0x30}, 4)
	_ = store.OpSetOutput(phi, out)
	store.OpInsertEnd(phi, blk)

	mg := highvar.NewMerger()
	mg.RequiredMerge([]*pcode.PcodeOp{phi})

	ha, hb, hout := mg.Of(a), mg.Of(b), mg.Of(out)
	if ha != hb || hb != hout {
		t.Errorf("expected phi operands and output merged into one HighVariable")
	}
}

func TestIsolatedBlocksSpeculativeMerge(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	store := pcode.NewStore()

	addr := address.Address{Space: ram, Off: 0x100}
	a := store.NewVarnode(addr, 4)
	b := store.NewVarnode(addr, 4)

	mg := highvar.NewMerger()
	mg.MarkIsolated(a)
	mg.SpeculativeMerge([]*pcode.Varnode{a, b})

	if mg.Of(a) != nil && mg.Of(b) != nil && mg.Of(a) == mg.Of(b) {
		t.Errorf("expected isolated varnode not merged with same-address sibling")
	}
}

func TestSpeculativeMergeSameAddress(t *testing.T) {
	m := address.NewManager()
	ram, _ := m.AddSpace("ram", 'r', 1, 4, true, address.Processor)
	store := pcode.NewStore()

	addr := address.Address{Space: ram, Off: 0x200}
	a := store.NewVarnode(addr, 4)
	b := store.NewVarnode(addr, 4)

	mg := highvar.NewMerger()
	mg.SpeculativeMerge([]*pcode.Varnode{a, b})

	if mg.Of(a) == nil || mg.Of(a) != mg.Of(b) {
		t.Errorf("expected same-address varnodes with compatible (empty) covers to merge")
	}
}
