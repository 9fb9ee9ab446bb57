package main

import (
	"fmt"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/funcdata"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/proto"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

// maxAccumulate bounds how many bytes of an input image the demo
// function folds into its accumulator, keeping the printed output
// readable regardless of image size.
const maxAccumulate = 8

// buildDemoFunction builds a tiny one-block function out of an input
// image's leading bytes (an accumulator chain ending in a return),
// standing in for the SSA-lifting front end spec.md places outside
// the core (section 9, "SLEIGH loader, disassembly front end"): this
// driver exists to exercise the control API (clear analysis, perform
// actions, break points, print C/statistics) end to end, not to lift
// real machine code.
func buildDemoFunction(name string, image []byte) (*funcdata.Architecture, *funcdata.Funcdata) {
	mgr := address.NewManager()
	ram, err := mgr.AddSpace("ram", 'r', 1, 4, false, address.Processor)
	if err != nil {
		panic(fmt.Sprintf("pcodec: building the demo address space: %v", err))
	}
	rule := &proto.StorageRule{
		Name:      "demo",
		Registers: []address.Address{{Space: ram, Off: 0}},
		StackSlot: 4,
		Output:    address.Address{Space: ram, Off: 0},
	}
	arch := funcdata.NewArchitecture(mgr, rule)
	entry := address.Address{Space: ram, Off: 0}
	fd := arch.CreateFunction(name, entry, len(image))
	fd.Proto.Output = datatype.NewInt("int", 4, true)
	fd.Proto.OutputLocked = true

	cfg := ssa.NewGraph()
	bb := cfg.AddBlock()

	acc := fd.Store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	fd.Store.MarkInput(acc)
	zero := fd.Store.NewVarnode(mgr.ConstantAddress(0), 4)

	seed := fd.Store.NewOp(1, address.Address{Space: ram, Off: 0}, 0)
	fd.Store.OpSetOpcode(seed, pcode.OpCopy)
	_ = fd.Store.OpSetInput(seed, zero, 0)
	cur := fd.Store.NewUniqueOut(mgr.Unique(), 4, seed)
	bb.Ops = append(bb.Ops, seed)

	n := len(image)
	if n > maxAccumulate {
		n = maxAccumulate
	}
	for i := 0; i < n; i++ {
		lit := fd.Store.NewVarnode(mgr.ConstantAddress(uint64(image[i])), 4)
		add := fd.Store.NewOp(2, address.Address{Space: ram, Off: uint64(2 + i)}, 0)
		fd.Store.OpSetOpcode(add, pcode.OpIntAdd)
		_ = fd.Store.OpSetInput(add, cur, 0)
		_ = fd.Store.OpSetInput(add, lit, 1)
		cur = fd.Store.NewUniqueOut(mgr.Unique(), 4, add)
		bb.Ops = append(bb.Ops, add)
	}

	// RETURN's slot 0 is reserved for the call-fixup return-address
	// marker (spec section 4.6); the value itself sits at slot 1, the
	// convention internal/printer's statement rendering assumes.
	ret := fd.Store.NewOp(2, address.Address{Space: ram, Off: uint64(2 + n)}, 0)
	fd.Store.OpSetOpcode(ret, pcode.OpReturn)
	_ = fd.Store.OpSetInput(ret, cur, 1)
	bb.Ops = append(bb.Ops, ret)

	fd.SetFlow(cfg)
	return arch, fd
}
