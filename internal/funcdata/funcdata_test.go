package funcdata

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/action"
	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/proto"
	"github.com/Urethramancer/pcodec/internal/ssa"
	"github.com/Urethramancer/pcodec/internal/xfail"
)

func newTestArch(t *testing.T) *Architecture {
	t.Helper()
	mgr := address.NewManager()
	ram, err := mgr.AddSpace("ram", 'r', 1, 4, false, address.Processor)
	if err != nil {
		t.Fatal(err)
	}
	rule := &proto.StorageRule{
		Name:      "test",
		Registers: []address.Address{{Space: ram, Off: 0}, {Space: ram, Off: 4}},
		StackSpace: ram,
		StackSlot:  4,
		Output:     address.Address{Space: ram, Off: 0},
	}
	return NewArchitecture(mgr, rule)
}

func ramSpace(t *testing.T, arch *Architecture) *address.Space {
	t.Helper()
	sp, err := arch.Addr.Space("ram")
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

func TestCreateFunctionSeedsDefaults(t *testing.T) {
	arch := newTestArch(t)
	entry := address.Address{Space: ramSpace(t, arch), Off: 0x1000}
	fd := arch.CreateFunction("main", entry, 64)

	if fd.Scope.Parent != arch.Global {
		t.Fatal("expected the function's scope to be rooted at the architecture's global scope")
	}
	if fd.Proto == nil || fd.Overrides == nil || fd.Merger == nil || fd.Resolver == nil {
		t.Fatal("expected CreateFunction to seed prototype, overrides, merger and resolver")
	}
	got, ok := arch.Function(entry)
	if !ok || got != fd {
		t.Fatal("expected the architecture to recall the created function by entry address")
	}
}

func TestDecompileReachesFixedPointAndSetsHighOn(t *testing.T) {
	arch := newTestArch(t)
	entry := address.Address{Space: ramSpace(t, arch), Off: 0x1000}
	fd := arch.CreateFunction("f", entry, 16)

	cfg := ssa.NewGraph()
	cfg.AddBlock()
	fd.SetFlow(cfg)

	if err := fd.Decompile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fd.Structured == nil {
		t.Fatal("expected the structurer to have run")
	}
	if fd.Flags&FlagHighOn == 0 {
		t.Fatal("expected high_on to be set after a clean decompile")
	}

	if err := fd.Continue(); err != nil {
		t.Fatalf("unexpected error on continue: %v", err)
	}
}

func TestClearAnalysisKeepsStoreDropsDerivedState(t *testing.T) {
	arch := newTestArch(t)
	entry := address.Address{Space: ramSpace(t, arch), Off: 0x1000}
	fd := arch.CreateFunction("f", entry, 16)

	cfg := ssa.NewGraph()
	cfg.AddBlock()
	fd.SetFlow(cfg)
	vn := fd.Store.NewVarnode(address.Address{Space: ramSpace(t, arch), Off: 8}, 4)
	fd.Store.MarkInput(vn)

	if err := fd.Decompile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fd.ClearAnalysis()

	if fd.CFG != nil || fd.Structured != nil {
		t.Fatal("expected ClearAnalysis to drop the basic-block and structured graphs")
	}
	if fd.Flags&FlagHighOn != 0 {
		t.Fatal("expected ClearAnalysis to drop high_on")
	}
	if len(fd.Store.AllVarnodes()) != 1 {
		t.Fatal("expected ClearAnalysis to keep the raw IR store intact")
	}
}

type alwaysFatal struct{ action.Base }

func newAlwaysFatal() *alwaysFatal { return &alwaysFatal{Base: action.NewBase("boom")} }

func (a *alwaysFatal) Reset(action.Function) {}

func (a *alwaysFatal) Perform(action.Function) (int, error) {
	return 0, xfail.New(xfail.LowLevel, "missing p-code sequence number")
}

func TestDecompileAbortsAndWarnsOnFatalActionError(t *testing.T) {
	arch := newTestArch(t)
	entry := address.Address{Space: ramSpace(t, arch), Off: 0x1000}
	fd := arch.CreateFunction("f", entry, 16)

	cfg := ssa.NewGraph()
	cfg.AddBlock()
	fd.SetFlow(cfg)
	fd.Actions = action.NewGroup("decompile", newAlwaysFatal())

	err := fd.Decompile()
	if err == nil {
		t.Fatal("expected the fatal action error to propagate")
	}
	if len(fd.Warnings()) == 0 {
		t.Fatal("expected a warning to be recorded on abort")
	}
	if fd.CFG != nil {
		t.Fatal("expected the aborted function's analysis to be cleared")
	}
}
