package printer

import (
	"strings"
	"testing"

	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/block"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/funcdata"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/proto"
	"github.com/Urethramancer/pcodec/internal/ssa"
)

func newTestFuncdata(t *testing.T) (*funcdata.Funcdata, *address.Space, *address.Manager) {
	t.Helper()
	mgr := address.NewManager()
	ram, err := mgr.AddSpace("ram", 'r', 1, 4, false, address.Processor)
	if err != nil {
		t.Fatal(err)
	}
	rule := &proto.StorageRule{
		Name:      "test",
		Registers: []address.Address{{Space: ram, Off: 0}},
		StackSlot: 4,
		Output:    address.Address{Space: ram, Off: 0},
	}
	arch := funcdata.NewArchitecture(mgr, rule)
	entry := address.Address{Space: ram, Off: 0x400}
	fd := arch.CreateFunction("calc", entry, 16)
	return fd, ram, mgr
}

func TestPrintCSingleBlockReturn(t *testing.T) {
	fd, ram, mgr := newTestFuncdata(t)

	cfg := ssa.NewGraph()
	bb := cfg.AddBlock()

	r0 := fd.Store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	fd.Store.MarkInput(r0)
	five := fd.Store.NewVarnode(mgr.ConstantAddress(5), 4)

	add := fd.Store.NewOp(2, address.Address{Space: ram, Off: 0x400}, 0)
	fd.Store.OpSetOpcode(add, pcode.OpIntAdd)
	_ = fd.Store.OpSetInput(add, r0, 0)
	_ = fd.Store.OpSetInput(add, five, 1)
	sum := fd.Store.NewUniqueOut(ram, 4, add)
	fd.Store.OpInsertEnd(add, bb)

	ret := fd.Store.NewOp(2, address.Address{Space: ram, Off: 0x404}, 0)
	fd.Store.OpSetOpcode(ret, pcode.OpReturn)
	_ = fd.Store.OpSetInput(ret, sum, 1)
	fd.Store.OpInsertEnd(ret, bb)

	bb.Ops = append(bb.Ops, add, ret)
	fd.SetFlow(cfg)
	fd.Structured = block.Structure(cfg, fd.Merger)

	var out strings.Builder
	if err := PrintC(fd, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "calc(") {
		t.Fatalf("expected the function name in the signature, got %q", text)
	}
	if !strings.Contains(text, "+") {
		t.Fatalf("expected an infix add expression, got %q", text)
	}
	if !strings.Contains(text, "return") {
		t.Fatalf("expected a return statement, got %q", text)
	}
}

func TestPrintCIfWithoutElseEmitsIfHeader(t *testing.T) {
	fd, ram, mgr := newTestFuncdata(t)

	cfg := ssa.NewGraph()
	head := cfg.AddBlock()
	then := cfg.AddBlock()
	join := cfg.AddBlock()
	cfg.AddEdge(head, then)
	cfg.AddEdge(head, join)
	cfg.AddEdge(then, join)

	r0 := fd.Store.NewVarnode(address.Address{Space: ram, Off: 0}, 4)
	fd.Store.MarkInput(r0)
	zero := fd.Store.NewVarnode(mgr.ConstantAddress(0), 4)

	cmp := fd.Store.NewOp(2, address.Address{Space: ram, Off: 0x400}, 0)
	fd.Store.OpSetOpcode(cmp, pcode.OpIntEqual)
	_ = fd.Store.OpSetInput(cmp, r0, 0)
	_ = fd.Store.OpSetInput(cmp, zero, 1)
	cond := fd.Store.NewUniqueOut(ram, 1, cmp)

	cbranch := fd.Store.NewOp(2, address.Address{Space: ram, Off: 0x402}, 0)
	fd.Store.OpSetOpcode(cbranch, pcode.OpCbranch)
	_ = fd.Store.OpSetInput(cbranch, zero, 0)
	_ = fd.Store.OpSetInput(cbranch, cond, 1)
	head.Ops = append(head.Ops, cmp, cbranch)

	ret := fd.Store.NewOp(1, address.Address{Space: ram, Off: 0x408}, 0)
	fd.Store.OpSetOpcode(ret, pcode.OpReturn)
	join.Ops = append(join.Ops, ret)

	fd.SetFlow(cfg)
	fd.Structured = block.Structure(cfg, fd.Merger)

	var out strings.Builder
	if err := PrintC(fd, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "if (") {
		t.Fatalf("expected an if header in the structured output, got %q", text)
	}
	if strings.Contains(text, "CBRANCH") {
		t.Fatalf("the branch op itself should never be printed as a statement, got %q", text)
	}
}

func TestPrintCReturnsErrorWithoutStructure(t *testing.T) {
	fd, _, _ := newTestFuncdata(t)
	var out strings.Builder
	if err := PrintC(fd, &out); err == nil {
		t.Fatal("expected an error printing a function with no structured control flow")
	}
}

func TestFormatIntRendersEachDirective(t *testing.T) {
	cases := []struct {
		name   string
		format func() string
		want   string
	}{
		{"hex", func() string { return FormatInt(255, false, 4, datatype.FormatHex) }, "0xff"},
		{"oct", func() string { return FormatInt(8, false, 4, datatype.FormatOct) }, "010"},
		{"bin", func() string { return FormatInt(5, false, 4, datatype.FormatBin) }, "0b101"},
		{"char", func() string { return FormatInt('A', false, 1, datatype.FormatChar) }, "'A'"},
	}
	for _, c := range cases {
		if got := c.format(); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
