// Package printer renders a structured Funcdata as C-like text (spec
// section 4's printing pipeline and the "print C" hook of section 6's
// control API), following the teacher's disassembler/disassemble.go
// "strings.Builder + fmt.Fprintf, one statement per line" idiom.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/Urethramancer/pcodec/internal/block"
	"github.com/Urethramancer/pcodec/internal/datatype"
	"github.com/Urethramancer/pcodec/internal/funcdata"
	"github.com/Urethramancer/pcodec/internal/pcode"
)

// opSymbol maps the opcodes printing renders as an infix operator to
// their C spelling; opcodes absent here print either in one of the
// prefix forms expression handles itself (copy, cast, negation, load,
// pointer arithmetic) or as a call expression (e.g. "INT_CARRY(a, b)").
var opSymbol = map[pcode.Opcode]string{
	pcode.OpIntEqual:      "==",
	pcode.OpIntNotEqual:   "!=",
	pcode.OpIntLess:       "<",
	pcode.OpIntSless:      "<",
	pcode.OpIntLessEqual:  "<=",
	pcode.OpIntSlessEqual: "<=",
	pcode.OpIntAdd:        "+",
	pcode.OpIntSub:        "-",
	pcode.OpIntXor:        "^",
	pcode.OpIntAnd:        "&",
	pcode.OpIntOr:         "|",
	pcode.OpIntLeft:       "<<",
	pcode.OpIntRight:      ">>",
	pcode.OpIntSright:     ">>",
	pcode.OpIntMult:       "*",
	pcode.OpIntDiv:        "/",
	pcode.OpIntSdiv:       "/",
	pcode.OpIntRem:        "%",
	pcode.OpIntSrem:       "%",
	pcode.OpBoolXor:       "^",
	pcode.OpBoolAnd:       "&&",
	pcode.OpBoolOr:        "||",
	pcode.OpFloatEqual:    "==",
	pcode.OpFloatNotEqual: "!=",
	pcode.OpFloatLess:     "<",
	pcode.OpFloatLessEqual: "<=",
	pcode.OpFloatAdd:      "+",
	pcode.OpFloatSub:      "-",
	pcode.OpFloatMult:     "*",
	pcode.OpFloatDiv:      "/",
}

// Printer carries the per-function context the C emitter consults
// while walking a structured Graph: the type propagator for operand
// types and the HighVariable merger for variable names (a
// HighVariable's Symbol supplies its name and display format); the
// function's local scope is not consulted.
type Printer struct {
	fd     *funcdata.Funcdata
	seen   map[int]bool
	indent int
}

// PrintC renders fd's structured control flow as a C-like function
// body to w. fd.Structured must already be built (funcdata.Decompile
// having run the structure action).
func PrintC(fd *funcdata.Funcdata, w io.Writer) error {
	if fd.Structured == nil {
		return fmt.Errorf("printer: %s has no structured control flow", fd.Name)
	}
	p := &Printer{fd: fd, seen: make(map[int]bool)}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s(%s)\n{\n", p.returnTypeName(), fd.Name, p.paramList())
	p.indent++
	for _, top := range fd.Structured.Blocks {
		if p.seen[top.ID()] {
			continue
		}
		p.printBlock(&b, top)
	}
	p.indent--
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Printer) returnTypeName() string {
	if p.fd.Proto == nil || p.fd.Proto.Output == nil {
		return "void"
	}
	return TypeName(p.fd.Proto.Output)
}

func (p *Printer) paramList() string {
	if p.fd.Proto == nil || len(p.fd.Proto.Params) == 0 {
		return "void"
	}
	parts := make([]string, len(p.fd.Proto.Params))
	for i, param := range p.fd.Proto.Params {
		parts[i] = fmt.Sprintf("%s p%d", TypeName(param), i)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) pad() string { return strings.Repeat("    ", p.indent) }

// printBlock dispatches on b.Kind, emitting the matching C construct
// (spec section 4.4's block-variant-to-text mapping).
func (p *Printer) printBlock(w *strings.Builder, b *block.FlowBlock) {
	if p.seen[b.ID()] {
		return
	}
	p.seen[b.ID()] = true

	switch b.Kind {
	case block.KindBasic:
		p.printBasic(w, b)

	case block.KindList:
		for _, c := range b.Children {
			p.printBlock(w, c)
		}

	case block.KindIf:
		cond := p.conditionText(b.Children[0], b.Negate[0])
		fmt.Fprintf(w, "%sif (%s) {\n", p.pad(), cond)
		p.printBasicOnly(w, b.Children[0])
		p.indent++
		p.printBlock(w, b.Children[1])
		p.indent--
		fmt.Fprintf(w, "%s}\n", p.pad())

	case block.KindIfElse:
		cond := p.conditionText(b.Children[0], false)
		fmt.Fprintf(w, "%sif (%s) {\n", p.pad(), cond)
		p.printBasicOnly(w, b.Children[0])
		p.indent++
		p.printBlock(w, b.Children[1])
		p.indent--
		fmt.Fprintf(w, "%s} else {\n", p.pad())
		p.indent++
		p.printBlock(w, b.Children[2])
		p.indent--
		fmt.Fprintf(w, "%s}\n", p.pad())

	case block.KindCondition:
		for _, c := range b.Children {
			p.printBasicOnly(w, c)
		}
		cond := p.orConditionText(b)
		fmt.Fprintf(w, "%sif (%s) {\n", p.pad(), cond)
		fmt.Fprintf(w, "%s}\n", p.pad())

	case block.KindWhileDo:
		cond := p.conditionText(b.Children[0], false)
		p.printBasicOnly(w, b.Children[0])
		fmt.Fprintf(w, "%swhile (%s) {\n", p.pad(), cond)
		p.indent++
		p.printBlock(w, b.Children[1])
		p.indent--
		fmt.Fprintf(w, "%s}\n", p.pad())

	case block.KindDoWhile:
		fmt.Fprintf(w, "%sdo {\n", p.pad())
		p.indent++
		for _, c := range b.Children {
			p.printBlock(w, c)
		}
		p.indent--
		tail := b.Children[len(b.Children)-1]
		cond := p.conditionText(tail, false)
		fmt.Fprintf(w, "%s} while (%s);\n", p.pad(), cond)

	case block.KindInfLoop:
		fmt.Fprintf(w, "%sfor (;;) {\n", p.pad())
		p.indent++
		p.printBlock(w, b.Children[0])
		p.indent--
		fmt.Fprintf(w, "%s}\n", p.pad())

	case block.KindSwitch:
		p.printSwitch(w, b)

	case block.KindGoto:
		for _, c := range b.Children {
			p.printBlock(w, c)
		}
		if len(b.Out) == 1 {
			fmt.Fprintf(w, "%sgoto loc_%d;\n", p.pad(), b.Out[0].To.ID())
		}

	default:
		fmt.Fprintf(w, "%s/* unhandled block kind %s */\n", p.pad(), b.Kind)
	}
}

// printBasicOnly emits a clause block's statements without recursing
// into further structure, used where the caller has already decided
// the block is purely a conditional test (its CBRANCH is consumed by
// the if/while/do-while header, not printed as a statement).
func (p *Printer) printBasicOnly(w *strings.Builder, b *block.FlowBlock) {
	if b.Kind != block.KindBasic {
		p.printBlock(w, b)
		return
	}
	p.seen[b.ID()] = true
	ops := b.Basic.Ops
	if len(ops) > 0 && ops[len(ops)-1].Opcode == pcode.OpCbranch {
		ops = ops[:len(ops)-1]
	}
	p.printOps(w, b, ops)
}

func (p *Printer) printBasic(w *strings.Builder, b *block.FlowBlock) {
	fmt.Fprintf(w, "%sloc_%d:\n", p.pad(), b.ID())
	p.printOps(w, b, b.Basic.Ops)
}

func (p *Printer) printOps(w *strings.Builder, b *block.FlowBlock, ops []*pcode.PcodeOp) {
	for _, op := range ops {
		if stmt, ok := p.statement(op); ok {
			fmt.Fprintf(w, "%s%s\n", p.pad(), stmt)
		}
	}
}

// conditionText renders the CBRANCH condition of a clause block,
// negating it when negate (a Negate[] slot set by ruleBlockProperIf)
// says the printed sense is opposite the taken edge.
func (p *Printer) conditionText(b *block.FlowBlock, negate bool) string {
	if b.Kind != block.KindBasic || len(b.Basic.Ops) == 0 {
		return "1"
	}
	last := b.Basic.Ops[len(b.Basic.Ops)-1]
	if last.Opcode != pcode.OpCbranch || len(last.Inputs) < 2 {
		return "1"
	}
	text := p.operand(last.Inputs[1])
	if negate {
		return "!(" + text + ")"
	}
	return text
}

// orConditionText renders a KindCondition(Or) composite's combined
// clause, applying each child's own negation slot.
func (p *Printer) orConditionText(b *block.FlowBlock) string {
	parts := make([]string, len(b.Children))
	for i, c := range b.Children {
		neg := i < len(b.Negate) && b.Negate[i]
		parts[i] = p.conditionText(c, neg)
	}
	op := "||"
	if b.CondOp == block.CondAnd {
		op = "&&"
	}
	return strings.Join(parts, " "+op+" ")
}

func (p *Printer) printSwitch(w *strings.Builder, b *block.FlowBlock) {
	header := b.Children[0]
	p.printBasicOnly(w, header)
	expr := "0"
	if header.Kind == block.KindBasic && len(header.Basic.Ops) > 0 {
		last := header.Basic.Ops[len(header.Basic.Ops)-1]
		if last.Opcode == pcode.OpBranchind {
			expr = p.operand(last.Inputs[0])
		}
	}
	fmt.Fprintf(w, "%sswitch (%s) {\n", p.pad(), expr)
	for i, c := range b.Children[1:] {
		fmt.Fprintf(w, "%scase %d:\n", p.pad(), i)
		p.indent++
		p.printBlock(w, c)
		fmt.Fprintf(w, "%sbreak;\n", p.pad())
		p.indent--
	}
	fmt.Fprintf(w, "%s}\n", p.pad())
}

// statement renders one PcodeOp as a C-like statement; ops with no
// source-level meaning of their own (MULTIEQUAL, INDIRECT, the
// branch family) are skipped, their effect already expressed by the
// structure surrounding them.
func (p *Printer) statement(op *pcode.PcodeOp) (string, bool) {
	if !op.IsAlive() || op.IsMarker() {
		return "", false
	}
	switch op.Opcode {
	case pcode.OpBranch, pcode.OpCbranch, pcode.OpBranchind:
		return "", false

	case pcode.OpReturn:
		if len(op.Inputs) > 1 {
			return fmt.Sprintf("return %s;", p.operand(op.Inputs[1])), true
		}
		return "return;", true

	case pcode.OpStore:
		return fmt.Sprintf("*%s = %s;", p.operand(op.Inputs[1]), p.operand(op.Inputs[2])), true

	case pcode.OpCall, pcode.OpCallind, pcode.OpCallother:
		return p.callStatement(op), true

	default:
		return p.assignStatement(op), true
	}
}

func (p *Printer) callStatement(op *pcode.PcodeOp) string {
	args := make([]string, 0, len(op.Inputs))
	start := 0
	if op.Opcode != pcode.OpCall {
		start = 1
	}
	for _, in := range op.Inputs[start:] {
		args = append(args, p.operand(in))
	}
	call := fmt.Sprintf("%s(%s)", op.Opcode.Info().Name, strings.Join(args, ", "))
	if op.Output != nil {
		return fmt.Sprintf("%s = %s;", p.operand(op.Output), call)
	}
	return call + ";"
}

func (p *Printer) assignStatement(op *pcode.PcodeOp) string {
	rhs := p.expression(op)
	if op.Output == nil {
		return rhs + ";"
	}
	return fmt.Sprintf("%s = %s;", p.operand(op.Output), rhs)
}

// expression renders op's right-hand side: an infix operator when one
// applies, otherwise a call-shaped rendering of the opcode name.
func (p *Printer) expression(op *pcode.PcodeOp) string {
	if sym, ok := opSymbol[op.Opcode]; ok && len(op.Inputs) == 2 {
		return fmt.Sprintf("%s %s %s", p.operand(op.Inputs[0]), sym, p.operand(op.Inputs[1]))
	}
	switch op.Opcode {
	case pcode.OpCopy, pcode.OpCast:
		return p.operand(op.Inputs[0])
	case pcode.OpIntNeg, pcode.OpFloatNeg:
		return "-" + p.operand(op.Inputs[0])
	case pcode.OpIntNot:
		return "~" + p.operand(op.Inputs[0])
	case pcode.OpBoolNegate:
		return "!" + p.operand(op.Inputs[0])
	case pcode.OpLoad:
		return "*" + p.operand(op.Inputs[1])
	case pcode.OpPtradd, pcode.OpPtrsub:
		return fmt.Sprintf("%s + %s", p.operand(op.Inputs[0]), p.operand(op.Inputs[1]))
	}
	args := make([]string, len(op.Inputs))
	for i, in := range op.Inputs {
		args[i] = p.operand(in)
	}
	return fmt.Sprintf("%s(%s)", op.Opcode.Info().Name, strings.Join(args, ", "))
}

// operand renders one Varnode reference, preferring its HighVariable
// or symbol name over a raw storage address (spec section 4, "names
// come from the merged HighVariable, not the SSA value").
func (p *Printer) operand(vn *pcode.Varnode) string {
	if vn == nil {
		return "?"
	}
	var sym *datatype.Symbol
	if p.fd.Merger != nil {
		if hv := p.fd.Merger.Of(vn); hv != nil && hv.Symbol != nil {
			sym = hv.Symbol
		}
	}
	base := VarnodeText(vn, sym)
	if sym != nil {
		if field, ok := ConvertedFieldName(p.operandType(vn), sym); ok {
			return base + "." + field
		}
	}
	return base
}

func (p *Printer) operandType(vn *pcode.Varnode) *datatype.Datatype {
	if p.fd.Types == nil {
		return nil
	}
	return p.fd.Types.TypeOf(vn)
}
