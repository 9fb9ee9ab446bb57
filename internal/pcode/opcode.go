// Package pcode implements the IR store (spec section 4.1): Varnode
// and PcodeOp storage, stable handles, and the mutation API that
// keeps the def-use graph consistent.
//
// Per-opcode behavior is modeled as a data table, not a class
// hierarchy (spec section 9, "Deep class hierarchies"): Opcode is an
// int, and OpInfo carries its type-effect shape, commutativity and
// branch kind as plain fields. This generalizes the teacher's own
// cpu/instructions.go opcode-constant-table idiom and cpu/decode.go's
// "switch on opcode bits, fill a plain struct" Decode pattern to a
// three-address opcode table.
package pcode

// Opcode enumerates the p-code operation set (spec section 3,
// "Opcode set").
type Opcode int

const (
	OpCopy Opcode = iota
	OpLoad
	OpStore
	OpBranch
	OpCbranch
	OpBranchind
	OpCall
	OpCallind
	OpCallother
	OpReturn
	OpIntEqual
	OpIntNotEqual
	OpIntLess
	OpIntSless
	OpIntLessEqual
	OpIntSlessEqual
	OpIntAdd
	OpIntSub
	OpIntCarry
	OpIntScarry
	OpIntSborrow
	OpIntNeg
	OpIntNot
	OpIntXor
	OpIntAnd
	OpIntOr
	OpIntLeft
	OpIntRight
	OpIntSright
	OpIntMult
	OpIntDiv
	OpIntSdiv
	OpIntRem
	OpIntSrem
	OpIntZext
	OpIntSext
	OpBoolNegate
	OpBoolXor
	OpBoolAnd
	OpBoolOr
	OpFloatEqual
	OpFloatNotEqual
	OpFloatLess
	OpFloatLessEqual
	OpFloatAdd
	OpFloatSub
	OpFloatMult
	OpFloatDiv
	OpFloatNeg
	OpFloatAbs
	OpFloatSqrt
	OpFloatInt2float
	OpFloatFloat2float
	OpFloatTrunc
	OpFloatNan
	OpMultiequal
	OpIndirect
	OpPiece
	OpSubpiece
	OpCast
	OpPtradd
	OpPtrsub
	OpSegmentop
	opcodeCount
)

// BranchKind distinguishes how an opcode affects control flow.
type BranchKind int

const (
	NotBranch BranchKind = iota
	UnconditionalBranch
	ConditionalBranch
	IndirectBranch
	CallBranch
	ReturnBranch
)

// OpInfo is the per-opcode strategy record: pure data describing type
// effects, commutativity and branch kind, consulted by the
// propagator, the scorer and the structurer instead of any virtual
// dispatch on op subclasses.
type OpInfo struct {
	Name        string
	NumInputs   int // -1 means variable arity (e.g. MULTIEQUAL, CALL)
	HasOutput   bool
	Commutative bool
	Branch      BranchKind
	IsMarker    bool // MULTIEQUAL / INDIRECT
	IsFloat     bool
	IsBoolOut   bool // output is always a 1-byte boolean
}

var opInfo = [opcodeCount]OpInfo{
	OpCopy:             {Name: "COPY", NumInputs: 1, HasOutput: true},
	OpLoad:             {Name: "LOAD", NumInputs: 2, HasOutput: true},
	OpStore:            {Name: "STORE", NumInputs: 3, HasOutput: false},
	OpBranch:           {Name: "BRANCH", NumInputs: 1, Branch: UnconditionalBranch},
	OpCbranch:          {Name: "CBRANCH", NumInputs: 2, Branch: ConditionalBranch},
	OpBranchind:        {Name: "BRANCHIND", NumInputs: 1, Branch: IndirectBranch},
	OpCall:             {Name: "CALL", NumInputs: -1, Branch: CallBranch},
	OpCallind:          {Name: "CALLIND", NumInputs: -1, Branch: CallBranch},
	OpCallother:        {Name: "CALLOTHER", NumInputs: -1, HasOutput: true},
	OpReturn:           {Name: "RETURN", NumInputs: -1, Branch: ReturnBranch},
	OpIntEqual:         {Name: "INT_EQUAL", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpIntNotEqual:      {Name: "INT_NOTEQUAL", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpIntLess:          {Name: "INT_LESS", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntSless:         {Name: "INT_SLESS", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntLessEqual:     {Name: "INT_LESSEQUAL", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntSlessEqual:    {Name: "INT_SLESSEQUAL", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntAdd:           {Name: "INT_ADD", NumInputs: 2, HasOutput: true, Commutative: true},
	OpIntSub:           {Name: "INT_SUB", NumInputs: 2, HasOutput: true},
	OpIntCarry:         {Name: "INT_CARRY", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpIntScarry:        {Name: "INT_SCARRY", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntSborrow:       {Name: "INT_SBORROW", NumInputs: 2, HasOutput: true, IsBoolOut: true},
	OpIntNeg:           {Name: "INT_NEG", NumInputs: 1, HasOutput: true},
	OpIntNot:           {Name: "INT_NOT", NumInputs: 1, HasOutput: true},
	OpIntXor:           {Name: "INT_XOR", NumInputs: 2, HasOutput: true, Commutative: true},
	OpIntAnd:           {Name: "INT_AND", NumInputs: 2, HasOutput: true, Commutative: true},
	OpIntOr:            {Name: "INT_OR", NumInputs: 2, HasOutput: true, Commutative: true},
	OpIntLeft:          {Name: "INT_LEFT", NumInputs: 2, HasOutput: true},
	OpIntRight:         {Name: "INT_RIGHT", NumInputs: 2, HasOutput: true},
	OpIntSright:        {Name: "INT_SRIGHT", NumInputs: 2, HasOutput: true},
	OpIntMult:          {Name: "INT_MULT", NumInputs: 2, HasOutput: true, Commutative: true},
	OpIntDiv:           {Name: "INT_DIV", NumInputs: 2, HasOutput: true},
	OpIntSdiv:          {Name: "INT_SDIV", NumInputs: 2, HasOutput: true},
	OpIntRem:           {Name: "INT_REM", NumInputs: 2, HasOutput: true},
	OpIntSrem:          {Name: "INT_SREM", NumInputs: 2, HasOutput: true},
	OpIntZext:          {Name: "INT_ZEXT", NumInputs: 1, HasOutput: true},
	OpIntSext:          {Name: "INT_SEXT", NumInputs: 1, HasOutput: true},
	OpBoolNegate:       {Name: "BOOL_NEGATE", NumInputs: 1, HasOutput: true, IsBoolOut: true},
	OpBoolXor:          {Name: "BOOL_XOR", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpBoolAnd:          {Name: "BOOL_AND", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpBoolOr:           {Name: "BOOL_OR", NumInputs: 2, HasOutput: true, Commutative: true, IsBoolOut: true},
	OpFloatEqual:       {Name: "FLOAT_EQUAL", NumInputs: 2, HasOutput: true, Commutative: true, IsFloat: true, IsBoolOut: true},
	OpFloatNotEqual:    {Name: "FLOAT_NOTEQUAL", NumInputs: 2, HasOutput: true, Commutative: true, IsFloat: true, IsBoolOut: true},
	OpFloatLess:        {Name: "FLOAT_LESS", NumInputs: 2, HasOutput: true, IsFloat: true, IsBoolOut: true},
	OpFloatLessEqual:   {Name: "FLOAT_LESSEQUAL", NumInputs: 2, HasOutput: true, IsFloat: true, IsBoolOut: true},
	OpFloatAdd:         {Name: "FLOAT_ADD", NumInputs: 2, HasOutput: true, Commutative: true, IsFloat: true},
	OpFloatSub:         {Name: "FLOAT_SUB", NumInputs: 2, HasOutput: true, IsFloat: true},
	OpFloatMult:        {Name: "FLOAT_MULT", NumInputs: 2, HasOutput: true, Commutative: true, IsFloat: true},
	OpFloatDiv:         {Name: "FLOAT_DIV", NumInputs: 2, HasOutput: true, IsFloat: true},
	OpFloatNeg:         {Name: "FLOAT_NEG", NumInputs: 1, HasOutput: true, IsFloat: true},
	OpFloatAbs:         {Name: "FLOAT_ABS", NumInputs: 1, HasOutput: true, IsFloat: true},
	OpFloatSqrt:        {Name: "FLOAT_SQRT", NumInputs: 1, HasOutput: true, IsFloat: true},
	OpFloatInt2float:   {Name: "FLOAT_INT2FLOAT", NumInputs: 1, HasOutput: true, IsFloat: true},
	OpFloatFloat2float: {Name: "FLOAT_FLOAT2FLOAT", NumInputs: 1, HasOutput: true, IsFloat: true},
	OpFloatTrunc:       {Name: "FLOAT_TRUNC", NumInputs: 1, HasOutput: true},
	OpFloatNan:         {Name: "FLOAT_NAN", NumInputs: 1, HasOutput: true, IsFloat: true, IsBoolOut: true},
	OpMultiequal:       {Name: "MULTIEQUAL", NumInputs: -1, HasOutput: true, IsMarker: true},
	OpIndirect:         {Name: "INDIRECT", NumInputs: 2, HasOutput: true, IsMarker: true},
	OpPiece:            {Name: "PIECE", NumInputs: 2, HasOutput: true},
	OpSubpiece:         {Name: "SUBPIECE", NumInputs: 2, HasOutput: true},
	OpCast:             {Name: "CAST", NumInputs: 1, HasOutput: true},
	OpPtradd:           {Name: "PTRADD", NumInputs: 3, HasOutput: true},
	OpPtrsub:           {Name: "PTRSUB", NumInputs: 2, HasOutput: true},
	OpSegmentop:        {Name: "SEGMENTOP", NumInputs: 3, HasOutput: true},
}

// Info returns the strategy record for op, or the zero record if op
// is out of range.
func (op Opcode) Info() OpInfo {
	if int(op) < 0 || int(op) >= len(opInfo) {
		return OpInfo{Name: "<invalid>"}
	}
	return opInfo[op]
}

func (op Opcode) String() string { return op.Info().Name }
