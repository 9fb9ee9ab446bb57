// Package override implements the per-function Override set (spec
// section 4.6): forced gotos, jumptable targets, flow-kind overrides,
// prototype overrides, dead-code-delay overrides, call-fixups and
// callother-fixups, applied during flow tracing and propagation.
package override

import (
	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/proto"
)

// FlowKind overrides the branch classification a decoder would
// otherwise assign to an op at a given address (spec section 4.6,
// "flow overrides rewrite an op's flow kind").
type FlowKind int

const (
	FlowUnchanged FlowKind = iota
	FlowCall
	FlowCallReturn
	FlowBranch
	FlowReturn
)

// Fixup is a compiled p-code snippet substituted for a CALL or
// CALLOTHER op (spec section 4.6, "call-fixups"/"callother-fixups").
type Fixup struct {
	Name string
	Ops  []*pcode.PcodeOp
}

// Set holds every override registered for one function.
type Set struct {
	forcedGoto   map[address.Address]address.Address
	jumptable    map[address.Address][]address.Address
	flowKind     map[address.Address]FlowKind
	protoOverride map[address.Address]*proto.Prototype
	deadCodeDelay map[address.Address]bool
	callFixup    map[address.Address]*Fixup
	otherFixup   map[string]*Fixup
}

// New creates an empty Set.
func New() *Set {
	return &Set{
		forcedGoto:    make(map[address.Address]address.Address),
		jumptable:     make(map[address.Address][]address.Address),
		flowKind:      make(map[address.Address]FlowKind),
		protoOverride: make(map[address.Address]*proto.Prototype),
		deadCodeDelay: make(map[address.Address]bool),
		callFixup:     make(map[address.Address]*Fixup),
		otherFixup:    make(map[string]*Fixup),
	}
}

// ForceGoto registers that the branch at from must target to
// regardless of what the decoder computed.
func (s *Set) ForceGoto(from, to address.Address) { s.forcedGoto[from] = to }

// ForcedGoto returns the overridden target for from, if any.
func (s *Set) ForcedGoto(from address.Address) (address.Address, bool) {
	to, ok := s.forcedGoto[from]
	return to, ok
}

// SetJumptable registers the known target list for an indirect branch
// at addr, so flow tracing need not resolve it from data.
func (s *Set) SetJumptable(addr address.Address, targets []address.Address) {
	s.jumptable[addr] = targets
}

// Jumptable returns the registered targets for an indirect branch.
func (s *Set) Jumptable(addr address.Address) ([]address.Address, bool) {
	t, ok := s.jumptable[addr]
	return t, ok
}

// SetFlowKind overrides the branch classification of the op at addr.
func (s *Set) SetFlowKind(addr address.Address, kind FlowKind) { s.flowKind[addr] = kind }

// FlowKindAt returns the overridden flow kind at addr, or
// FlowUnchanged if none was registered.
func (s *Set) FlowKindAt(addr address.Address) FlowKind {
	if k, ok := s.flowKind[addr]; ok {
		return k
	}
	return FlowUnchanged
}

// SetPrototype replaces the call-spec at a specific callsite (spec
// section 4.6, "prototype overrides replace the call-spec at a
// specific callsite").
func (s *Set) SetPrototype(callsite address.Address, p *proto.Prototype) {
	s.protoOverride[callsite] = p
}

// PrototypeAt returns the overridden prototype for a callsite, if any.
func (s *Set) PrototypeAt(callsite address.Address) (*proto.Prototype, bool) {
	p, ok := s.protoOverride[callsite]
	return p, ok
}

// MarkDeadCodeDelay records that the instruction at addr has a
// delay-slot side effect that must be preserved even though flow
// analysis would otherwise treat it as dead.
func (s *Set) MarkDeadCodeDelay(addr address.Address) { s.deadCodeDelay[addr] = true }

// IsDeadCodeDelay reports whether addr was marked.
func (s *Set) IsDeadCodeDelay(addr address.Address) bool { return s.deadCodeDelay[addr] }

// SetCallFixup registers a compiled snippet that replaces the CALL at
// addr with inline semantics.
func (s *Set) SetCallFixup(addr address.Address, f *Fixup) { s.callFixup[addr] = f }

// CallFixupAt returns the fixup registered for the CALL at addr.
func (s *Set) CallFixupAt(addr address.Address) (*Fixup, bool) {
	f, ok := s.callFixup[addr]
	return f, ok
}

// SetOtherFixup registers a fixup for a named CALLOTHER user-defined
// operation.
func (s *Set) SetOtherFixup(name string, f *Fixup) { s.otherFixup[name] = f }

// OtherFixup returns the fixup registered for a CALLOTHER name.
func (s *Set) OtherFixup(name string) (*Fixup, bool) {
	f, ok := s.otherFixup[name]
	return f, ok
}

// ApplyCall substitutes op in place with its call-fixup's ops, if one
// is registered for op's address; it returns the replacement ops, or
// nil if there is no fixup (op is left untouched).
func ApplyCall(s *Set, store *pcode.Store, op *pcode.PcodeOp, addr address.Address) []*pcode.PcodeOp {
	fx, ok := s.CallFixupAt(addr)
	if !ok {
		return nil
	}
	store.OpDestroy(op)
	return fx.Ops
}
