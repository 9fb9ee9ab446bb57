// Package proto implements the calling-convention/prototype model
// (spec section 4.7): a storage assignment rule, extra-pop and
// evaluation category, with input/output/model lock states and
// inference-and-merge from observed callsite uses.
package proto

import (
	"github.com/Urethramancer/pcodec/internal/address"
	"github.com/Urethramancer/pcodec/internal/datatype"
)

// StorageClass names a class of parameter storage locations, tried in
// order the way the teacher's cpu/address.go walks addressing modes
// (register-direct first, memory-indirect as the fallback).
type StorageClass int

const (
	ClassRegister StorageClass = iota
	ClassStack
)

// StorageRule assigns Varnode storage to a parameter list and to a
// return value, generalizing one calling convention.
type StorageRule struct {
	Name     string
	Registers []address.Address // tried in order, one per eligible parameter
	StackSpace *address.Space
	StackBase  uint64 // first free stack offset after the return address
	StackSlot  int    // bytes per stack parameter slot
	Output     address.Address
}

// AssignParams assigns storage to each parameter type in order:
// one register per parameter from Registers while any remain, then
// stack slots. A parameter's type does not affect the choice: float
// parameters take the same registers as integers, since the
// decompiler core does not model separate float register banks.
func (r *StorageRule) AssignParams(types []*datatype.Datatype) []address.Address {
	out := make([]address.Address, len(types))
	stackOff := r.StackBase
	regIdx := 0
	for i := range types {
		if regIdx < len(r.Registers) {
			out[i] = r.Registers[regIdx]
			regIdx++
			continue
		}
		out[i] = address.Address{Space: r.StackSpace, Off: stackOff}
		stackOff += uint64(r.StackSlot)
	}
	return out
}

// AssignOutput returns the fixed output storage location for t.
func (r *StorageRule) AssignOutput(t *datatype.Datatype) address.Address { return r.Output }

// Category names an evaluation category: a label distinguishing
// prototype models that differ only in which register bank return
// values and floats use (spec section 4.7, "evaluation category").
type Category string

// Prototype is one function's calling-convention model.
type Prototype struct {
	Rule      *StorageRule
	ExtraPop  int
	Category  Category
	Params    []*datatype.Datatype
	ParamAddr []address.Address
	Output    *datatype.Datatype
	OutAddr   address.Address

	InputLocked  bool
	OutputLocked bool
	ModelLocked  bool
}

// New builds a Prototype from a parameter/output type list, assigning
// storage via rule.
func New(rule *StorageRule, extraPop int, category Category, params []*datatype.Datatype, output *datatype.Datatype) *Prototype {
	p := &Prototype{Rule: rule, ExtraPop: extraPop, Category: category, Params: params, Output: output}
	p.ParamAddr = rule.AssignParams(params)
	if output != nil {
		p.OutAddr = rule.AssignOutput(output)
	}
	return p
}

// Lock marks one or more lock states, making the corresponding fields
// ground truth that CallSite inference must not overwrite (spec
// section 4.7, "locked prototypes as ground truth").
func (p *Prototype) Lock(input, output, model bool) {
	p.InputLocked = p.InputLocked || input
	p.OutputLocked = p.OutputLocked || output
	p.ModelLocked = p.ModelLocked || model
}

// CallSite is one observed use of a function: the CALL's actual
// argument types and (if known) the type consuming its return value.
type CallSite struct {
	ArgTypes   []*datatype.Datatype
	ReturnType *datatype.Datatype
}

// Infer builds an unlocked Prototype from the widest observed
// callsite, a permissive starting point for a later merge.
func Infer(rule *StorageRule, sites []CallSite) *Prototype {
	maxArgs := 0
	for _, s := range sites {
		if len(s.ArgTypes) > maxArgs {
			maxArgs = len(s.ArgTypes)
		}
	}
	params := make([]*datatype.Datatype, maxArgs)
	for _, s := range sites {
		for i, t := range s.ArgTypes {
			if params[i] == nil && t != nil {
				params[i] = t
			}
		}
	}
	var output *datatype.Datatype
	for _, s := range sites {
		if s.ReturnType != nil {
			output = s.ReturnType
			break
		}
	}
	return New(rule, 0, "", params, output)
}

// Merge folds an inferred Prototype's unlocked fields into p; locked
// fields on p are never overwritten (spec section 4.7, "produce
// prototypes... merged when a produce-prototypes pass is run").
func (p *Prototype) Merge(inferred *Prototype) {
	if !p.InputLocked {
		if len(inferred.Params) > len(p.Params) {
			p.Params = inferred.Params
			p.ParamAddr = p.Rule.AssignParams(p.Params)
		}
	}
	if !p.OutputLocked && p.Output == nil && inferred.Output != nil {
		p.Output = inferred.Output
		p.OutAddr = p.Rule.AssignOutput(p.Output)
	}
}
