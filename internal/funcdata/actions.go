package funcdata

import (
	"github.com/Urethramancer/pcodec/internal/action"
	"github.com/Urethramancer/pcodec/internal/block"
	"github.com/Urethramancer/pcodec/internal/typeprop"
)

// structureAction runs the control-flow structurer once per reset
// cycle (spec section 4.4); like every Action here it reports 1 the
// first time it does real work and 0 afterward, so the owning Group
// settles to a fixed point without re-structuring an unchanged graph.
type structureAction struct {
	action.Base
	fd  *Funcdata
	ran bool
}

func newStructureAction(fd *Funcdata) *structureAction {
	return &structureAction{Base: action.NewBase("structure"), fd: fd}
}

func (a *structureAction) Reset(action.Function) {
	a.ran = false
	a.Base.Reset()
}

func (a *structureAction) Perform(action.Function) (int, error) {
	if a.ran || a.fd.CFG == nil {
		return 0, nil
	}
	a.fd.Structured = block.Structure(a.fd.CFG, a.fd.Merger)
	a.ran = true
	return 1, nil
}

// typePropagateAction runs the datatype propagator to its own
// fixpoint (spec section 4.2, "Propagation").
type typePropagateAction struct {
	action.Base
	fd  *Funcdata
	ran bool
}

func newTypePropagateAction(fd *Funcdata) *typePropagateAction {
	return &typePropagateAction{Base: action.NewBase("propagate types"), fd: fd}
}

func (a *typePropagateAction) Reset(action.Function) {
	a.ran = false
	a.Base.Reset()
}

func (a *typePropagateAction) Perform(action.Function) (int, error) {
	if a.ran {
		return 0, nil
	}
	if a.fd.Types == nil {
		a.fd.Types = typeprop.New(a.fd.Resolver)
	}
	passes := a.fd.Types.Run(a.fd.Ops())
	a.ran = true
	if passes == 0 {
		return 0, nil
	}
	return 1, nil
}

// mergeAction runs the speculative-then-required HighVariable merge
// (spec section 4.2, "Merging").
type mergeAction struct {
	action.Base
	fd  *Funcdata
	ran bool
}

func newMergeAction(fd *Funcdata) *mergeAction {
	return &mergeAction{Base: action.NewBase("merge"), fd: fd}
}

func (a *mergeAction) Reset(action.Function) {
	a.ran = false
	a.Base.Reset()
}

func (a *mergeAction) Perform(action.Function) (int, error) {
	if a.ran {
		return 0, nil
	}
	a.fd.Merger.SpeculativeMerge(a.fd.Store.AllVarnodes())
	a.fd.Merger.RequiredMerge(a.fd.Ops())
	a.ran = true
	return 1, nil
}
