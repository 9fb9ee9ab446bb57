// Package action implements the Action/Rule driver (spec section 4.3):
// a fixed-point scheduler over named, stateful transform passes, with
// start/action break points and resumable continuation.
//
// The driver never depends on internal/funcdata directly — like
// internal/typeprop's Resolver seam, Function is the minimal interface
// a Funcdata-shaped value must satisfy, so funcdata can import action
// without a cycle.
package action

import (
	"fmt"
	"io"

	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/xfail"
)

// Function is the subset of Funcdata every Action operates on.
type Function interface {
	Ops() []*pcode.PcodeOp
	ClearAnalysis()
	Warnf(format string, args ...any)
}

// BreakKind distinguishes the two break-point timings an Action
// supports (spec section 4.3): before it runs, or after it runs but
// only if it reported a change.
type BreakKind int

const (
	BreakStart BreakKind = iota
	BreakAction
)

// Status reports where a driver run currently sits relative to one
// Action.
type Status int

const (
	StatusStart Status = iota
	StatusMid
	StatusEnd
)

// Action is one named transform pass. Perform returns negative to
// signal a break, zero for "no change", positive for "changed, the
// enclosing group should repeat".
type Action interface {
	Name() string
	Reset(fn Function)
	Perform(fn Function) (int, error)
	SetBreakPoint(kind BreakKind, name string) bool
	GetStatus() Status
	PrintStatistics(w io.Writer)
	ResetStats()
}

// Base is embedded by concrete Actions to get the bookkeeping methods
// of the Action contract for free, the way the teacher's instruction
// variants share an embedded header (cpu/instructions.go).
type Base struct {
	name        string
	status      Status
	breakStart  bool
	breakAction bool
	passes      int
	changes     int
}

// NewBase creates a Base with the given name.
func NewBase(name string) Base { return Base{name: name} }

func (b *Base) Name() string { return b.name }

// Reset clears the per-run break-point status, re-arming a start
// break to fire the next time this Action's turn comes around.
// Concrete Actions embedding Base call this from their own Reset.
func (b *Base) Reset() { b.status = StatusStart }

// SetBreakPoint arms a break point on this Action if name matches,
// reporting whether it did.
func (b *Base) SetBreakPoint(kind BreakKind, name string) bool {
	if name != b.name {
		return false
	}
	switch kind {
	case BreakStart:
		b.breakStart = true
	case BreakAction:
		b.breakAction = true
	}
	return true
}

func (b *Base) GetStatus() Status { return b.status }

func (b *Base) PrintStatistics(w io.Writer) {
	fmt.Fprintf(w, "%s: %d passes, %d changes\n", b.name, b.passes, b.changes)
}

func (b *Base) ResetStats() {
	b.passes = 0
	b.changes = 0
}

// recordPass updates the embedded stats after one Perform call;
// Group.Perform calls it for every member Action that embeds *Base.
func (b *Base) recordPass(n int) {
	b.passes++
	if n > 0 {
		b.changes += n
	}
}

func (b *Base) hasBreakStart() bool  { return b.breakStart }
func (b *Base) hasBreakAction() bool { return b.breakAction }

// startBreakPending reports whether a start break is armed and has
// not yet fired since the last Reset -- false once it has already
// paused the driver once, so a resumed Perform runs the action
// instead of pausing on it forever.
func (b *Base) startBreakPending() bool {
	return b.breakStart && b.status == StatusStart
}

// markBrokeAtStart records that this Action's start break just fired,
// disarming the pending check (though breakStart itself stays armed
// for the next full Reset) and putting the Action in StatusMid until
// it is actually entered.
func (b *Base) markBrokeAtStart() { b.status = StatusMid }

// markEntered records that this Action has been performed at least
// once in the current driver run, past any start break.
func (b *Base) markEntered() { b.status = StatusEnd }

// breakChecker is satisfied by any Action embedding *Base; Group uses
// it to find an armed break point and to record pass statistics
// without knowing the concrete Action type.
type breakChecker interface {
	hasBreakStart() bool
	hasBreakAction() bool
	startBreakPending() bool
	markBrokeAtStart()
	markEntered()
	recordPass(n int)
}

// Group is itself an Action: a named, ordered sequence of Actions run
// to a fixed point (spec section 4.3, "repeats a group until a
// fixed-point pass yields zero change, then advances"). Because Group
// satisfies Action, groups nest: a sub-group converges fully before
// the parent's enclosing pass counts it as unchanged.
type Group struct {
	Base
	Actions []Action
	cursor  int
}

// NewGroup creates a Group of the given name running actions in order.
func NewGroup(name string, actions ...Action) *Group {
	return &Group{Base: NewBase(name), Actions: actions}
}

func (g *Group) Reset(fn Function) {
	g.Base.Reset()
	g.cursor = 0
	for _, a := range g.Actions {
		a.Reset(fn)
	}
}

// Perform runs member Actions in order, repeating the whole sequence
// until a pass makes no change, stopping early (without consuming
// further actions) if an Action errors, reports a break, or an armed
// break point fires. A resumed Perform (after a prior break) picks up
// at the action it stopped on rather than restarting the sequence.
func (g *Group) Perform(fn Function) (int, error) {
	total := 0
	start := g.cursor
	g.cursor = 0
	for {
		passChanged := 0
		broke := false
		for i := start; i < len(g.Actions); i++ {
			a := g.Actions[i]
			bp, isBreakChecker := a.(breakChecker)
			if isBreakChecker && bp.startBreakPending() {
				bp.markBrokeAtStart()
				g.cursor = i
				return total, nil
			}
			n, err := a.Perform(fn)
			if isBreakChecker {
				bp.markEntered()
				bp.recordPass(n)
			}
			if err != nil {
				g.cursor = i
				return total, err
			}
			if n < 0 {
				g.cursor = i
				return total, nil
			}
			passChanged += n
			if n > 0 {
				if isBreakChecker && bp.hasBreakAction() {
					g.cursor = i + 1
					broke = true
					break
				}
			}
		}
		start = 0
		total += passChanged
		if broke {
			return total, nil
		}
		if passChanged == 0 {
			break
		}
	}
	g.cursor = 0
	return total, nil
}

func (g *Group) Continue(fn Function) (int, error) { return g.Perform(fn) }

// Driver runs a root Group against a Function, applying the failure
// semantics of spec section 4.3: a fatal (low-level or decoder) error
// clears the function's analysis and is reported to the caller; other
// errors are reported without clearing.
type Driver struct {
	Root *Group
}

// NewDriver wraps root for top-level use.
func NewDriver(root *Group) *Driver { return &Driver{Root: root} }

// Run resets the group and performs it to completion (or to the first
// break point / error).
func (d *Driver) Run(fn Function) error {
	d.Root.Reset(fn)
	return d.step(fn)
}

// Continue resumes a previously broken-off run from where it stopped.
func (d *Driver) Continue(fn Function) error { return d.step(fn) }

func (d *Driver) step(fn Function) error {
	_, err := d.Root.Perform(fn)
	if err == nil {
		return nil
	}
	if e, ok := err.(*xfail.Error); ok && e.Kind.Fatal() {
		fn.ClearAnalysis()
		fn.Warnf("action %q aborted: %v", d.Root.Name(), err)
	}
	return err
}
