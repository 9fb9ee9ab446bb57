package action_test

import (
	"testing"

	"github.com/Urethramancer/pcodec/internal/action"
	"github.com/Urethramancer/pcodec/internal/pcode"
	"github.com/Urethramancer/pcodec/internal/xfail"
)

func lowLevelErr() error { return xfail.New(xfail.LowLevel, "invariant violated") }

// fakeFunc is a minimal action.Function for driver tests.
type fakeFunc struct {
	cleared  bool
	warnings []string
}

func (f *fakeFunc) Ops() []*pcode.PcodeOp { return nil }
func (f *fakeFunc) ClearAnalysis()        { f.cleared = true }
func (f *fakeFunc) Warnf(format string, args ...any) {
	f.warnings = append(f.warnings, format)
}

// countdown reports one change per call until its budget reaches
// zero, then reports no change — a minimal Action used to drive the
// group to a fixed point deterministically.
type countdown struct {
	action.Base
	budget int
	calls  int
}

func newCountdown(name string, budget int) *countdown {
	return &countdown{Base: action.NewBase(name), budget: budget}
}

func (c *countdown) Reset(fn action.Function) {
	c.calls = 0
	c.Base.Reset()
}

func (c *countdown) Perform(fn action.Function) (int, error) {
	c.calls++
	if c.budget <= 0 {
		return 0, nil
	}
	c.budget--
	return 1, nil
}

func TestGroupRunsToFixedPoint(t *testing.T) {
	a := newCountdown("a", 2)
	b := newCountdown("b", 0)
	g := action.NewGroup("root", a, b)
	d := action.NewDriver(g)

	fn := &fakeFunc{}
	if err := d.Run(fn); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// a needs 3 passes to exhaust its budget (2 changes then 1 no-change
	// pass); b is called once per pass alongside it.
	if a.calls < 3 {
		t.Errorf("expected at least 3 calls to exhaust countdown, got %d", a.calls)
	}
	if b.calls != a.calls {
		t.Errorf("expected b called once per pass alongside a, got a=%d b=%d", a.calls, b.calls)
	}
}

// failing always errors with a low-level (fatal) xfail error.
type failing struct {
	action.Base
}

func (f *failing) Reset(fn action.Function) {}
func (f *failing) Perform(fn action.Function) (int, error) {
	return 0, lowLevelErr()
}

func TestDriverClearsAnalysisOnFatalError(t *testing.T) {
	g := action.NewGroup("root", &failing{Base: action.NewBase("failing")})
	d := action.NewDriver(g)
	fn := &fakeFunc{}

	err := d.Run(fn)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !fn.cleared {
		t.Errorf("expected ClearAnalysis to be called for a fatal error")
	}
	if len(fn.warnings) == 0 {
		t.Errorf("expected a warning to be recorded")
	}
}

func TestSetBreakPointStopsBeforeNamedAction(t *testing.T) {
	a := newCountdown("a", 1)
	b := newCountdown("b", 1)
	g := action.NewGroup("root", a, b)
	if !b.SetBreakPoint(action.BreakStart, "b") {
		t.Fatalf("expected SetBreakPoint to match action b")
	}
	d := action.NewDriver(g)
	fn := &fakeFunc{}

	if err := d.Run(fn); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.calls != 0 {
		t.Errorf("expected b never called before its start break point, got %d calls", b.calls)
	}
	if a.calls == 0 {
		t.Errorf("expected a to have run before the break")
	}
}

func TestContinueAfterStartBreakFinishes(t *testing.T) {
	a := newCountdown("a", 1)
	b := newCountdown("b", 2)
	g := action.NewGroup("root", a, b)
	if !b.SetBreakPoint(action.BreakStart, "b") {
		t.Fatalf("expected SetBreakPoint to match action b")
	}
	d := action.NewDriver(g)
	fn := &fakeFunc{}

	if err := d.Run(fn); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.calls != 0 {
		t.Fatalf("expected b never called before its start break point, got %d calls", b.calls)
	}

	if err := d.Continue(fn); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if b.calls == 0 {
		t.Fatalf("expected Continue to resume past the start break and run b")
	}
	if b.budget != 0 {
		t.Fatalf("expected Continue to run b to its own fixed point, got budget %d", b.budget)
	}
}
