package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Urethramancer/pcodec/internal/action"
	"github.com/Urethramancer/pcodec/internal/funcdata"
	"github.com/Urethramancer/pcodec/internal/printer"
)

// breakPoint is one parsed "-break kind=name" flag (spec section 6's
// control API, "set a break point").
type breakPoint struct {
	Kind action.BreakKind
	Name string
}

// parseBreakFlag parses a single "-break" flag value. It accepts
// "start=NAME" and "action=NAME", naming the two BreakKind timings
// spec section 4.3 defines.
func parseBreakFlag(s string) (breakPoint, error) {
	kind, name, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return breakPoint{}, fmt.Errorf("malformed -break flag %q, want kind=name", s)
	}
	switch kind {
	case "start":
		return breakPoint{Kind: action.BreakStart, Name: name}, nil
	case "action":
		return breakPoint{Kind: action.BreakAction, Name: name}, nil
	default:
		return breakPoint{}, fmt.Errorf("unknown break kind %q, want start or action", kind)
	}
}

// applyBreakPoints arms every parsed break point against fd's action
// group, erroring if a name matches none of them.
func applyBreakPoints(fd *funcdata.Funcdata, points []breakPoint) error {
	if len(points) == 0 {
		return nil
	}
	if fd.Actions == nil {
		fd.BuildActions()
	}
	for _, bp := range points {
		armed := false
		for _, a := range fd.Actions.Actions {
			if a.SetBreakPoint(bp.Kind, bp.Name) {
				armed = true
			}
		}
		if !armed {
			return fmt.Errorf("no action named %q to break on", bp.Name)
		}
	}
	return nil
}

// runDecompile drives one function to completion or its first break
// point and prints the resulting structured C, mirroring spec section
// 6's "decompile" control-API hook.
func runDecompile(image []byte, name string, points []breakPoint, out io.Writer) error {
	_, fd := buildDemoFunction(name, image)
	if err := applyBreakPoints(fd, points); err != nil {
		return err
	}
	if err := fd.Decompile(); err != nil {
		return err
	}
	if fd.Structured == nil {
		fmt.Fprintf(out, "%s: stopped at a break point before structuring ran\n", fd.Name)
		return nil
	}
	return printer.PrintC(fd, out)
}

// runContinue demonstrates the resumable half of the control API: it
// arms the caller's break points, runs to the first one, then resumes
// to completion within the same process (spec section 4.3's
// "Continue resumes a previously broken run").
func runContinue(image []byte, name string, points []breakPoint, out io.Writer) error {
	_, fd := buildDemoFunction(name, image)
	if err := applyBreakPoints(fd, points); err != nil {
		return err
	}
	if err := fd.Decompile(); err != nil {
		return err
	}
	if err := fd.Continue(); err != nil {
		return err
	}
	if fd.Structured == nil {
		return fmt.Errorf("%s: never reached structuring after continue", fd.Name)
	}
	return printer.PrintC(fd, out)
}

// runStats decompiles and prints each action's pass/change counters
// (spec section 6's "print statistics" hook; SUPPLEMENTED FEATURES'
// per-rule apply counts).
func runStats(image []byte, name string, out io.Writer) error {
	_, fd := buildDemoFunction(name, image)
	if err := fd.Decompile(); err != nil {
		fd.PrintStatistics(out)
		return err
	}
	fd.PrintStatistics(out)
	return nil
}
