package main

import (
	"strings"
	"testing"

	"github.com/Urethramancer/pcodec/internal/action"
)

func TestParseBreakFlagAcceptsBothKinds(t *testing.T) {
	bp, err := parseBreakFlag("action=merge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.Kind != action.BreakAction || bp.Name != "merge" {
		t.Fatalf("got %+v", bp)
	}

	bp, err = parseBreakFlag("start=structure")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.Kind != action.BreakStart || bp.Name != "structure" {
		t.Fatalf("got %+v", bp)
	}
}

func TestParseBreakFlagRejectsMalformedOrUnknownKind(t *testing.T) {
	if _, err := parseBreakFlag("merge"); err == nil {
		t.Fatal("expected an error for a flag with no '='")
	}
	if _, err := parseBreakFlag("maybe=merge"); err == nil {
		t.Fatal("expected an error for an unknown break kind")
	}
}

func TestRunDecompilePrintsStructuredC(t *testing.T) {
	var out strings.Builder
	if err := runDecompile([]byte{1, 2, 3}, "sum3", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "sum3(") {
		t.Fatalf("expected the function name in the output, got %q", text)
	}
	if !strings.Contains(text, "return") {
		t.Fatalf("expected a return statement, got %q", text)
	}
}

func TestRunDecompileRejectsUnknownBreakName(t *testing.T) {
	var out strings.Builder
	points := []breakPoint{{Kind: action.BreakAction, Name: "does-not-exist"}}
	if err := runDecompile([]byte{1}, "f", points, &out); err == nil {
		t.Fatal("expected an error arming a break point on an unknown action name")
	}
}

func TestRunDecompileStopsAtArmedStartBreak(t *testing.T) {
	var out strings.Builder
	points := []breakPoint{{Kind: action.BreakStart, Name: "structure"}}
	if err := runDecompile([]byte{1, 2}, "f", points, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "{") {
		t.Fatalf("expected no structured output once broken before structuring ran, got %q", out.String())
	}
}

func TestRunContinueResumesPastAnArmedBreak(t *testing.T) {
	// A break-after-action point on "structure" lets that action run
	// once (so Decompile already produces a structured graph) and then
	// pauses before the remaining actions; Continue should pick up
	// right after it and settle to the same fixed point Decompile
	// would have reached unbroken.
	var out strings.Builder
	points := []breakPoint{{Kind: action.BreakAction, Name: "structure"}}
	if err := runContinue([]byte{1, 2}, "f", points, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "f(") {
		t.Fatalf("expected the continued run to finish and print C, got %q", out.String())
	}
}

func TestRunStatsReportsEveryAction(t *testing.T) {
	var out strings.Builder
	if err := runStats([]byte{1, 2}, "f", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"structure", "propagate types", "merge"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected stats output to mention %q, got %q", want, out.String())
		}
	}
}
