// Command pcodec drives the decompiler core's control API (spec
// section 6: clear analysis, perform actions, break points, print C,
// print statistics) over a small synthetic demo function built from
// an input image's leading bytes -- there is no SLEIGH loader in
// scope (spec section 9), so pcodec exercises the in-scope hooks
// directly rather than lifting real machine code.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grimdork/climate"
)

// options is the flag surface SPEC_FULL.md's Configuration section
// describes: a command name, the input image, an optional output
// path, and repeatable break-point flags.
type options struct {
	Command string   `arg:"positional,required" help:"decompile, continue or stats"`
	Input   string   `arg:"positional,required" help:"path to the input image"`
	Output  string   `arg:"-o,--output" help:"output path (stdout if omitted)"`
	Break   []string `arg:"--break,separate" help:"kind=name break point (start=NAME or action=NAME), repeatable"`
}

func main() {
	var opts options
	climate.MustParse(&opts)

	image, err := os.ReadFile(opts.Input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	points := make([]breakPoint, 0, len(opts.Break))
	for _, raw := range opts.Break {
		bp, err := parseBreakFlag(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		points = append(points, bp)
	}

	out := os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	name := strings.TrimSuffix(filepath.Base(opts.Input), filepath.Ext(opts.Input))

	var runErr error
	switch opts.Command {
	case "decompile":
		runErr = runDecompile(image, name, points, out)
	case "continue":
		runErr = runContinue(image, name, points, out)
	case "stats":
		runErr = runStats(image, name, out)
	default:
		runErr = fmt.Errorf("unknown command %q, want decompile, continue or stats", opts.Command)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
