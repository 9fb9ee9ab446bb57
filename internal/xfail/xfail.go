// Package xfail implements the decompiler's closed error taxonomy.
//
// Errors fall into five kinds (spec section 7): parse, execution,
// low-level, decoder and recovery errors. Parse, execution and
// recovery errors are recovered locally by whatever issued them;
// low-level and decoder errors abort analysis of the current function.
package xfail

import "fmt"

// Kind classifies an error for the driver's abort policy.
type Kind int

const (
	// Parse marks a malformed grammar/address/type input. Never fatal.
	Parse Kind = iota
	// Execution marks a semantic failure (unknown symbol, no function
	// loaded, bad range). Analysis state is left untouched.
	Execution
	// LowLevel marks a violated IR invariant. Aborts the current
	// function: analysis is cleared, a warning issued.
	LowLevel
	// Decoder marks corrupt encoded input. Same abort path as LowLevel.
	Decoder
	// Recov marks a recovery failure scoped to one function, with no
	// damage to the architecture. Treated like Execution by callers
	// that don't care about function-vs-architecture scope.
	Recov
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case Execution:
		return "execution"
	case LowLevel:
		return "low-level"
	case Decoder:
		return "decoder"
	case Recov:
		return "recovery"
	default:
		return "unknown"
	}
}

// Error is a classified decompiler failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target matches this error's kind, so callers can
// write errors.Is(err, xfail.LowLevelKind) style checks against the
// sentinel values below (an *Error with an empty Msg).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

// New builds a classified error from a formatted message, with no
// wrapped cause (see Wrap for that).
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error under kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Fatal reports whether an error of this kind aborts the current
// function's analysis (low-level and decoder errors only).
func (k Kind) Fatal() bool {
	return k == LowLevel || k == Decoder
}

// sentinel kind markers usable with errors.Is.
var (
	ParseKind     = &Error{Kind: Parse}
	ExecutionKind = &Error{Kind: Execution}
	LowLevelKind  = &Error{Kind: LowLevel}
	DecoderKind   = &Error{Kind: Decoder}
	RecovKind     = &Error{Kind: Recov}
)
