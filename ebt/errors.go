package ebt

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies an Error into one of the error kinds spec'd for the
// admin tool. The CLI layer maps each kind to a one-line diagnostic and
// a process exit code; nothing below this package inspects the kind for
// control flow other than that mapping.
type ErrKind int

const (
	// KindConfig covers malformed CLI input, unknown options, bad
	// values, conflicting commands, names that are too long, and
	// policies that are invalid for a chain's kind.
	KindConfig ErrKind = iota

	// KindResolve covers lookups that fail: unknown table, chain,
	// target, match or watcher name.
	KindResolve

	// KindReference covers attempts to delete a chain that is still
	// jumped to, or to name a new chain so it collides with another
	// chain or a registered target name.
	KindReference

	// KindLoop covers a UDC jump graph that contains a cycle.
	KindLoop

	// KindCorrupt covers a blob or atomic file that fails a bounds or
	// invariant check while being parsed.
	KindCorrupt

	// KindTransport covers the classifier being unavailable, a
	// module-load failure, or a permission error talking to it.
	KindTransport

	// KindIO covers atomic-file open/read/write failures.
	KindIO

	// KindOutOfMemory covers allocation failure.
	KindOutOfMemory

	// KindBug covers an internal invariant violation. It should never
	// fire; its presence signals an implementation fault, not
	// misuse.
	KindBug
)

func (k ErrKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindResolve:
		return "resolve"
	case KindReference:
		return "reference"
	case KindLoop:
		return "loop"
	case KindCorrupt:
		return "corrupt"
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindOutOfMemory:
		return "out-of-memory"
	case KindBug:
		return "bug"
	default:
		return "unknown"
	}
}

// Error is a single-line, kind-tagged diagnostic. The admin process is
// single-shot (§7): any Error short-circuits the command to a non-zero
// exit after printing Error() once.
type Error struct {
	Kind  ErrKind
	cause error
}

// newError builds an Error of the given kind, wrapping msg (formatted
// with args) with a stack via pkg/errors so the cause can be inspected
// in logs without leaking the stack into the CLI's one-line output.
func newError(kind ErrKind, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(msg, args...)}
}

// wrapError annotates an existing error with a kind and message, keeping
// the original error as the pkg/errors cause chain.
func wrapError(kind ErrKind, err error, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Wrapf(err, msg, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func errConfig(msg string, args ...interface{}) *Error {
	return newError(KindConfig, msg, args...)
}

func errResolve(msg string, args ...interface{}) *Error {
	return newError(KindResolve, msg, args...)
}

func errReference(msg string, args ...interface{}) *Error {
	return newError(KindReference, msg, args...)
}

func errLoop(msg string, args ...interface{}) *Error {
	return newError(KindLoop, msg, args...)
}

func errCorrupt(msg string, args ...interface{}) *Error {
	return newError(KindCorrupt, msg, args...)
}

func errBug(msg string, args ...interface{}) *Error {
	return newError(KindBug, msg, args...)
}

// NewError builds a kind-tagged Error for callers outside this package
// (transport, cmd/ebtables) that need to raise one of the §7 error
// kinds without duplicating pkg/errors wiring.
func NewError(kind ErrKind, msg string, args ...interface{}) *Error {
	return newError(kind, msg, args...)
}

// WrapError annotates an existing error with a kind, keeping err as the
// pkg/errors cause chain, for callers outside this package.
func WrapError(kind ErrKind, err error, msg string, args ...interface{}) *Error {
	return wrapError(kind, err, msg, args...)
}
