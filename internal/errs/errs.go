// Package errs defines the classified failure taxonomy for gateway updates.
//
// Every failure the update procedure can surface carries exactly one Kind so
// callers can distinguish "nothing was mutated" failures from failures that
// required (or defeated) a rollback without parsing message strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an update failure.
type Kind string

const (
	NotAGitRepository Kind = "not-a-git-repository"
	RepositoryState   Kind = "repository-state"
	Network           Kind = "network"
	VersionResolution Kind = "version-resolution"
	Checkout          Kind = "checkout"
	AssetRestore      Kind = "asset-restore"
	Build             Kind = "build"
	HealthCheck       Kind = "health-check"
	Timeout           Kind = "timeout"
	UpdateInProgress  Kind = "update-in-progress"
	RollbackFailed    Kind = "rollback-failed"
)

// Error is a classified update failure. Stderr holds captured process stderr
// when the failure came from an external command.
type Error struct {
	Kind   Kind
	Op     string // failing operation, e.g. "gitrepo.FetchAll"
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. A nil cause is allowed when the classification
// itself is the whole story.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithStderr attaches captured stderr and returns e for chaining.
func (e *Error) WithStderr(stderr string) *Error {
	e.Stderr = stderr
	return e
}

// KindOf returns the Kind of the outermost classified error in err's chain,
// or the empty Kind if none is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
