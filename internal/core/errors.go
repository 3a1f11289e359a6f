package core

import (
	"errors"
	"fmt"
)

// Predefined errors returned by nestq terminal operations.
var (
	// ErrUnsafeUpdate is returned when Update is called on a context with no filter.
	ErrUnsafeUpdate = errors.New("nestq: update requires a filter; use UpdateAll when every row should change")
	// ErrUpdateAllDenied is returned when UpdateAll is called without the allow option.
	ErrUpdateAllDenied = errors.New("nestq: UpdateAll is not enabled; configure the context with WithAllowUpdateAll")
	// ErrUnsafeDelete is returned when Delete is called on a context with no filter.
	ErrUnsafeDelete = errors.New("nestq: delete requires a filter")
	// ErrTruncateDenied is returned when Truncate is called without the allow option.
	ErrTruncateDenied = errors.New("nestq: Truncate is not enabled; configure the context with WithAllowTruncate")
	// ErrEmptyRecord is returned when an insert or update has no writable columns.
	ErrEmptyRecord = errors.New("nestq: record has no writable columns")
	// ErrSkipWithoutTake is returned when an offset is configured without a limit.
	ErrSkipWithoutTake = errors.New("nestq: Skip requires Take")
)

// BuildError reports malformed builder usage: unparsable limits, conflicting
// grouping and projection, references to undeclared relationships or unknown
// columns. It is recorded on the fork where the misuse happened and returned
// by the terminal operation.
type BuildError struct {
	Op     string
	Reason string
}

func (e *BuildError) Error() string {
	return "nestq: " + e.Op + ": " + e.Reason
}

func buildErrf(op, format string, args ...any) *BuildError {
	return &BuildError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// CommandError wraps an executor failure with the compiled command context.
type CommandError struct {
	Table     string
	Operation Operation
	SQL       string
	// Raw is the interpolated, human-readable command. It is never executed.
	Raw string
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("nestq: %s on %q failed: %v", e.Operation, e.Table, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
