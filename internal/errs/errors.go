// Package errs classifies failures into the handful of kinds the rest of the
// program reacts to differently: reject, block, retry, or report.
package errs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

type Kind int

const (
	UnexpectedFailure Kind = iota
	InvalidInput
	DependencyMissing
	TransientToolFailure
	ProcessTimeout
	ProcessStalled
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case DependencyMissing:
		return "dependency missing"
	case TransientToolFailure:
		return "transient tool failure"
	case ProcessTimeout:
		return "process timeout"
	case ProcessStalled:
		return "process stalled"
	default:
		return "unexpected failure"
	}
}

// Error carries a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Explicitly tagged errors win; otherwise
// timeouts and non-zero exits are transient and a missing binary is a
// missing dependency.
func KindOf(err error) Kind {
	if err == nil {
		return UnexpectedFailure
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientToolFailure
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return TransientToolFailure
	}
	if errors.Is(err, exec.ErrNotFound) {
		return DependencyMissing
	}
	return UnexpectedFailure
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
