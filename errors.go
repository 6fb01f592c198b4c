package recall

import (
	"errors"
	"fmt"
)

// Sentinel errors for common engine error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNoProviders indicates that no layer providers were registered.
	// The engine refuses to construct without at least one: a recall
	// engine with nothing to recall from is a configuration bug, not a
	// runtime condition.
	ErrNoProviders = errors.New("no layer providers registered")

	// ErrInvalidConfig indicates the provided configuration is invalid
	// or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the engine has been shut down.
	ErrClosed = errors.New("engine is closed")
)

// Error kinds categorize errors by their type.
const (
	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindExecution represents errors that occur during execution.
	KindExecution = "execution"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindInternal represents internal engine errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with the
// operation that failed and the category of failure.
//
// Error implements the error interface and supports unwrapping, making it
// compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g. "New", "Engine.Recall").
	Op string

	// Kind categorizes the error (e.g. KindConfiguration).
	Kind string

	// Err is the underlying error that caused this error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recall: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("recall: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches either another *Error with the same Kind (and Op, when the
// target specifies one) or the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			return t.Op == "" || e.Op == t.Op
		}
	}
	return errors.Is(e.Err, target)
}

// newConfigurationError creates an Error with KindConfiguration.
func newConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}
