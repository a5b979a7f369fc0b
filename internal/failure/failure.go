// Package failure defines the failure taxonomy for bindcheck.
//
// Every error that can end a run maps to exactly one Class, which
// determines the process exit code.
package failure

import (
	"errors"
	"fmt"
)

// Class is a stable failure category.
type Class string

const (
	InvalidArgument   Class = "INVALID_ARGUMENT"
	ExpectationUnmet  Class = "EXPECTATION_UNMET"
	AssertionFailure  Class = "ASSERTION_FAILURE"
	SetupFailure      Class = "SETUP_FAILURE"
	MissingCapability Class = "MISSING_CAPABILITY"
	Usage             Class = "USAGE"
)

// ExitCode returns the process exit code for this failure class.
func (c Class) ExitCode() int {
	switch c {
	case SetupFailure, MissingCapability, Usage:
		return 2
	default:
		return 1
	}
}

// Error is the structured error type for bindcheck failures.
type Error struct {
	Class   Class
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given class and message.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(class Class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// ClassOf returns the class of the outermost *Error in err's chain.
// Errors outside the taxonomy are treated as assertion failures, since
// anything a test body returns is a failed check.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return AssertionFailure
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}

// ExitCode maps err to a process exit code; nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return ClassOf(err).ExitCode()
}
