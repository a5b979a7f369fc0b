// Package assert provides the small set of checks test modules use.
// Each check returns nil or an ASSERTION_FAILURE error so that module
// bodies can propagate failures with ordinary error returns.
package assert

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// Equal fails when want and got differ. The message carries a
// go-cmp diff (-want +got).
func Equal(want, got any, msg ...string) error {
	if diff := cmp.Diff(want, got); diff != "" {
		return failure.Newf(failure.AssertionFailure, "%smismatch (-want +got):\n%s", prefix(msg), diff)
	}
	return nil
}

// True fails when cond is false.
func True(cond bool, msg ...string) error {
	if !cond {
		return failure.Newf(failure.AssertionFailure, "%sexpected condition to hold", prefix(msg))
	}
	return nil
}

// NoError fails when err is non-nil.
func NoError(err error, msg ...string) error {
	if err != nil {
		return failure.Wrap(failure.AssertionFailure, prefix(msg)+"unexpected error", err)
	}
	return nil
}

// ErrorContains fails unless err is non-nil and its message contains
// substr.
func ErrorContains(err error, substr string, msg ...string) error {
	if err == nil {
		return failure.Newf(failure.AssertionFailure, "%sexpected an error containing %q, got nil", prefix(msg), substr)
	}
	if !strings.Contains(err.Error(), substr) {
		return failure.Newf(failure.AssertionFailure, "%sexpected error containing %q, got %q", prefix(msg), substr, err.Error())
	}
	return nil
}

// Panics runs fn and fails unless it panics. The recovered value is
// returned for further checks.
func Panics(fn func(), msg ...string) (recovered any, err error) {
	func() {
		defer func() {
			recovered = recover()
		}()
		fn()
	}()
	if recovered == nil {
		return nil, failure.Newf(failure.AssertionFailure, "%sexpected a panic", prefix(msg))
	}
	return recovered, nil
}

func prefix(msg []string) string {
	if len(msg) == 0 || msg[0] == "" {
		return ""
	}
	return fmt.Sprintf("%s: ", strings.Join(msg, " "))
}
