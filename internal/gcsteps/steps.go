// Package gcsteps runs ordered test steps that can force garbage
// collection between them, so a later step observes the effects of
// finalizers triggered by an earlier one.
package gcsteps

import (
	"context"
	"fmt"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// Kind identifies what a Step does.
type Kind int

// Step kinds.
const (
	KindLabel Kind = iota
	KindWork
	KindVerify
	KindCollect
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindWork:
		return "work"
	case KindVerify:
		return "verify"
	case KindCollect:
		return "collect"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Step is one entry in a step sequence.
type Step struct {
	Kind  Kind
	Title string
	fn    func(ctx context.Context) error
}

// Label names the steps that follow it. It does no work.
func Label(title string) Step {
	return Step{Kind: KindLabel, Title: title}
}

// Do is a work step.
func Do(fn func(ctx context.Context) error) Step {
	return Step{Kind: KindWork, fn: fn}
}

// Verify is a check meant to run after a Collect. It behaves exactly
// like Do.
func Verify(fn func(ctx context.Context) error) Step {
	return Step{Kind: KindVerify, fn: fn}
}

// Collect forces a collection with the runner's Collector.
func Collect() Step {
	return Step{Kind: KindCollect}
}

// Flat builds a sequence from a loosely typed list. Strings become
// labels; func(), func() error and func(context.Context) error become
// work steps; Steps pass through.
func Flat(items ...any) ([]Step, error) {
	steps := make([]Step, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Step:
			steps = append(steps, v)
		case string:
			steps = append(steps, Label(v))
		case func():
			steps = append(steps, Do(func(context.Context) error {
				v()
				return nil
			}))
		case func() error:
			steps = append(steps, Do(func(context.Context) error { return v() }))
		case func(context.Context) error:
			steps = append(steps, Do(v))
		default:
			return nil, failure.Newf(failure.InvalidArgument,
				"step %d: unsupported item of type %T", i, item)
		}
	}
	return steps, nil
}

// StepError reports the step that stopped a sequence.
type StepError struct {
	// Label is the title of the nearest preceding Label, if any.
	Label string

	// Index is the position of the failing step in the sequence.
	Index int

	// Kind is the failing step's kind.
	Kind Kind

	Err error
}

func (e *StepError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("step %d (%s) %q: %v", e.Index, e.Kind, e.Label, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
