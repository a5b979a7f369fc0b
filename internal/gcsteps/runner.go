package gcsteps

import (
	"context"
	"errors"
	"io"

	charmlog "github.com/charmbracelet/log"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// Runner executes step sequences one step at a time.
type Runner struct {
	collector      Collector
	logger         *charmlog.Logger
	collectBetween bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for step progress. Steps are logged at
// debug level.
func WithLogger(l *charmlog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithCollectBetweenSteps makes the runner collect before every work
// and verify step.
func WithCollectBetweenSteps() Option {
	return func(r *Runner) { r.collectBetween = true }
}

// NewRunner returns a Runner that collects with c. c may be nil when no
// sequence run by this Runner needs collection.
func NewRunner(c Collector, opts ...Option) *Runner {
	r := &Runner{collector: c}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = charmlog.New(io.Discard)
	}
	return r
}

// Run executes steps strictly in order. Each step returns before the
// next starts. A panic inside a step is recovered as an
// ASSERTION_FAILURE. The first failing step stops the sequence and is
// reported as a *StepError.
//
// A sequence that needs collection on a Runner without a collector
// fails with MISSING_CAPABILITY before any step runs.
func (r *Runner) Run(ctx context.Context, steps ...Step) error {
	if err := r.precondition(steps); err != nil {
		return err
	}

	label := ""
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Label: label, Index: i, Kind: s.Kind, Err: err}
		}

		var err error
		switch s.Kind {
		case KindLabel:
			label = s.Title
			r.logger.Debug("step group", "label", label)
			continue
		case KindCollect:
			err = r.collect(ctx)
		case KindWork, KindVerify:
			if r.collectBetween {
				err = r.collect(ctx)
			}
			if err == nil {
				err = invoke(ctx, s.fn)
			}
		default:
			err = failure.Newf(failure.InvalidArgument, "unknown step kind %s", s.Kind)
		}

		if err != nil {
			r.logger.Debug("step failed", "index", i, "kind", s.Kind, "label", label, "err", err)
			return &StepError{Label: label, Index: i, Kind: s.Kind, Err: err}
		}
		r.logger.Debug("step done", "index", i, "kind", s.Kind)
	}
	return nil
}

func (r *Runner) precondition(steps []Step) error {
	if r.collector != nil {
		return nil
	}
	if r.collectBetween {
		return failure.New(failure.MissingCapability,
			"collect-between-steps requires a garbage collection capability")
	}
	for i, s := range steps {
		if s.Kind == KindCollect {
			return failure.Newf(failure.MissingCapability,
				"step %d forces a collection but no collector is available", i)
		}
	}
	return nil
}

func (r *Runner) collect(ctx context.Context) error {
	r.logger.Debug("collecting garbage")
	return r.collector.Collect(ctx)
}

// invoke calls fn, converting a panic into an error.
func invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = recovered(rec)
		}
	}()
	return fn(ctx)
}

func recovered(rec any) error {
	if e, ok := rec.(error); ok {
		var fe *failure.Error
		if errors.As(e, &fe) {
			return e
		}
		return failure.Wrap(failure.AssertionFailure, "step panicked", e)
	}
	return failure.Newf(failure.AssertionFailure, "step panicked: %v", rec)
}
