package modules

import (
	"context"
	"errors"

	"github.com/unbound-force/bindcheck/internal/assert"
	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/suite"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// asyncWorkerAPIVersion is the first binding API version with async
// workers.
const asyncWorkerAPIVersion = 2

// AsyncWorker checks that worker callbacks run exactly once, off the
// calling goroutine, with the worker's outcome.
func AsyncWorker() suite.Module {
	return suite.Module{
		Name:          "asyncworker",
		MinAPIVersion: asyncWorkerAPIVersion,
		Mode:          suite.ModeSequential,
		Run:           runAsyncWorker,
	}
}

// completion records what a worker passed to its callback.
type completion struct {
	err  error
	data string
}

func (c *completion) Complete(err error, data string) {
	c.err = err
	c.data = data
}

func runAsyncWorker(ctx context.Context, env *suite.Env, b binding.Binding) error {
	w := b.AsyncWorkers()

	run := func(succeed bool) func(context.Context) error {
		return func(ctx context.Context) error {
			got := &completion{}
			cb, err := expect.Wrap(env.Harness, got.Complete, taxonomy.Exactly(1))
			if err != nil {
				return err
			}

			select {
			case <-w.Run(ctx, succeed, "data", cb):
			case <-ctx.Done():
				return failure.Wrap(failure.AssertionFailure, "waiting for async worker", ctx.Err())
			}

			if err := assert.Equal("data", got.data, "worker data"); err != nil {
				return err
			}
			if succeed {
				return assert.NoError(got.err, "worker error")
			}
			if !errors.Is(got.err, binding.ErrWorkerFailed) {
				return failure.Newf(failure.AssertionFailure,
					"worker error: got %v, want %q", got.err, binding.ErrWorkerFailed)
			}
			return nil
		}
	}

	return env.Steps.Run(ctx,
		gcsteps.Label("Successful worker"),
		gcsteps.Do(run(true)),
		gcsteps.Label("Failing worker"),
		gcsteps.Do(run(false)),
	)
}
