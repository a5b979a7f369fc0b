package gcsteps

import (
	"context"
	"runtime"
	"time"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// DefaultRounds is the number of collection cycles RuntimeCollector runs
// when Rounds is unset. The second cycle drains finalizers queued by
// the first.
const DefaultRounds = 2

// Collector forces a garbage collection. Collect returns only after the
// finalizers made runnable by that collection have run.
type Collector interface {
	Collect(ctx context.Context) error
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(ctx context.Context) error

// Collect calls f(ctx).
func (f CollectorFunc) Collect(ctx context.Context) error {
	return f(ctx)
}

// RuntimeCollector collects with runtime.GC and waits on a sentinel
// finalizer to learn when the finalizer queue has been drained.
type RuntimeCollector struct {
	// Rounds is the number of GC cycles per Collect. Default: 2.
	Rounds int

	// Timeout bounds each round. Zero means wait until ctx is done.
	Timeout time.Duration
}

// sentinel carries a pointer so it is never packed into a tiny-alloc
// block shared with other objects.
type sentinel struct {
	next *sentinel
}

// Collect implements Collector.
func (c RuntimeCollector) Collect(ctx context.Context) error {
	rounds := c.Rounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	for i := 0; i < rounds; i++ {
		if err := c.round(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c RuntimeCollector) round(ctx context.Context) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	done := arm()
	runtime.GC()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return failure.Wrap(failure.SetupFailure, "waiting for finalizers", ctx.Err())
	}
}

// arm allocates an unreachable sentinel whose finalizer closes the
// returned channel.
//
//go:noinline
func arm() <-chan struct{} {
	done := make(chan struct{})
	s := &sentinel{}
	runtime.SetFinalizer(s, func(*sentinel) { close(done) })
	return done
}
