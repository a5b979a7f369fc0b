package binding

import (
	"context"
	"errors"
)

// AsyncWorkers runs work off the calling goroutine.
type AsyncWorkers interface {
	// Run executes a worker on its own goroutine. The worker calls cb
	// exactly once on that goroutine, with a nil error when succeed is
	// true, then closes the returned channel.
	Run(ctx context.Context, succeed bool, data string, cb func(err error, data string)) <-chan struct{}
}

// ErrWorkerFailed is passed to callbacks of workers told to fail.
var ErrWorkerFailed = errors.New("test error")

type asyncWorkers struct{}

func (asyncWorkers) Run(ctx context.Context, succeed bool, data string, cb func(err error, data string)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case !succeed:
			err = ErrWorkerFailed
		}
		cb(err, data)
	}()
	return done
}
