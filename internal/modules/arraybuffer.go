package modules

import (
	"context"

	"github.com/unbound-force/bindcheck/internal/assert"
	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/suite"
)

// ArrayBuffer checks internal and external buffers, and that external
// buffer finalizers run only after a collection.
func ArrayBuffer() suite.Module {
	return suite.Module{Name: "arraybuffer", Run: runArrayBuffer}
}

func runArrayBuffer(ctx context.Context, env *suite.Env, b binding.Binding) error {
	ab := b.ArrayBuffers()

	createAndCheck := func(create func() *binding.ArrayBuffer, external bool) func(context.Context) error {
		return catch(func() error {
			buf := create()
			if err := ab.CheckBuffer(buf); err != nil {
				return err
			}
			if err := assert.Equal(external, buf.External(), "external"); err != nil {
				return err
			}
			return assert.Equal(0, ab.FinalizeCount(), "finalize count before collection")
		})
	}
	finalizeCount := func(want int) func(context.Context) error {
		return func(context.Context) error {
			return assert.Equal(want, ab.FinalizeCount(), "finalize count")
		}
	}

	return env.Steps.Run(ctx,
		gcsteps.Label("Internal ArrayBuffer"),
		gcsteps.Do(catch(func() error {
			buf := ab.CreateBuffer()
			if err := ab.CheckBuffer(buf); err != nil {
				return err
			}
			return ab.CheckBuffer(buf.Slice(0, buf.Len()))
		})),

		gcsteps.Label("External ArrayBuffer"),
		gcsteps.Do(createAndCheck(ab.CreateExternalBuffer, true)),
		gcsteps.Collect(),
		gcsteps.Verify(finalizeCount(0)),

		gcsteps.Label("External ArrayBuffer with finalizer"),
		gcsteps.Do(createAndCheck(ab.CreateExternalBufferWithFinalize, true)),
		gcsteps.Collect(),
		gcsteps.Verify(finalizeCount(1)),

		gcsteps.Label("External ArrayBuffer with finalizer hint"),
		gcsteps.Do(createAndCheck(ab.CreateExternalBufferWithFinalizeHint, true)),
		gcsteps.Collect(),
		gcsteps.Verify(finalizeCount(1)),
	)
}
