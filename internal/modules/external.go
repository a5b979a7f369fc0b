package modules

import (
	"context"

	"github.com/unbound-force/bindcheck/internal/assert"
	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/suite"
)

const externalValue = 1

// External checks that externals carry their value and that only
// finalizable ones are finalized by a collection.
func External() suite.Module {
	return suite.Module{Name: "external", Run: runExternal}
}

func runExternal(ctx context.Context, env *suite.Env, b binding.Binding) error {
	x := b.Externals()

	create := func(fn func(any) *binding.External) func(context.Context) error {
		return func(context.Context) error {
			e := fn(externalValue)
			if err := assert.Equal(externalValue, e.Value(), "external value"); err != nil {
				return err
			}
			return assert.Equal(0, x.FinalizeCount(), "finalize count before collection")
		}
	}
	finalizeCount := func(want int) func(context.Context) error {
		return func(context.Context) error {
			return assert.Equal(want, x.FinalizeCount(), "finalize count")
		}
	}

	return env.Steps.Run(ctx,
		gcsteps.Label("External without finalizer"),
		gcsteps.Do(create(x.Create)),
		gcsteps.Collect(),
		gcsteps.Verify(finalizeCount(0)),

		gcsteps.Label("External with finalizer"),
		gcsteps.Do(create(x.CreateWithFinalize)),
		gcsteps.Collect(),
		gcsteps.Verify(finalizeCount(1)),
	)
}
