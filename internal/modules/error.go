package modules

import (
	"context"

	"github.com/unbound-force/bindcheck/internal/assert"
	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/suite"
)

// Error checks that exceptions raised by the binding reach the caller
// with their kind and message, whichever way the variant raises them.
func Error() suite.Module {
	return suite.Module{Name: "error", Run: runError}
}

func runError(ctx context.Context, env *suite.Env, b binding.Binding) error {
	e := b.Errors()
	panics := b.Variant() != binding.VariantNoExcept

	unreachable := expect.MustNotCall("code after a raised exception ran")

	return env.Steps.Run(ctx,
		gcsteps.Label("Throw"),
		gcsteps.Do(func(context.Context) error {
			err := binding.Catch(func() error {
				if err := e.Throw("test"); err != nil {
					return err
				}
				unreachable()
				return nil
			})
			return assert.ErrorContains(err, "Error: test", "thrown error")
		}),

		gcsteps.Label("Throw type error"),
		gcsteps.Do(func(context.Context) error {
			err := binding.Catch(func() error { return e.ThrowKind(binding.KindTypeError, "type") })
			return assert.ErrorContains(err, "TypeError: type", "thrown type error")
		}),

		gcsteps.Label("Raise style matches the variant"),
		gcsteps.Do(func(context.Context) error {
			if !panics {
				return assert.True(e.Throw("test") != nil, "noexcept variant returns the exception")
			}
			rec, err := assert.Panics(func() { _ = e.Throw("test") }, "exceptions variant panics")
			if err != nil {
				return err
			}
			_, ok := rec.(*binding.Exception)
			return assert.True(ok, "panic value is a *binding.Exception")
		}),

		gcsteps.Label("Catch and rethrow"),
		gcsteps.Do(func(context.Context) error {
			err := binding.Catch(func() error {
				return e.CatchAndRethrow(func() error { return e.Throw("inner") }, "Rethrown: ")
			})
			return assert.ErrorContains(err, "Error: Rethrown: inner", "rethrown error")
		}),

		gcsteps.Label("No exception"),
		gcsteps.Do(func(context.Context) error {
			err := binding.Catch(func() error {
				return e.CatchAndRethrow(func() error { return nil }, "unused")
			})
			return assert.NoError(err, "nothing thrown")
		}),
	)
}
