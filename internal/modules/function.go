package modules

import (
	"context"

	"github.com/unbound-force/bindcheck/internal/assert"
	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/suite"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// Function checks callbacks in both directions across the binding. It
// needs no collection, so its variants run in parallel.
func Function() suite.Module {
	return suite.Module{Name: "function", Mode: suite.ModeParallel, Run: runFunction}
}

// recorder captures the receiver and arguments a callback was called
// with.
type recorder struct {
	recv any
	args []any
}

func (r *recorder) Call(recv any, args ...any) any {
	r.recv = recv
	r.args = append([]any(nil), args...)
	return len(args)
}

func runFunction(ctx context.Context, env *suite.Env, b binding.Binding) error {
	f := b.Functions()

	call := func(viaReceiver bool) func(context.Context) error {
		return func(context.Context) error {
			rec := &recorder{}
			cb, err := expect.Wrap(env.Harness, binding.Func(rec.Call), taxonomy.Exactly(1))
			if err != nil {
				return err
			}

			var got any
			var wantRecv any
			if viaReceiver {
				wantRecv = "receiver"
				got = f.CallWithReceiver(cb, wantRecv, 2, 3, 4)
			} else {
				got = f.CallWithArgs(cb, 2, 3, 4)
			}
			if err := assert.Equal(3, got, "callback result"); err != nil {
				return err
			}
			if err := assert.Equal(wantRecv, rec.recv, "receiver"); err != nil {
				return err
			}
			return assert.Equal([]any{2, 3, 4}, rec.args, "arguments")
		}
	}

	return env.Steps.Run(ctx,
		gcsteps.Label("Void and value callbacks"),
		gcsteps.Do(func(context.Context) error {
			obj := binding.Object{}
			f.VoidCallback(obj)
			if err := assert.Equal(binding.Object{"foo": "bar"}, obj, "void callback"); err != nil {
				return err
			}
			return assert.Equal(binding.Object{"foo": "bar"}, f.ValueCallback(), "value callback")
		}),

		gcsteps.Label("Callbacks with data"),
		gcsteps.Do(func(context.Context) error {
			want := binding.Object{"foo": "bar", "data": 1}
			obj := binding.Object{}
			f.VoidCallbackWithData(obj)
			if err := assert.Equal(want, obj, "void callback with data"); err != nil {
				return err
			}
			return assert.Equal(want, f.ValueCallbackWithData(), "value callback with data")
		}),

		gcsteps.Label("Call with arguments"),
		gcsteps.Do(call(false)),

		gcsteps.Label("Call with receiver and arguments"),
		gcsteps.Do(call(true)),
	)
}
