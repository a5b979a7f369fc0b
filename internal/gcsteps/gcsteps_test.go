package gcsteps_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type tracked struct {
	self *tracked
}

// dropTracked allocates an object that is unreachable on return and
// whose finalizer bumps n.
//
//go:noinline
func dropTracked(n *atomic.Int64) {
	t := &tracked{}
	t.self = t
	runtime.SetFinalizer(t, func(*tracked) { n.Add(1) })
}

func countingCollector(n *int) gcsteps.Collector {
	return gcsteps.CollectorFunc(func(context.Context) error {
		*n++
		return nil
	})
}

func TestRun_StepsRunInOrder(t *testing.T) {
	var got []string
	record := func(s string) gcsteps.Step {
		return gcsteps.Do(func(context.Context) error {
			got = append(got, s)
			return nil
		})
	}

	r := gcsteps.NewRunner(nil)
	err := r.Run(context.Background(),
		gcsteps.Label("first"), record("a"), record("b"),
		gcsteps.Label("second"), record("c"),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_StepWaitsForContinuation(t *testing.T) {
	var finished atomic.Bool
	r := gcsteps.NewRunner(nil)
	err := r.Run(context.Background(),
		gcsteps.Do(func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				time.Sleep(10 * time.Millisecond)
				finished.Store(true)
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		gcsteps.Verify(func(context.Context) error {
			if !finished.Load() {
				return errors.New("previous step's continuation has not completed")
			}
			return nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestRun_FirstFailureStops(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	r := gcsteps.NewRunner(nil)
	err := r.Run(context.Background(),
		gcsteps.Label("setup"),
		gcsteps.Do(func(context.Context) error { return nil }),
		gcsteps.Label("check"),
		gcsteps.Do(func(context.Context) error { return boom }),
		gcsteps.Do(func(context.Context) error { ran = true; return nil }),
	)

	var se *gcsteps.StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StepError, got %T: %v", err, err)
	}
	if se.Index != 3 || se.Label != "check" {
		t.Errorf("StepError = {Index: %d, Label: %q}, want {3, check}", se.Index, se.Label)
	}
	if !errors.Is(err, boom) {
		t.Error("StepError should unwrap to the step's error")
	}
	if ran {
		t.Error("steps after a failure must not run")
	}
}

func TestRun_PanicBecomesAssertionFailure(t *testing.T) {
	r := gcsteps.NewRunner(nil)
	err := r.Run(context.Background(),
		gcsteps.Do(func(context.Context) error { panic("kaboom") }),
	)
	if !failure.Is(err, failure.AssertionFailure) {
		t.Fatalf("expected ASSERTION_FAILURE, got %v", err)
	}
}

func TestRun_PanicKeepsTaxonomyClass(t *testing.T) {
	r := gcsteps.NewRunner(nil)
	err := r.Run(context.Background(),
		gcsteps.Do(func(context.Context) error {
			panic(failure.New(failure.ExpectationUnmet, "count"))
		}),
	)
	if !failure.Is(err, failure.ExpectationUnmet) {
		t.Fatalf("expected EXPECTATION_UNMET, got %v", err)
	}
}

func TestRun_MissingCollector(t *testing.T) {
	ran := false
	work := gcsteps.Do(func(context.Context) error { ran = true; return nil })

	cases := []struct {
		name   string
		runner *gcsteps.Runner
		steps  []gcsteps.Step
	}{
		{"collect step", gcsteps.NewRunner(nil), []gcsteps.Step{work, gcsteps.Collect()}},
		{"collect between", gcsteps.NewRunner(nil, gcsteps.WithCollectBetweenSteps()), []gcsteps.Step{work}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ran = false
			err := tc.runner.Run(context.Background(), tc.steps...)
			if !failure.Is(err, failure.MissingCapability) {
				t.Fatalf("expected MISSING_CAPABILITY, got %v", err)
			}
			if ran {
				t.Error("no step may run when the precondition fails")
			}
		})
	}
}

func TestRun_CollectOnlyWhenAsked(t *testing.T) {
	calls := 0
	noop := func(context.Context) error { return nil }

	r := gcsteps.NewRunner(countingCollector(&calls))
	if err := r.Run(context.Background(), gcsteps.Do(noop), gcsteps.Do(noop)); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("runner collected %d times without being asked", calls)
	}

	if err := r.Run(context.Background(), gcsteps.Do(noop), gcsteps.Collect(), gcsteps.Verify(noop)); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("collections = %d, want 1", calls)
	}
}

func TestRun_CollectBetweenSteps(t *testing.T) {
	calls := 0
	noop := func(context.Context) error { return nil }

	r := gcsteps.NewRunner(countingCollector(&calls), gcsteps.WithCollectBetweenSteps())
	err := r.Run(context.Background(),
		gcsteps.Label("group"), gcsteps.Do(noop), gcsteps.Do(noop), gcsteps.Verify(noop),
	)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("collections = %d, want one per work or verify step", calls)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := gcsteps.NewRunner(nil)
	err := r.Run(ctx, gcsteps.Do(func(context.Context) error { return nil }))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFlat(t *testing.T) {
	var got []string
	steps, err := gcsteps.Flat(
		"group",
		func() { got = append(got, "plain") },
		func() error { got = append(got, "err"); return nil },
		func(context.Context) error { got = append(got, "ctx"); return nil },
		gcsteps.Collect(),
	)
	if err != nil {
		t.Fatal(err)
	}

	var kinds []gcsteps.Kind
	for _, s := range steps {
		kinds = append(kinds, s.Kind)
	}
	want := []gcsteps.Kind{gcsteps.KindLabel, gcsteps.KindWork, gcsteps.KindWork, gcsteps.KindWork, gcsteps.KindCollect}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	calls := 0
	if err := gcsteps.NewRunner(countingCollector(&calls)).Run(context.Background(), steps...); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"plain", "err", "ctx"}, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFlat_UnsupportedItem(t *testing.T) {
	_, err := gcsteps.Flat("ok", 42)
	if !failure.Is(err, failure.InvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestRuntimeCollector_RunsFinalizers(t *testing.T) {
	var finalized atomic.Int64

	r := gcsteps.NewRunner(gcsteps.RuntimeCollector{Timeout: 5 * time.Second})
	err := r.Run(context.Background(),
		gcsteps.Label("drop an object with a finalizer"),
		gcsteps.Do(func(context.Context) error {
			dropTracked(&finalized)
			return nil
		}),
		gcsteps.Verify(func(context.Context) error {
			if n := finalized.Load(); n != 0 {
				return failure.Newf(failure.AssertionFailure, "finalize count before collection = %d, want 0", n)
			}
			return nil
		}),
		gcsteps.Collect(),
		gcsteps.Label("finalizer observed"),
		gcsteps.Verify(func(context.Context) error {
			if n := finalized.Load(); n != 1 {
				return failure.Newf(failure.AssertionFailure, "finalize count = %d, want 1", n)
			}
			return nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestStepError_Message(t *testing.T) {
	err := &gcsteps.StepError{Label: "buffers", Index: 2, Kind: gcsteps.KindVerify, Err: errors.New("bad")}
	want := `step 2 (verify) "buffers": bad`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
