// Package expect implements call-count expectations: wrappers that
// count how often a callback runs, and the exit-time audit that
// reconciles those counts against their criteria.
//
// A Harness is created explicitly for each run. Wrappers register an
// expectation when they are built; nothing is reported at the call
// site. Finalize reconciles every expectation once, in registration
// order, when the run is about to exit.
package expect

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// Harness owns the ordered list of expectations for one run.
type Harness struct {
	mu     sync.Mutex
	checks []*expectation
	audit  *Audit
}

type expectation struct {
	id       string
	name     string
	crit     taxonomy.Criterion
	actual   atomic.Int64
	location string
	trace    []string
}

func (e *expectation) hit() {
	e.actual.Add(1)
}

// New returns an empty harness.
func New() *Harness {
	return &Harness{}
}

// Len returns the number of registered expectations.
func (h *Harness) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.checks)
}

// Expect registers a no-op callback that must be invoked according to
// c. An unspecified criterion means exactly once.
func (h *Harness) Expect(c taxonomy.Criterion) (func(), error) {
	e, err := h.register(anonymous, c)
	if err != nil {
		return nil, err
	}
	return e.hit, nil
}

// MustCall is like Expect but panics with an INVALID_ARGUMENT error
// when c cannot be registered.
func (h *Harness) MustCall(c taxonomy.Criterion) func() {
	fn, err := h.Expect(c)
	if err != nil {
		panic(err)
	}
	return fn
}

// Once returns a no-op callback that must be invoked exactly once.
func (h *Harness) Once() func() {
	return h.MustCall(taxonomy.Exactly(1))
}

// Wrap returns a function with fn's signature that counts each call
// and then forwards all arguments to fn, returning its results. A
// receiver travels with fn when fn is a method value. A nil fn
// becomes a no-op returning zero values.
//
// F must be a func type; anything else fails with INVALID_ARGUMENT.
func Wrap[F any](h *Harness, fn F, c taxonomy.Criterion) (F, error) {
	var zero F
	ft := reflect.TypeOf((*F)(nil)).Elem()
	if ft.Kind() != reflect.Func {
		return zero, failure.Newf(failure.InvalidArgument, "cannot wrap non-function type %s", ft)
	}

	fv := reflect.ValueOf(&fn).Elem()
	e, err := h.register(funcName(fv), c)
	if err != nil {
		return zero, err
	}

	proxy := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		e.hit()
		if fv.IsNil() {
			return zeroResults(ft)
		}
		if ft.IsVariadic() {
			return fv.CallSlice(args)
		}
		return fv.Call(args)
	})
	return proxy.Interface().(F), nil
}

// MustWrap is like Wrap but panics when the wrapper cannot be
// registered.
func MustWrap[F any](h *Harness, fn F, c taxonomy.Criterion) F {
	wrapped, err := Wrap(h, fn, c)
	if err != nil {
		panic(err)
	}
	return wrapped
}

// MustNotCall returns a callback that fails the current step with an
// ASSERTION_FAILURE panic if it is ever invoked.
func MustNotCall(msg string) func() {
	if msg == "" {
		msg = "function should not have been called"
	}
	return func() {
		panic(failure.New(failure.AssertionFailure, msg))
	}
}

// register validates c and appends one expectation. Validation is
// synchronous so a bad criterion fails where it is written.
func (h *Harness) register(name string, c taxonomy.Criterion) (*expectation, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, failure.Wrap(failure.InvalidArgument, "registering expectation", err)
	}

	trace := captureTrace()
	location := ""
	if len(trace) > 0 {
		location = trace[0].location()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.audit != nil {
		return nil, failure.Newf(failure.InvalidArgument,
			"cannot register %s after the harness was finalized", name)
	}

	e := &expectation{
		id:       taxonomy.GenerateID(name, location, len(h.checks)),
		name:     name,
		crit:     c,
		location: location,
		trace:    formatTrace(trace),
	}
	h.checks = append(h.checks, e)
	return e, nil
}

func zeroResults(ft reflect.Type) []reflect.Value {
	out := make([]reflect.Value, ft.NumOut())
	for i := range out {
		out[i] = reflect.Zero(ft.Out(i))
	}
	return out
}

// String summarizes the harness for logs.
func (h *Harness) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("expect.Harness{expectations: %d, finalized: %t}", len(h.checks), h.audit != nil)
}
