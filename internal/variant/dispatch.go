package variant

import (
	"context"
	"errors"
	"fmt"
	"io"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// Loader turns a resolved artifact into a usable binding.
type Loader[B any] interface {
	Load(ctx context.Context, a Artifact) (B, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc[B any] func(ctx context.Context, a Artifact) (B, error)

// Load calls f(ctx, a).
func (f LoaderFunc[B]) Load(ctx context.Context, a Artifact) (B, error) {
	return f(ctx, a)
}

// Result is the outcome of a test against one artifact.
type Result struct {
	Artifact Artifact
	Err      error
}

// Errors joins the failed results, each prefixed with its variant, or
// returns nil when every result passed.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, wrapVariant(r.Artifact, r.Err))
		}
	}
	return errors.Join(errs...)
}

type settings struct {
	logger      *charmlog.Logger
	concurrency int
}

// Option configures a Dispatcher.
type Option func(*settings)

// WithLogger sets the logger for per-variant progress.
func WithLogger(l *charmlog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithConcurrency caps how many variants RunAll tests at once. Zero or
// less means no cap.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// Dispatcher runs tests over a fixed, ordered set of artifacts.
type Dispatcher[B any] struct {
	artifacts []Artifact
	loader    Loader[B]
	settings
}

// New returns a dispatcher over artifacts, loading each with loader.
func New[B any](artifacts []Artifact, loader Loader[B], opts ...Option) *Dispatcher[B] {
	d := &Dispatcher[B]{
		artifacts: append([]Artifact(nil), artifacts...),
		loader:    loader,
	}
	for _, opt := range opts {
		opt(&d.settings)
	}
	if d.logger == nil {
		d.logger = charmlog.New(io.Discard)
	}
	return d
}

// Artifacts returns a copy of the dispatcher's artifacts.
func (d *Dispatcher[B]) Artifacts() []Artifact {
	return append([]Artifact(nil), d.artifacts...)
}

// RunAll loads every artifact, then starts test for each binding
// without waiting between starts and collects one Result per artifact
// in artifact order. A load failure returns immediately as a
// SETUP_FAILURE and no test runs.
func (d *Dispatcher[B]) RunAll(ctx context.Context, test func(ctx context.Context, b B) error) ([]Result, error) {
	bindings := make([]B, len(d.artifacts))
	for i, a := range d.artifacts {
		b, err := d.load(ctx, a)
		if err != nil {
			return nil, err
		}
		bindings[i] = b
	}

	results := make([]Result, len(d.artifacts))
	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, a := range d.artifacts {
		results[i].Artifact = a
		d.logger.Debug("starting variant", "variant", a.Variant())
		g.Go(func() error {
			results[i].Err = call(ctx, bindings[i], test)
			d.logger.Debug("variant finished", "variant", a.Variant(), "ok", results[i].Err == nil)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// RunSequential loads and tests one artifact at a time. The first
// failure stops the dispatch and is returned wrapped with its variant;
// later artifacts are never loaded.
func (d *Dispatcher[B]) RunSequential(ctx context.Context, test func(ctx context.Context, b B) error) error {
	for _, a := range d.artifacts {
		if err := ctx.Err(); err != nil {
			return wrapVariant(a, err)
		}
		b, err := d.load(ctx, a)
		if err != nil {
			return err
		}
		d.logger.Debug("running variant", "variant", a.Variant())
		if err := call(ctx, b, test); err != nil {
			return wrapVariant(a, err)
		}
	}
	return nil
}

// RunSequentialPaths is RunSequential for tests that take the artifact
// itself instead of a loaded binding.
func (d *Dispatcher[B]) RunSequentialPaths(ctx context.Context, test func(ctx context.Context, a Artifact) error) error {
	for _, a := range d.artifacts {
		if err := ctx.Err(); err != nil {
			return wrapVariant(a, err)
		}
		d.logger.Debug("running variant path", "variant", a.Variant(), "path", a.Path())
		if err := call(ctx, a, test); err != nil {
			return wrapVariant(a, err)
		}
	}
	return nil
}

func (d *Dispatcher[B]) load(ctx context.Context, a Artifact) (B, error) {
	b, err := d.loader.Load(ctx, a)
	if err != nil {
		var zero B
		if failure.Is(err, failure.SetupFailure) {
			return zero, wrapVariant(a, err)
		}
		return zero, wrapVariant(a, failure.Wrap(failure.SetupFailure, "loading artifact", err))
	}
	return b, nil
}

// call runs test, converting a panic into an ASSERTION_FAILURE.
func call[T any](ctx context.Context, v T, test func(context.Context, T) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var fe *failure.Error
			if e, ok := rec.(error); ok && errors.As(e, &fe) {
				err = e
				return
			}
			err = failure.Newf(failure.AssertionFailure, "test panicked: %v", rec)
		}
	}()
	return test(ctx, v)
}

func wrapVariant(a Artifact, err error) error {
	return fmt.Errorf("variant %s: %w", a.Variant(), err)
}
