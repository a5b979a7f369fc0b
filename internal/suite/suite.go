// Package suite runs test modules over every binding variant and folds
// their outcomes and the exit-time expectation audit into one report.
package suite

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
	"github.com/unbound-force/bindcheck/internal/variant"
)

// Mode selects how a module is dispatched over variants.
type Mode string

// Dispatch modes.
const (
	// ModeSequential runs one variant at a time and stops at the first
	// failure.
	ModeSequential Mode = "sequential"

	// ModeParallel starts every variant without waiting and collects
	// all outcomes.
	ModeParallel Mode = "parallel"
)

// Module is one named group of tests run against each variant.
type Module struct {
	Name string

	// MinAPIVersion gates the module; it is skipped when the run's API
	// version is lower. Zero means always run.
	MinAPIVersion int

	// Mode defaults to ModeSequential.
	Mode Mode

	Run func(ctx context.Context, env *Env, b binding.Binding) error
}

// Env is what a module body gets besides the binding.
type Env struct {
	// Harness owns the run's call-count expectations.
	Harness *expect.Harness

	// Steps runs GC-ordered step sequences.
	Steps *gcsteps.Runner

	Logger *charmlog.Logger
}

// Suite configures one run.
type Suite struct {
	Modules   []Module
	Artifacts []variant.Artifact
	Loader    variant.Loader[binding.Binding]

	// Harness collects expectations from every module. It is finalized
	// when the run ends. Default: a fresh harness.
	Harness *expect.Harness

	// Collector is required; without it the run fails with
	// MISSING_CAPABILITY.
	Collector gcsteps.Collector

	// APIVersion is the version gate for Module.MinAPIVersion.
	APIVersion int

	Filter Filter

	// Concurrency caps parallel-mode variants. Zero means no cap.
	Concurrency int

	Logger *charmlog.Logger

	// Metadata seeds the report metadata; timing, versions and variants
	// are filled in by Run.
	Metadata taxonomy.Metadata
}

// Run executes every selected module and returns the report.
//
// The returned error is non-nil only when the run could not start: a
// missing collector or no artifacts. Module failures and unmet
// expectations are recorded in the report and its ExitCode.
func (s *Suite) Run(ctx context.Context) (taxonomy.RunReport, error) {
	start := time.Now()
	logger := s.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	h := s.Harness
	if h == nil {
		h = expect.New()
	}

	rpt := taxonomy.RunReport{Metadata: s.metadata(start)}

	if err := s.precondition(); err != nil {
		rpt.ExitCode = failure.ExitCode(err)
		rpt.Metadata.Duration = time.Since(start)
		return rpt, err
	}

	env := &Env{
		Harness: h,
		Steps:   gcsteps.NewRunner(s.Collector, gcsteps.WithLogger(logger)),
		Logger:  logger,
	}
	d := variant.New(s.Artifacts, s.Loader,
		variant.WithLogger(logger), variant.WithConcurrency(s.Concurrency))

	exitCode := 0
	for _, m := range s.Modules {
		if reason := s.skipReason(m); reason != "" {
			logger.Debug("skipping module", "module", m.Name, "reason", reason)
			rpt.Modules = append(rpt.Modules, taxonomy.ModuleResult{
				Module: m.Name,
				Status: taxonomy.StatusSkip,
				Error:  reason,
			})
			continue
		}

		logger.Debug("running module", "module", m.Name, "mode", m.mode())
		results := runModule(ctx, d, env, m)
		for _, r := range results {
			if r.Status == taxonomy.StatusFail {
				exitCode = max(exitCode, failure.Class(r.FailureClass).ExitCode())
				logger.Error("module failed", "module", m.Name, "variant", r.Variant, "err", r.Error)
			}
		}
		rpt.Modules = append(rpt.Modules, results...)
	}

	audit := h.Finalize(exitCode)
	rpt.Audit = audit.Summary()
	rpt.Expectations = audit.Results
	rpt.ExitCode = audit.ExitCode(exitCode)
	rpt.Metadata.Duration = time.Since(start)
	return rpt, nil
}

func (s *Suite) metadata(start time.Time) taxonomy.Metadata {
	md := s.Metadata
	md.Timestamp = start
	md.GoVersion = runtime.Version()
	md.APIVersion = s.APIVersion
	md.Variants = make([]string, len(s.Artifacts))
	for i, a := range s.Artifacts {
		md.Variants[i] = a.Variant()
	}
	return md
}

func (s *Suite) precondition() error {
	if s.Collector == nil {
		return failure.New(failure.MissingCapability,
			"tests require a garbage collection capability")
	}
	if len(s.Artifacts) == 0 {
		return failure.New(failure.SetupFailure, "no binding variants to test")
	}
	if s.Loader == nil {
		return failure.New(failure.SetupFailure, "no binding loader configured")
	}
	return nil
}

func (s *Suite) skipReason(m Module) string {
	if !s.Filter.Allows(m.Name) {
		return "excluded by module filter"
	}
	if m.MinAPIVersion > s.APIVersion {
		return fmt.Sprintf("requires API version %d, have %d", m.MinAPIVersion, s.APIVersion)
	}
	return ""
}

func (m Module) mode() Mode {
	if m.Mode == "" {
		return ModeSequential
	}
	return m.Mode
}

// runModule dispatches m and returns one result per artifact.
func runModule(ctx context.Context, d *variant.Dispatcher[binding.Binding], env *Env, m Module) []taxonomy.ModuleResult {
	arts := d.Artifacts()
	test := func(ctx context.Context, b binding.Binding) error {
		return m.Run(ctx, env, b)
	}

	if m.mode() == ModeParallel {
		results, err := d.RunAll(ctx, test)
		if err != nil {
			out := make([]taxonomy.ModuleResult, len(arts))
			for i, a := range arts {
				out[i] = moduleResult(m.Name, a, err)
			}
			return out
		}
		out := make([]taxonomy.ModuleResult, len(results))
		for i, r := range results {
			out[i] = moduleResult(m.Name, r.Artifact, r.Err)
		}
		return out
	}

	passes := 0
	err := d.RunSequential(ctx, func(ctx context.Context, b binding.Binding) error {
		if err := test(ctx, b); err != nil {
			return err
		}
		passes++
		return nil
	})

	// Variants run in order, so the passes are a prefix and the next
	// variant is the one that stopped the dispatch, by failing its test
	// or its load.
	out := make([]taxonomy.ModuleResult, 0, len(arts))
	failed := ""
	for i, a := range arts {
		switch {
		case failed != "":
			out = append(out, taxonomy.ModuleResult{
				Module:   m.Name,
				Variant:  a.Variant(),
				Artifact: a.Path(),
				Status:   taxonomy.StatusSkip,
				Error:    fmt.Sprintf("not run after %s failed", failed),
			})
		case err != nil && i == passes:
			out = append(out, moduleResult(m.Name, a, err))
			failed = a.Variant()
		default:
			out = append(out, moduleResult(m.Name, a, nil))
		}
	}
	return out
}

func moduleResult(module string, a variant.Artifact, err error) taxonomy.ModuleResult {
	r := taxonomy.ModuleResult{
		Module:   module,
		Variant:  a.Variant(),
		Artifact: a.Path(),
		Status:   taxonomy.StatusPass,
	}
	if err != nil {
		r.Status = taxonomy.StatusFail
		r.Error = err.Error()
		r.FailureClass = string(failure.ClassOf(err))
	}
	return r
}
