package expect

import (
	"fmt"
	"io"
	"os"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// failureExitCode is forced when any expectation is unmet.
const failureExitCode = 1

// Audit is the outcome of finalizing a harness.
type Audit struct {
	// Ran is true when expectations were reconciled.
	Ran bool

	// Skipped is true when a non-zero exit status suppressed the audit.
	Skipped bool

	// Registered is the number of expectations at finalization.
	Registered int

	// Results holds every reconciled expectation in registration order.
	Results []taxonomy.ExpectationResult

	// Failed holds the unmet subset of Results, in the same order.
	Failed []taxonomy.ExpectationResult
}

// Finalize reconciles every registered expectation against its
// criterion. It is the harness's shutdown hook and runs at most once;
// later calls return the first Audit.
//
// exitCode is the status the process is about to exit with. A non-zero
// status skips reconciliation so an earlier failure is neither masked
// nor reported twice. A harness with no expectations never audits.
func (h *Harness) Finalize(exitCode int) *Audit {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.audit != nil {
		return h.audit
	}

	a := &Audit{Registered: len(h.checks)}
	h.audit = a

	if len(h.checks) == 0 {
		return a
	}
	if exitCode != 0 {
		a.Skipped = true
		return a
	}

	a.Ran = true
	a.Results = make([]taxonomy.ExpectationResult, 0, len(h.checks))
	for _, e := range h.checks {
		actual := e.actual.Load()
		r := taxonomy.ExpectationResult{
			ID:        e.id,
			Name:      e.name,
			Criterion: e.crit,
			Actual:    actual,
			Satisfied: e.crit.Satisfied(actual),
			Location:  e.location,
			Trace:     e.trace,
		}
		a.Results = append(a.Results, r)
		if !r.Satisfied {
			a.Failed = append(a.Failed, r)
		}
	}
	return a
}

// ExitCode returns the status the process should exit with, given the
// status it was about to exit with.
func (a *Audit) ExitCode(prev int) int {
	if len(a.Failed) > 0 {
		return failureExitCode
	}
	return prev
}

// Err returns an EXPECTATION_UNMET error when any expectation failed.
func (a *Audit) Err() error {
	if len(a.Failed) == 0 {
		return nil
	}
	return failure.Newf(failure.ExpectationUnmet, "%d of %d expectation(s) unmet",
		len(a.Failed), len(a.Results))
}

// Summary condenses the audit for reports.
func (a *Audit) Summary() taxonomy.AuditSummary {
	return taxonomy.AuditSummary{
		Ran:        a.Ran,
		Skipped:    a.Skipped,
		Registered: a.Registered,
		Failed:     len(a.Failed),
	}
}

// WriteDiagnostics writes one mismatch line per unmet expectation,
// each followed by its trimmed registration trace.
func (a *Audit) WriteDiagnostics(w io.Writer) error {
	for _, r := range a.Failed {
		if err := WriteMismatch(w, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteMismatch writes the diagnostic block for a single expectation.
func WriteMismatch(w io.Writer, r taxonomy.ExpectationResult) error {
	if _, err := fmt.Fprintln(w, r.Mismatch()); err != nil {
		return err
	}
	for _, line := range r.Trace {
		if _, err := fmt.Fprintf(w, "    at %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// TestingM is the subset of *testing.M used by Main.
type TestingM interface {
	Run() int
}

// RunMain runs m, finalizes h with m's status, writes diagnostics for
// unmet expectations to stderr, and returns the reconciled exit code.
func RunMain(m TestingM, h *Harness, stderr io.Writer) int {
	code := m.Run()
	audit := h.Finalize(code)
	if len(audit.Failed) > 0 {
		_ = audit.WriteDiagnostics(stderr)
	}
	return audit.ExitCode(code)
}

// Main is a TestMain helper:
//
//	var harness = expect.New()
//
//	func TestMain(m *testing.M) { expect.Main(m, harness) }
func Main(m TestingM, h *Harness) {
	os.Exit(RunMain(m, h, os.Stderr))
}
