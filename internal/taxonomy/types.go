// Package taxonomy defines the call-count criteria, expectation records,
// and run report structures shared by the harness and its reporters.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// CriterionKind enumerates how an actual call count is compared
// against its threshold.
type CriterionKind string

// Criterion kinds.
const (
	KindExact   CriterionKind = "exact"
	KindAtLeast CriterionKind = "at_least"
)

// Criterion is a call-count contract: exactly N calls, or at least N.
// The zero value means "not specified" and normalizes to Exactly(1).
type Criterion struct {
	// Kind selects the comparison.
	Kind CriterionKind `json:"kind"`

	// Value is the non-negative threshold.
	Value int `json:"value"`
}

// Exactly returns a criterion satisfied only by exactly n calls.
func Exactly(n int) Criterion {
	return Criterion{Kind: KindExact, Value: n}
}

// AtLeast returns a criterion satisfied by n or more calls.
func AtLeast(n int) Criterion {
	return Criterion{Kind: KindAtLeast, Value: n}
}

// IsZero reports whether the criterion was left unspecified.
func (c Criterion) IsZero() bool {
	return c.Kind == "" && c.Value == 0
}

// Normalize fills in the default for an unspecified criterion.
func (c Criterion) Normalize() Criterion {
	if c.IsZero() {
		return Exactly(1)
	}
	return c
}

// Validate reports why c cannot be registered, or nil.
func (c Criterion) Validate() error {
	switch c.Kind {
	case KindExact, KindAtLeast:
	default:
		return fmt.Errorf("invalid criterion kind %q", c.Kind)
	}
	if c.Value < 0 {
		return fmt.Errorf("invalid %s value: %d", c.Kind, c.Value)
	}
	return nil
}

// Satisfied reports whether actual meets the criterion.
func (c Criterion) Satisfied(actual int64) bool {
	if c.Kind == KindAtLeast {
		return actual >= int64(c.Value)
	}
	return actual == int64(c.Value)
}

// String renders the criterion the way diagnostics quote it,
// e.g. "exactly 2" or "at least 1".
func (c Criterion) String() string {
	if c.Kind == KindAtLeast {
		return fmt.Sprintf("at least %d", c.Value)
	}
	return fmt.Sprintf("exactly %d", c.Value)
}

// ExpectationResult is the audited outcome of one registered
// expectation.
type ExpectationResult struct {
	// ID is a stable identifier derived from name and location.
	ID string `json:"id"`

	// Name is the origin function name, or "<anonymous>".
	Name string `json:"name"`

	// Criterion is the registered contract.
	Criterion Criterion `json:"criterion"`

	// Actual is the number of observed invocations.
	Actual int64 `json:"actual"`

	// Satisfied is the reconciliation result.
	Satisfied bool `json:"satisfied"`

	// Location is the registration call site (file:line).
	Location string `json:"location"`

	// Trace is the trimmed registration stack, innermost first.
	// Omitted from JSON when empty.
	Trace []string `json:"trace,omitempty"`
}

// Mismatch renders the one-line diagnostic for an unmet expectation.
func (r ExpectationResult) Mismatch() string {
	return fmt.Sprintf("Mismatched %s function calls. Expected %s, actual %d.",
		r.Name, r.Criterion, r.Actual)
}

// Status is the outcome of one module run against one variant.
type Status string

// Module status constants.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// ModuleResult records one test module dispatched over one variant.
type ModuleResult struct {
	// Module is the test module name.
	Module string `json:"module"`

	// Variant is the binding variant name. Empty when the module was
	// skipped before dispatch.
	Variant string `json:"variant,omitempty"`

	// Artifact is the resolved artifact path.
	Artifact string `json:"artifact,omitempty"`

	// Status is the outcome.
	Status Status `json:"status"`

	// Error is the failure message for failed modules, or the skip
	// reason for skipped ones.
	Error string `json:"error,omitempty"`

	// FailureClass classifies a failure (see internal/failure).
	FailureClass string `json:"failure_class,omitempty"`
}

// Metadata holds run metadata.
type Metadata struct {
	RunID            string        `json:"run_id"`
	BindcheckVersion string        `json:"bindcheck_version"`
	GoVersion        string        `json:"go_version"`
	BuildConfig      string        `json:"build_config"`
	APIVersion       int           `json:"api_version"`
	Variants         []string      `json:"variants"`
	Timestamp        time.Time     `json:"-"`
	Duration         time.Duration `json:"-"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// AuditSummary describes whether and how the exit-time audit ran.
type AuditSummary struct {
	// Ran is true when expectations were reconciled.
	Ran bool `json:"ran"`

	// Skipped is true when the audit was suppressed by a
	// pre-existing non-zero exit status.
	Skipped bool `json:"skipped"`

	// Registered is the number of expectations registered.
	Registered int `json:"registered"`

	// Failed is the number of unmet expectations.
	Failed int `json:"failed"`
}

// RunReport is the complete output of one suite run.
type RunReport struct {
	Metadata     Metadata            `json:"metadata"`
	Modules      []ModuleResult      `json:"modules"`
	Audit        AuditSummary        `json:"audit"`
	Expectations []ExpectationResult `json:"expectations"`
	ExitCode     int                 `json:"exit_code"`
}

// Failed reports whether the run ends with a non-zero exit code.
func (r RunReport) Failed() bool {
	return r.ExitCode != 0
}

// UnmetExpectations returns the expectations that failed the audit.
func (r RunReport) UnmetExpectations() []ExpectationResult {
	var out []ExpectationResult
	for _, e := range r.Expectations {
		if !e.Satisfied {
			out = append(out, e)
		}
	}
	return out
}

// GenerateID produces a stable, deterministic ID for an expectation
// from its origin name and registration site. The ID is a sha256 hash
// truncated to 8 hex characters, prefixed with "ex-".
func GenerateID(name, location string, seq int) string {
	input := fmt.Sprintf("%s:%s:%d", name, location, seq)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("ex-%x", hash[:4])
}
