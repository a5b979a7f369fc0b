package taxonomy

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestGenerateID_Deterministic(t *testing.T) {
	id1 := GenerateID("onDone", "worker_test.go:10", 0)
	id2 := GenerateID("onDone", "worker_test.go:10", 0)

	if id1 != id2 {
		t.Errorf("GenerateID not deterministic: %q != %q", id1, id2)
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := GenerateID("onDone", "worker_test.go:10", 0)

	if len(id) != 11 { // "ex-" + 8 hex chars
		t.Errorf("expected ID length 11, got %d: %q", len(id), id)
	}
	if id[:3] != "ex-" {
		t.Errorf("expected ID to start with 'ex-', got %q", id)
	}
}

func TestGenerateID_UniqueForDifferentInputs(t *testing.T) {
	id1 := GenerateID("onDone", "worker_test.go:10", 0)
	id2 := GenerateID("onDone", "worker_test.go:10", 1)
	id3 := GenerateID("onFail", "worker_test.go:10", 0)

	if id1 == id2 {
		t.Errorf("different sequence numbers should produce different IDs")
	}
	if id1 == id3 {
		t.Errorf("different names should produce different IDs")
	}
}

func TestCriterion_Satisfied(t *testing.T) {
	tests := []struct {
		name   string
		c      Criterion
		actual int64
		want   bool
	}{
		{"exact hit", Exactly(2), 2, true},
		{"exact under", Exactly(2), 1, false},
		{"exact over", Exactly(2), 3, false},
		{"exact zero", Exactly(0), 0, true},
		{"at least hit", AtLeast(2), 2, true},
		{"at least over", AtLeast(2), 7, true},
		{"at least under", AtLeast(2), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Satisfied(tt.actual); got != tt.want {
				t.Errorf("%s.Satisfied(%d) = %v, want %v", tt.c, tt.actual, got, tt.want)
			}
		})
	}
}

func TestCriterion_String(t *testing.T) {
	if got := Exactly(2).String(); got != "exactly 2" {
		t.Errorf("Exactly(2).String() = %q", got)
	}
	if got := AtLeast(1).String(); got != "at least 1" {
		t.Errorf("AtLeast(1).String() = %q", got)
	}
}

func TestCriterion_NormalizeZero(t *testing.T) {
	got := Criterion{}.Normalize()
	if got != Exactly(1) {
		t.Errorf("zero criterion normalized to %+v, want Exactly(1)", got)
	}
	if got := Exactly(0).Normalize(); got != Exactly(0) {
		t.Errorf("Exactly(0) must not be treated as unspecified, got %+v", got)
	}
}

func TestCriterion_Validate(t *testing.T) {
	if err := Exactly(0).Validate(); err != nil {
		t.Errorf("Exactly(0) should be valid: %v", err)
	}
	if err := AtLeast(-1).Validate(); err == nil {
		t.Error("negative threshold should be rejected")
	}
	err := Criterion{Kind: "most", Value: 1}.Validate()
	if err == nil || !strings.Contains(err.Error(), `"most"`) {
		t.Errorf("unknown kind should be rejected with its name, got %v", err)
	}
}

func TestRankOf_FailuresFirst(t *testing.T) {
	if !(RankOf(StatusFail) < RankOf(StatusSkip) && RankOf(StatusSkip) < RankOf(StatusPass)) {
		t.Error("expected fail < skip < pass ordering")
	}
	if RankOf("weird") <= RankOf(StatusPass) {
		t.Error("unknown statuses should sort last")
	}
}

func TestMetadata_MarshalJSON(t *testing.T) {
	m := Metadata{
		RunID:       "r1",
		BuildConfig: "Release",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)
	if !strings.Contains(out, `"duration_ms":1500`) {
		t.Errorf("missing duration_ms: %s", out)
	}
	if !strings.Contains(out, `"timestamp":"2026-01-02T03:04:05Z"`) {
		t.Errorf("missing RFC3339 timestamp: %s", out)
	}
}

func TestRunReport_UnmetExpectations(t *testing.T) {
	r := RunReport{Expectations: []ExpectationResult{
		{Name: "a", Satisfied: true},
		{Name: "b", Satisfied: false},
	}}
	unmet := r.UnmetExpectations()
	if len(unmet) != 1 || unmet[0].Name != "b" {
		t.Errorf("unexpected unmet list: %+v", unmet)
	}
}

func TestExpectationResult_Mismatch(t *testing.T) {
	r := ExpectationResult{Name: "myFn", Criterion: Exactly(2), Actual: 1}
	want := "Mismatched myFn function calls. Expected exactly 2, actual 1."
	if got := r.Mismatch(); got != want {
		t.Errorf("Mismatch() = %q, want %q", got, want)
	}
}
