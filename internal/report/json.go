// Package report provides output formatters for bindcheck run reports
// in JSON, plain text and styled table formats.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// SchemaVersion is the version of the JSON report layout.
const SchemaVersion = "1.0.0"

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	SchemaVersion string `json:"schema_version"`
	taxonomy.RunReport
}

// WriteJSON writes the report as indented JSON, or as RFC 8785
// canonical JSON on a single line when canonical is set.
func WriteJSON(w io.Writer, rpt taxonomy.RunReport, canonical bool) error {
	if rpt.Modules == nil {
		rpt.Modules = []taxonomy.ModuleResult{}
	}
	if rpt.Expectations == nil {
		rpt.Expectations = []taxonomy.ExpectationResult{}
	}
	if rpt.Metadata.Variants == nil {
		rpt.Metadata.Variants = []string{}
	}
	out := JSONReport{SchemaVersion: SchemaVersion, RunReport: rpt}

	if !canonical {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	canon, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return fmt.Errorf("canonicalizing report: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", canon)
	return err
}
