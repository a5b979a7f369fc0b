package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// SuccessMarker is the only output of a clean run in text format.
const SuccessMarker = "ok"

// WriteText writes the plain report: the success marker to out when
// the run passed, otherwise the diagnostics for every unmet
// expectation and one line per failed module to diag.
func WriteText(out, diag io.Writer, rpt taxonomy.RunReport) error {
	if !rpt.Failed() {
		_, err := fmt.Fprintln(out, SuccessMarker)
		return err
	}

	for _, e := range rpt.UnmetExpectations() {
		if err := expect.WriteMismatch(diag, e); err != nil {
			return err
		}
	}
	for _, m := range rpt.Modules {
		if m.Status != taxonomy.StatusFail {
			continue
		}
		if _, err := fmt.Fprintf(diag, "FAIL %s (%s): %s\n", m.Module, m.Variant, m.Error); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(diag, "exit status %d\n", rpt.ExitCode)
	return err
}

// WriteTable writes the report as styled tables of modules and
// expectations followed by a summary.
func WriteTable(w io.Writer, rpt taxonomy.RunReport) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render("=== Modules ==="))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    build %s, API version %d, variants %s",
		rpt.Metadata.BuildConfig, rpt.Metadata.APIVersion, strings.Join(rpt.Metadata.Variants, ", "))))
	if len(rpt.Modules) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    No modules ran."))
	} else {
		fmt.Fprintln(w, moduleTable(rpt.Modules, s))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, s.Header.Render("=== Expectations ==="))
	switch {
	case rpt.Audit.Skipped:
		fmt.Fprintln(w, s.Muted.Render("    Audit skipped: the run had already failed."))
	case len(rpt.Expectations) == 0:
		fmt.Fprintln(w, s.Muted.Render("    No expectations registered."))
	default:
		fmt.Fprintln(w, expectationTable(rpt.Expectations, s))
	}

	fmt.Fprintln(w)
	writeSummary(w, rpt, s)
	return nil
}

// Column budget: 80 cols total, leaving 4 for the indent.
const maxDetail = 36

func truncate(str string, n int) string {
	str = strings.ReplaceAll(str, "\n", " ")
	if len(str) > n {
		return str[:n-3] + "..."
	}
	return str
}

func moduleTable(mods []taxonomy.ModuleResult, s Styles) *table.Table {
	rows := make([][]string, 0, len(mods))
	for _, m := range mods {
		rows = append(rows, []string{
			string(m.Status),
			m.Module,
			m.Variant,
			truncate(m.Error, maxDetail),
		})
	}
	return table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 0 && row >= 0 && row < len(rows) {
				return s.StatusStyle(taxonomy.Status(rows[row][0]))
			}
			return s.TableCell
		}).
		Headers("STATUS", "MODULE", "VARIANT", "DETAIL").
		Rows(rows...)
}

func expectationTable(exps []taxonomy.ExpectationResult, s Styles) *table.Table {
	rows := make([][]string, 0, len(exps))
	for _, e := range exps {
		mark := "met"
		if !e.Satisfied {
			mark = "unmet"
		}
		rows = append(rows, []string{
			mark,
			truncate(e.Name, 24),
			e.Criterion.String(),
			fmt.Sprintf("%d", e.Actual),
		})
	}
	return table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 0 && row >= 0 && row < len(rows) {
				return s.SatisfiedStyle(rows[row][0] == "met")
			}
			return s.TableCell
		}).
		Headers("RESULT", "FUNCTION", "EXPECTED", "ACTUAL").
		Rows(rows...)
}

func writeSummary(w io.Writer, rpt taxonomy.RunReport, s Styles) {
	counts := taxonomy.CountStatuses(rpt.Modules)
	line := func(label, value string) {
		fmt.Fprintf(w, "%s%s\n", s.SummaryLabel.Render(label), s.SummaryValue.Render(value))
	}
	line("Modules:", fmt.Sprintf("%s, %s, %s",
		s.Pass.Render(fmt.Sprintf("%d passed", counts[taxonomy.StatusPass])),
		s.Fail.Render(fmt.Sprintf("%d failed", counts[taxonomy.StatusFail])),
		s.Skip.Render(fmt.Sprintf("%d skipped", counts[taxonomy.StatusSkip]))))
	line("Expectations:", fmt.Sprintf("%d registered, %d unmet", rpt.Audit.Registered, rpt.Audit.Failed))
	status := s.Pass.Render("PASS")
	if rpt.Failed() {
		status = s.Fail.Render("FAIL")
	}
	line("Result:", fmt.Sprintf("%s (exit %d)", status, rpt.ExitCode))
}
