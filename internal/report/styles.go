package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers.
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// SummaryValue styles summary line values.
	SummaryValue lipgloss.Style

	Pass lipgloss.Style
	Fail lipgloss.Style
	Skip lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(20),
		SummaryValue: lipgloss.NewStyle(),

		Pass: lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Skip: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// StatusStyle returns the style for a module status.
func (s Styles) StatusStyle(status taxonomy.Status) lipgloss.Style {
	switch status {
	case taxonomy.StatusPass:
		return s.Pass
	case taxonomy.StatusFail:
		return s.Fail
	case taxonomy.StatusSkip:
		return s.Skip
	default:
		return s.Muted
	}
}

// SatisfiedStyle returns the style for an expectation outcome.
func (s Styles) SatisfiedStyle(ok bool) lipgloss.Style {
	if ok {
		return s.Pass
	}
	return s.Fail
}
