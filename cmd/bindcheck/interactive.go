package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/bindcheck/internal/expect"
	"github.com/unbound-force/bindcheck/internal/report"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Failures key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Failures, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Failures, k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Failures: key.NewBinding(key.WithKeys("f", "tab"), key.WithHelp("f", "failures only")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))
)

// reportModel is the Bubble Tea model for browsing a run report.
type reportModel struct {
	report       taxonomy.RunReport
	failuresOnly bool
	viewport     viewport.Model
	help         help.Model
	keys         keyMap
	ready        bool
}

func newReportModel(rpt taxonomy.RunReport) reportModel {
	return reportModel{
		report: rpt,
		help:   help.New(),
		keys:   defaultKeyMap,
	}
}

func (m reportModel) content() string {
	if m.failuresOnly {
		return renderReportContent(failuresOf(m.report))
	}
	return renderReportContent(m.report)
}

// failuresOf keeps only failed modules and unmet expectations.
func failuresOf(rpt taxonomy.RunReport) taxonomy.RunReport {
	var mods []taxonomy.ModuleResult
	for _, r := range rpt.Modules {
		if r.Status == taxonomy.StatusFail {
			mods = append(mods, r)
		}
	}
	rpt.Modules = mods
	rpt.Expectations = rpt.UnmetExpectations()
	return rpt
}

// renderReportContent lays out the module and expectation tables,
// followed by the full diagnostic of each unmet expectation.
func renderReportContent(rpt taxonomy.RunReport) string {
	var sb strings.Builder

	result := "PASS"
	if rpt.Failed() {
		result = "FAIL"
	}
	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("bindcheck %s: %d module run(s), %d expectation(s)",
			result, len(rpt.Modules), len(rpt.Expectations))))
	sb.WriteString("\n\n")

	_ = report.WriteTable(&sb, rpt)

	unmet := rpt.UnmetExpectations()
	if len(unmet) == 0 {
		return sb.String()
	}
	sb.WriteString("\n")
	sb.WriteString(tuiHeaderStyle.Render("=== Diagnostics ==="))
	sb.WriteString("\n")
	for _, e := range unmet {
		_ = expect.WriteMismatch(&sb, e)
		sb.WriteString(statusStyle.Render(fmt.Sprintf("    id %s", e.ID)))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (m reportModel) Init() tea.Cmd {
	return nil
}

func (m reportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			m.viewport.SetContent(m.content())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footerHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Failures):
			m.failuresOnly = !m.failuresOnly
			if m.ready {
				m.viewport.SetContent(m.content())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m reportModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveReport launches the Bubble Tea TUI for browsing a run
// report.
func runInteractiveReport(rpt taxonomy.RunReport) error {
	p := tea.NewProgram(newReportModel(rpt), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
