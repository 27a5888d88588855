// Package output provides styling helpers for terminal output.
package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles provides styled output helpers for the CLI. Styles render
// through a per-writer renderer, so output to a pipe or file stays plain
// while a terminal gets color.
type Styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	path    lipgloss.Style
	amount  lipgloss.Style
	keyword lipgloss.Style
	dim     lipgloss.Style
}

// NewStyles creates a new Styles instance for the given writer.
func NewStyles(w io.Writer) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		success: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		path:    r.NewStyle().Foreground(lipgloss.Color("6")),
		amount:  r.NewStyle().Foreground(lipgloss.Color("5")),
		keyword: r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
	}
}

// Success returns a styled success string (green + bold).
func (s *Styles) Success(text string) string { return s.success.Render(text) }

// Error returns a styled error string (red + bold).
func (s *Styles) Error(text string) string { return s.failure.Render(text) }

// Warning returns a styled warning (yellow + bold).
func (s *Styles) Warning(text string) string { return s.warning.Render(text) }

// FilePath returns a styled file path (cyan).
func (s *Styles) FilePath(text string) string { return s.path.Render(text) }

// Amount returns a styled money or share amount (magenta).
func (s *Styles) Amount(text string) string { return s.amount.Render(text) }

// Keyword returns a styled keyword (bold).
func (s *Styles) Keyword(text string) string { return s.keyword.Render(text) }

// Dim returns dimmed text (for secondary information).
func (s *Styles) Dim(text string) string { return s.dim.Render(text) }

// Timing returns a styled timing string. Slow operations render as
// warnings, everything else is dimmed.
func (s *Styles) Timing(text string, slow bool) string {
	if slow {
		return s.warning.Render(text)
	}
	return s.dim.Render(text)
}
