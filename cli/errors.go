package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mkuiper/rsutax/ledger"
)

var errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})

// ErrorRenderer renders errors with terminal styling. Row-level data
// errors get their source location as dimmed context; shortfalls get the
// allocation numbers spelled out.
type ErrorRenderer struct {
	source string
}

// NewErrorRenderer creates a renderer. The source name (file path or
// "<stdin>") is shown with row-level errors.
func NewErrorRenderer(source string) *ErrorRenderer {
	return &ErrorRenderer{source: source}
}

// Render formats a single error with styling.
func (r *ErrorRenderer) Render(err error) string {
	var dataErr *ledger.DataError
	if errors.As(err, &dataErr) {
		return r.renderDataError(dataErr)
	}

	var shortfall *ledger.ShortfallError
	if errors.As(err, &shortfall) {
		return r.renderShortfall(shortfall)
	}

	var processing *ledger.ProcessingErrors
	if errors.As(err, &processing) {
		return r.RenderAll(processing.Errors)
	}

	return errorStyle.Render(err.Error())
}

// RenderAll formats multiple errors, separating them with newlines.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf strings.Builder
	for i, err := range errs {
		buf.WriteString(r.Render(err))
		if i < len(errs)-1 {
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

func (r *ErrorRenderer) renderDataError(e *ledger.DataError) string {
	var buf strings.Builder

	buf.WriteString(errorStyle.Render(e.Reason))
	location := fmt.Sprintf("%s: row %d", r.source, e.Row)
	if e.Field != "" {
		location += fmt.Sprintf(", field %q", e.Field)
	}
	buf.WriteString("\n   ")
	buf.WriteString(errContextStyle.Render(location))
	if e.Underlying != nil {
		buf.WriteString("\n   ")
		buf.WriteString(errContextStyle.Render(e.Underlying.Error()))
	}

	return buf.String()
}

func (r *ErrorRenderer) renderShortfall(e *ledger.ShortfallError) string {
	var buf strings.Builder

	buf.WriteString(errorStyle.Render(
		fmt.Sprintf("sale of %s shares on %s exceeds available shares", e.Requested, e.SaleDate)))
	buf.WriteString("\n   ")
	buf.WriteString(errContextStyle.Render(
		fmt.Sprintf("allocated %s, unsatisfied %s", e.Allocated, e.Unsatisfied)))

	return buf.String()
}
