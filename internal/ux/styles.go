package ux

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the palette used for text output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles returns the default palette, or plain styles when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Field is a label/value row.
type Field struct {
	Label string
	Value string
}

// Fields renders rows with labels padded to a common width.
func (s Styles) Fields(rows ...Field) string {
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  ")
		b.WriteString(s.Label.Render(r.Label + ":" + strings.Repeat(" ", width-len(r.Label)+1)))
		b.WriteString(s.Value.Render(r.Value))
	}
	return b.String()
}
