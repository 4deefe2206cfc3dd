package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Transfer renders a live progress line for a firmware transfer. It is meant
// to be redrawn in place (carriage return) as chunks or blocks complete.
type Transfer struct {
	Label   string // e.g., "Transferring firmware..."
	Unit    string // e.g., "chunk", "block"
	Current int    // Units completed
	Total   int    // Total units
	Bytes   int64  // Bytes transferred so far (optional)
	bar     progress.Model
}

// NewTransfer creates a transfer progress line for total units of the given
// unit name.
func NewTransfer(label, unit string, total int) *Transfer {
	width := GetTerminalWidth()
	barWidth := width - 30 // Leave room for percentage and unit counter
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}

	return &Transfer{
		Label: label,
		Unit:  unit,
		Total: total,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
		),
	}
}

// Update records completed units and optional byte count
func (t *Transfer) Update(current int, bytes int64) {
	t.Current = current
	t.Bytes = bytes
}

// Percent returns the completed fraction in [0, 1]
func (t *Transfer) Percent() float64 {
	if t.Total <= 0 {
		return 0
	}
	pct := float64(t.Current) / float64(t.Total)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// Render returns the transfer line with its label: bar, percentage, and
// unit counter
func (t *Transfer) Render() string {
	pct := t.Percent()
	line := fmt.Sprintf("%s %3.0f%%  %s %d/%d",
		t.bar.ViewAs(pct), pct*100, t.Unit, t.Current, t.Total)
	if t.Bytes > 0 {
		line += StepNoteStyle.Render(fmt.Sprintf("  (%s)", FormatBytes(t.Bytes)))
	}

	var b strings.Builder
	if t.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(t.Label))
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(line))
	return b.String()
}

// RenderLine returns a single line suitable for in-place redraw with "\r"
func (t *Transfer) RenderLine() string {
	pct := t.Percent()
	line := fmt.Sprintf("  %s %3.0f%%  %s %d/%d",
		t.bar.ViewAs(pct), pct*100, t.Unit, t.Current, t.Total)
	if t.Bytes > 0 {
		line += fmt.Sprintf("  %s", FormatBytes(t.Bytes))
	}
	return line
}

// String implements fmt.Stringer
func (t *Transfer) String() string {
	return t.Render()
}

// FormatBytes renders a byte count in a human-readable unit
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
