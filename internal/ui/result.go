package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Result is the styled outcome box a command prints when it finishes.
// Details render in sorted key order so output is stable across runs.
type Result struct {
	Title           string
	Details         map[string]string
	Err             error
	Troubleshooting []string
	Width           int

	failed bool
}

// NewSuccessResult creates a success box with optional key/value details
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure box carrying the error and recovery
// hints
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Title:           title,
		Err:             err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
		failed:          true,
	}
}

// SetWidth overrides the detected terminal width
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string
	lines = append(lines, "")
	if r.failed {
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED: %s", FailureMarker, r.Title)))
	} else {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("   %s  %s", SuccessMarker, r.Title)))
	}
	lines = append(lines, "")

	if r.Err != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Err.Error()))
		lines = append(lines, "")
	}

	for _, key := range sortedKeys(r.Details) {
		keyStyled := ResultKeyStyle.Render(fmt.Sprintf("   %s:", key))
		valueStyled := ResultValueStyle.Render(r.Details[key])
		lines = append(lines, keyStyled+" "+valueStyled)
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshooting(width))
		lines = append(lines, "")
	}

	border := SuccessColor
	if r.failed {
		border = ErrorColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Width(width - 2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// renderTroubleshooting renders the inner hint box of a failure result
func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}
	return TroubleshootingBoxStyle(width).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// RenderSuccess renders a success box in one call
func RenderSuccess(title string, details map[string]string) string {
	return NewSuccessResult(title, details).Render()
}

// RenderFailure renders a failure box in one call
func RenderFailure(title string, err error, troubleshooting []string) string {
	return NewFailureResult(title, err, troubleshooting).Render()
}
