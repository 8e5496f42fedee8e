// Package style defines lipgloss styles for the TUI.
package style

import "github.com/charmbracelet/lipgloss"

// UI styles using lipgloss. Names omit a "Style" suffix since they're
// accessed via the package (style.Title).
var (
	// Title is used for the capture state header.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	// Subtitle is used for the stream description and elapsed time.
	Subtitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// Warning is used for the paused state and nonzero underrun counts.
	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	// Progress is used for the waveform bars.
	Progress = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	// Label is used for inline labels (e.g., "frames:").
	Label = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255"))

	// Muted is used for de-emphasized text and the idle baseline.
	Muted = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))
)
