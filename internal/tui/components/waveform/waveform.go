// Package waveform provides a TUI component for visualizing audio amplitude.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/micgraph/internal/tui/style"
	"github.com/alkime/micgraph/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Block characters for amplitude visualization (8 levels, bottom to top).
// Index 0 = empty (space), 1-8 = increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

// TickMsg triggers a waveform redraw.
type TickMsg struct{}

// Model displays an oscilloscope-style waveform visualization.
// It reads float samples in [-1, 1] from a Levels control and renders them
// as vertical bars showing amplitude over time (left=older, right=newer).
type Model struct {
	levels uictl.Levels[float32]
	width  int
	height int
}

// New creates a new waveform model.
// The width parameter determines how many columns to render.
// The height parameter determines how many rows tall the waveform is.
// Samples are aggregated to fit the display width.
func New(levels uictl.Levels[float32], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

// Init returns the initial tick command.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles tick messages for animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

// SetWidth resizes the waveform, e.g. after a tea.WindowSizeMsg.
func (m Model) SetWidth(width int) Model {
	m.width = max(width, 1)

	return m
}

// View renders the waveform as ASCII art.
func (m Model) View() string {
	if m.levels == nil {
		return m.renderEmpty()
	}

	samples := m.levels.Read()
	if len(samples) == 0 {
		return m.renderEmpty()
	}

	return m.renderWaveform(samples)
}

// tick schedules the next waveform update at ~20 FPS.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) renderWaveform(samples []float32) string {
	levels := m.calculateLevels(samples)
	runes := []rune(blockChars)

	var sb strings.Builder

	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		var rowSB strings.Builder

		for col := 0; col < m.width; col++ {
			rowSB.WriteRune(runes[m.blockIndexForRow(levels[col], row)])
		}

		sb.WriteString(style.Progress.Render(rowSB.String()))
	}

	return sb.String()
}

// calculateLevels computes a level in 0..height*8 for each column.
func (m Model) calculateLevels(samples []float32) []int {
	levels := make([]int, m.width)
	bucketSize := max(1, len(samples)/m.width)
	maxLevel := m.height * 8

	for col := 0; col < m.width; col++ {
		start := col * bucketSize
		if start >= len(samples) {
			continue
		}

		end := min(start+bucketSize, len(samples))
		levels[col] = amplitudeToLevel(Peak(samples[start:end]), maxLevel)
	}

	return levels
}

// blockIndexForRow returns the block character index (0-8) for a column
// level at a row. Row 0 is the top.
func (m Model) blockIndexForRow(level, row int) int {
	rowFromBottom := m.height - 1 - row
	fill := level - rowFromBottom*8

	return min(max(fill, 0), 8)
}

func (m Model) renderEmpty() string {
	var sb strings.Builder

	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		// bottom row shows the baseline
		ch := " "
		if row == m.height-1 {
			ch = "▁"
		}

		sb.WriteString(style.Muted.Render(strings.Repeat(ch, m.width)))
	}

	return sb.String()
}

// Peak returns the largest absolute sample value, clipped to 1. NaN
// samples are ignored.
func Peak(samples []float32) float32 {
	var peak float32

	for _, s := range samples {
		if s < 0 {
			s = -s
		}

		if s > peak {
			peak = s
		}
	}

	return min(peak, 1)
}

// amplitudeToLevel maps an amplitude in [0, 1] to 0..maxLevel on a square
// root curve so quiet input stays visible.
func amplitudeToLevel(amp float32, maxLevel int) int {
	if amp <= 0 {
		return 0
	}

	scaled := math.Sqrt(float64(amp)) * float64(maxLevel)

	return min(int(scaled), maxLevel)
}
