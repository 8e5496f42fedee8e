// Package meter provides the TUI for monitoring a capture node.
package meter

import (
	"context"
	"fmt"

	"github.com/alkime/micgraph/internal/tui/components/waveform"
	"github.com/alkime/micgraph/internal/tui/style"
	"github.com/alkime/micgraph/pkg/uictl"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	waveformWidth  = 60
	waveformHeight = 4
)

// Controls provides read/write access to the monitored capture node.
type Controls struct {
	// Samples are the most recent pulled samples, mixed to mono.
	Samples uictl.Levels[float32]
	// Pulled counts frames taken from the queue.
	Pulled uictl.Dial[int64]
	// Underruns counts steps that found the queue empty.
	Underruns uictl.Dial[int64]
	// Pulling is on while the node is being pulled.
	Pulling uictl.Knob
}

// Model is the top-level meter UI.
type Model struct {
	cancel   context.CancelFunc
	title    string
	controls Controls

	keys      KeyMap
	help      help.Model
	spinner   spinner.Model
	stopwatch stopwatch.Model
	waveform  waveform.Model
}

// New creates a meter for the node described by title. cancel is called on
// quit; it may be nil.
func New(cancel context.CancelFunc, title string, controls Controls) Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	return Model{
		cancel:    cancel,
		title:     title,
		controls:  controls,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   s,
		stopwatch: stopwatch.New(),
		waveform:  waveform.New(controls.Samples, waveformWidth, waveformHeight),
	}
}

// Init starts the spinner, stopwatch and waveform ticks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.stopwatch.Init(),
		m.stopwatch.Start(),
		m.waveform.Init(),
	)
}

// Update handles messages for the meter.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}

			return m, tea.Quit

		case key.Matches(msg, m.keys.Pause):
			m.controls.Pulling.Toggle()

			return m, m.stopwatch.Toggle()
		}

	case tea.WindowSizeMsg:
		m.waveform = m.waveform.SetWidth(min(msg.Width, waveformWidth))
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case stopwatch.TickMsg, stopwatch.StartStopMsg, stopwatch.ResetMsg:
		var cmd tea.Cmd
		m.stopwatch, cmd = m.stopwatch.Update(msg)
		cmds = append(cmds, cmd)

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.waveform, cmd = m.waveform.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the meter.
func (m Model) View() string {
	var s string

	if m.controls.Pulling.Read() {
		s += m.spinner.View() + " "
		s += style.Title.Render("Capturing") + " "
	} else {
		s += style.Warning.Render("Paused") + " "
	}

	s += style.Subtitle.Render(m.title + "  " + m.stopwatch.View())
	s += "\n\n"

	s += m.waveform.View()
	s += "\n\n"

	s += m.statsView()
	s += "\n\n"

	s += m.help.View(m.keys)

	return s
}

func (m Model) statsView() string {
	underruns := m.controls.Underruns.Read()

	underrunStyle := style.Muted
	if underruns > 0 {
		underrunStyle = style.Warning
	}

	return style.Label.Render("frames: ") + style.Muted.Render(fmt.Sprintf("%d", m.controls.Pulled.Read())) +
		"  " +
		style.Label.Render("underruns: ") + underrunStyle.Render(fmt.Sprintf("%d", underruns))
}
