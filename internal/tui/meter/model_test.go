package meter_test

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/micgraph/internal/tui/meter"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type mockLevels struct {
	samples []float32
}

func (m *mockLevels) Read() []float32 { return m.samples }

type mockDial struct {
	value atomic.Int64
}

func (m *mockDial) Read() int64 { return m.value.Load() }

type mockKnob struct {
	state atomic.Bool
}

func (m *mockKnob) Read() bool { return m.state.Load() }
func (m *mockKnob) On()        { m.state.Store(true) }
func (m *mockKnob) Off()       { m.state.Store(false) }
func (m *mockKnob) Toggle()    { m.state.Store(!m.state.Load()) }

type fixture struct {
	levels    *mockLevels
	pulled    *mockDial
	underruns *mockDial
	pulling   *mockKnob
}

func newFixture() fixture {
	f := fixture{
		levels:    &mockLevels{samples: []float32{0.5, -0.5, 1}},
		pulled:    &mockDial{},
		underruns: &mockDial{},
		pulling:   &mockKnob{},
	}
	f.pulling.On()

	return f
}

func (f fixture) controls() meter.Controls {
	return meter.Controls{
		Samples:   f.levels,
		Pulled:    f.pulled,
		Underruns: f.underruns,
		Pulling:   f.pulling,
	}
}

func waitFor(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()

	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	},
		teatest.WithCheckInterval(50*time.Millisecond),
		teatest.WithDuration(3*time.Second))
}

func TestMeter_ShowsCounters(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.pulled.value.Store(4800)
	f.underruns.value.Store(12)

	tm := teatest.NewTestModel(t, meter.New(nil, "2ch@48000Hz", f.controls()), teatest.WithInitialTermSize(80, 24))

	waitFor(t, tm, "frames: 4800  underruns: 12")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestMeter_PauseToggle(t *testing.T) {
	t.Parallel()

	f := newFixture()

	tm := teatest.NewTestModel(t, meter.New(nil, "1ch@48000Hz", f.controls()), teatest.WithInitialTermSize(80, 24))

	waitFor(t, tm, "Capturing")

	tm.Send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	waitFor(t, tm, "Paused")
	assert.False(t, f.pulling.Read())

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestMeter_QuitCancels(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture()

	m := meter.New(cancel, "1ch@48000Hz", f.controls())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestMeter_ViewWithoutSamples(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.levels.samples = nil
	f.pulling.Off()

	view := meter.New(nil, "1ch@48000Hz", f.controls()).View()

	assert.Contains(t, view, "Paused")
	assert.Contains(t, view, "1ch@48000Hz")
	assert.Contains(t, view, "▁▁▁▁")
	assert.Contains(t, view, "underruns: 0")
}
