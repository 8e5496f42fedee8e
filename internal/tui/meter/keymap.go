package meter

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the meter.
type KeyMap struct {
	Pause key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default key bindings for the meter.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the short help bindings for the meter.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Quit}
}

// FullHelp returns the full help bindings for the meter.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Quit},
	}
}
