// Package uictl defines the read/write controls a UI uses to observe and
// steer the audio pipeline without depending on it.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Knob is a simple on/off toggle control.
type Knob interface {
	Read() bool
	On()
	Off()
	Toggle()
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// Levels is a control that can read multiple levels.
type Levels[N Number] interface {
	Read() []N
}
