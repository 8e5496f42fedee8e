package graph

import (
	"fmt"
	"strings"
)

// UnderrunPolicy decides what a capture node emits when no frame is queued.
type UnderrunPolicy int

const (
	// UnderrunSilence emits an all-zero frame.
	UnderrunSilence UnderrunPolicy = iota
	// UnderrunHold repeats the last delivered frame, or silence if none
	// has been delivered yet.
	UnderrunHold
)

func (p UnderrunPolicy) String() string {
	switch p {
	case UnderrunSilence:
		return "silence"
	case UnderrunHold:
		return "hold"
	default:
		return fmt.Sprintf("UnderrunPolicy(%d)", int(p))
	}
}

// ParseUnderrunPolicy parses "silence" or "hold" (case-insensitive).
// An empty string means silence.
func ParseUnderrunPolicy(s string) (UnderrunPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "silence":
		return UnderrunSilence, nil
	case "hold":
		return UnderrunHold, nil
	default:
		return UnderrunSilence, fmt.Errorf("invalid underrun policy %q: must be 'silence' or 'hold'", s)
	}
}
