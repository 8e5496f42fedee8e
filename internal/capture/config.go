// Package capture turns a callback-driven input stream into an ordered
// queue of fixed-width frames.
package capture

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// configTypeName is the stable type name hashed into configuration keys.
const configTypeName = "github.com/alkime/micgraph/internal/capture.Config"

// Config identifies a capture configuration.
type Config struct {
	// Channels is the number of interleaved channels per frame.
	Channels int
	// SampleRate is the requested stream rate in Hz.
	SampleRate int
}

// Validate returns an error if the config is invalid.
func (c Config) Validate() error {
	if c.Channels < 1 {
		return errors.New("channel count must be positive")
	}

	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	return nil
}

// Key returns a deterministic identifier derived from every field of the
// config. Two configs share a key only if they are equal.
func (c Config) Key() uuid.UUID {
	name := fmt.Sprintf("%s/channels=%d/sample_rate=%d", configTypeName, c.Channels, c.SampleRate)

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

// LegacyKey returns an identifier derived from the config type alone.
// Every Config maps to the same LegacyKey, so a cache keyed on it returns
// the first node built regardless of channel count or sample rate.
func LegacyKey() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(configTypeName))
}

func (c Config) String() string {
	return fmt.Sprintf("%dch@%dHz", c.Channels, c.SampleRate)
}
