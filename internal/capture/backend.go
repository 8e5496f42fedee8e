package capture

import (
	"context"
	"fmt"
)

// SampleFormat is the native encoding of one sample.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	case FormatUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Device describes an input device as reported by a Backend.
type Device struct {
	Name      string
	IsDefault bool

	// Ref is the backend's own handle for the device.
	Ref any
}

// StreamConfigRange is one input configuration a device supports.
// Sample rates between MinSampleRate and MaxSampleRate are accepted.
type StreamConfigRange struct {
	Format        SampleFormat
	Channels      int
	MinSampleRate int
	MaxSampleRate int
}

func (r StreamConfigRange) String() string {
	return fmt.Sprintf("%s %dch %d-%dHz", r.Format, r.Channels, r.MinSampleRate, r.MaxSampleRate)
}

// StreamConfig is the concrete configuration a stream is opened with.
type StreamConfig struct {
	Format     SampleFormat
	Channels   int
	SampleRate int
}

// DataFunc receives interleaved samples on the driver's thread.
// The slice is only valid for the duration of the call.
type DataFunc func(samples []float32)

// ErrorFunc receives asynchronous stream errors on the driver's thread.
type ErrorFunc func(err error)

// Stream is an opened input stream.
type Stream interface {
	Start() error
	Stop() error
	// Close releases the stream. Stop is implied.
	Close() error
}

// Backend is the platform capture API.
type Backend interface {
	// DefaultInputDevice returns the platform's default input device.
	// Returns ErrDeviceNotFound if there is none.
	DefaultInputDevice(ctx context.Context) (Device, error)

	// SupportedInputConfigs lists the input configurations dev supports.
	SupportedInputConfigs(ctx context.Context, dev Device) ([]StreamConfigRange, error)

	// BuildInputStream opens a stream on dev. The stream does not deliver
	// data until Start is called.
	BuildInputStream(
		ctx context.Context,
		dev Device,
		conf StreamConfig,
		onData DataFunc,
		onError ErrorFunc,
	) (Stream, error)
}

// SelectConfig returns the first range that can serve cfg as 32-bit float
// samples. The channel count must match exactly and the sample rate must lie
// strictly inside the range; a range whose bound equals the requested rate
// is rejected.
func SelectConfig(ranges []StreamConfigRange, cfg Config) (StreamConfig, error) {
	for _, r := range ranges {
		if r.Format != FormatF32 || r.Channels != cfg.Channels {
			continue
		}

		if r.MinSampleRate < cfg.SampleRate && cfg.SampleRate < r.MaxSampleRate {
			return StreamConfig{
				Format:     FormatF32,
				Channels:   cfg.Channels,
				SampleRate: cfg.SampleRate,
			}, nil
		}
	}

	return StreamConfig{}, fmt.Errorf("%w for %s", ErrNoMatchingConfig, cfg)
}
