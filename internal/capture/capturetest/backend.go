// Package capturetest provides an in-memory capture.Backend for tests.
package capturetest

import (
	"context"
	"errors"
	"sync"

	"github.com/alkime/micgraph/internal/capture"
)

// Backend is a capture.Backend whose single device delivers whatever the
// test pushes through Deliver.
type Backend struct {
	// Device is returned by DefaultInputDevice. A zero Name means no device.
	Device capture.Device
	// Ranges is returned by SupportedInputConfigs.
	Ranges []capture.StreamConfigRange

	// BuildErr and StartErr force the corresponding setup step to fail.
	BuildErr error
	StartErr error

	mu      sync.Mutex
	streams []*Stream
}

// NewBackend returns a backend with one default device supporting ranges.
func NewBackend(ranges ...capture.StreamConfigRange) *Backend {
	return &Backend{
		Device: capture.Device{Name: "fake input", IsDefault: true},
		Ranges: ranges,
	}
}

// F32Range is shorthand for a 32-bit float range.
func F32Range(channels, minRate, maxRate int) capture.StreamConfigRange {
	return capture.StreamConfigRange{
		Format:        capture.FormatF32,
		Channels:      channels,
		MinSampleRate: minRate,
		MaxSampleRate: maxRate,
	}
}

func (b *Backend) DefaultInputDevice(_ context.Context) (capture.Device, error) {
	if b.Device.Name == "" {
		return capture.Device{}, capture.ErrDeviceNotFound
	}

	return b.Device, nil
}

func (b *Backend) SupportedInputConfigs(_ context.Context, _ capture.Device) ([]capture.StreamConfigRange, error) {
	return b.Ranges, nil
}

func (b *Backend) BuildInputStream(
	_ context.Context,
	_ capture.Device,
	conf capture.StreamConfig,
	onData capture.DataFunc,
	onError capture.ErrorFunc,
) (capture.Stream, error) {
	if b.BuildErr != nil {
		return nil, b.BuildErr
	}

	s := &Stream{
		Conf:     conf,
		onData:   onData,
		onError:  onError,
		startErr: b.StartErr,
	}

	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()

	return s, nil
}

// Streams returns every stream built so far.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*Stream(nil), b.streams...)
}

// Last returns the most recently built stream, or nil.
func (b *Backend) Last() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.streams) == 0 {
		return nil
	}

	return b.streams[len(b.streams)-1]
}

// Stream is a fake input stream.
type Stream struct {
	Conf capture.StreamConfig

	onData   capture.DataFunc
	onError  capture.ErrorFunc
	startErr error

	mu      sync.Mutex
	started bool
	closed  bool
}

// ErrNotStarted is returned by Deliver when the stream is not running.
var ErrNotStarted = errors.New("stream not started")

func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startErr != nil {
		return s.startErr
	}

	s.started = true

	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false

	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.closed = true

	return nil
}

// Started reports whether the stream is running.
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.started
}

// Closed reports whether the stream was released.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Deliver invokes the data callback synchronously, as a driver would.
func (s *Stream) Deliver(samples ...float32) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	s.onData(samples)

	return nil
}

// Fail invokes the error callback.
func (s *Stream) Fail(err error) {
	s.onError(err)
}
