// Package audio implements capture.Backend and a playback sink on top of
// miniaudio (via malgo).
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/pkg/collections"
	"github.com/gen2brain/malgo"
)

// MalgoBackend is a capture.Backend backed by a lazily initialised malgo
// context. One context is shared by every stream the backend opens.
type MalgoBackend struct {
	backends []malgo.Backend

	mu    sync.Mutex
	mgCtx *malgo.AllocatedContext
}

var _ capture.Backend = (*MalgoBackend)(nil)

// NewMalgoBackend creates a backend. With no arguments miniaudio picks the
// platform's default audio backend; pass malgo.BackendNull for a silent
// device that needs no hardware.
func NewMalgoBackend(backends ...malgo.Backend) *MalgoBackend {
	return &MalgoBackend{backends: backends}
}

// Close releases the malgo context. Streams must be closed first.
func (b *MalgoBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	uninitializeContext(b.mgCtx)
	b.mgCtx = nil
}

func (b *MalgoBackend) context() (*malgo.AllocatedContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mgCtx != nil {
		return b.mgCtx, nil
	}

	mgCtx, err := malgo.InitContext(b.backends, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("malgo audio device log", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	b.mgCtx = mgCtx

	return mgCtx, nil
}

// EnumerateDevices lists available capture devices with their supported
// input configurations.
func (b *MalgoBackend) EnumerateDevices(ctx context.Context) ([]Info, error) {
	mgCtx, err := b.context()
	if err != nil {
		return nil, err
	}

	captureDevices, err := mgCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	infos := collections.Apply(captureDevices, malgoDeviceInfoToDeviceInfo)

	for i := range captureDevices {
		dev := toDevice(&captureDevices[i])

		ranges, err := b.SupportedInputConfigs(ctx, dev)
		if err != nil {
			slog.Debug("failed to query device formats", "device", dev.Name, "error", err)

			continue
		}

		infos[i].Ranges = ranges
	}

	return infos, nil
}

// DefaultInputDevice returns the capture device flagged as default. Some
// backends flag none; the first capture device is used then.
func (b *MalgoBackend) DefaultInputDevice(_ context.Context) (capture.Device, error) {
	return b.defaultDevice(malgo.Capture)
}

// SupportedInputConfigs queries dev's native formats. See nativeRanges for
// how they map to ranges.
func (b *MalgoBackend) SupportedInputConfigs(_ context.Context, dev capture.Device) ([]capture.StreamConfigRange, error) {
	id, ok := dev.Ref.(malgo.DeviceID)
	if !ok {
		return nil, fmt.Errorf("device %q was not returned by this backend", dev.Name)
	}

	mgCtx, err := b.context()
	if err != nil {
		return nil, err
	}

	info, err := mgCtx.DeviceInfo(malgo.Capture, id, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("failed to get device info for %q: %w", dev.Name, err)
	}

	count := min(int(info.FormatCount), len(info.Formats))

	return nativeRanges(info.Formats[:count]), nil
}

// BuildInputStream initialises a malgo capture device delivering float32
// samples to onData. The device is not started.
func (b *MalgoBackend) BuildInputStream(
	_ context.Context,
	dev capture.Device,
	conf capture.StreamConfig,
	onData capture.DataFunc,
	onError capture.ErrorFunc,
) (capture.Stream, error) {
	if conf.Format != capture.FormatF32 {
		return nil, fmt.Errorf("unsupported stream format %s", conf.Format)
	}

	id, ok := dev.Ref.(malgo.DeviceID)
	if !ok {
		return nil, fmt.Errorf("device %q was not returned by this backend", dev.Name)
	}

	mgCtx, err := b.context()
	if err != nil {
		return nil, err
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = toMalgoFormat(conf.Format)
	devCnf.Capture.Channels = uint32(conf.Channels)
	devCnf.Capture.DeviceID = id.Pointer()
	devCnf.SampleRate = uint32(conf.SampleRate)

	stream := &malgoStream{} //nolint:exhaustruct // device set below

	// buf is only touched on the driver's thread
	var buf []float32

	callBacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			buf = BytesToFloat32(buf[:0], samples)
			onData(buf)
		},
		Stop: func() {
			if !stream.stopping.Load() && onError != nil {
				onError(capture.ErrStreamStopped)
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	stream.device = mgDevice

	return stream, nil
}

// DefaultPlaybackSampleRate returns the sample rate of the default output
// device's first native format, or 0 if the device accepts any rate.
func (b *MalgoBackend) DefaultPlaybackSampleRate(_ context.Context) (int, error) {
	dev, err := b.defaultDevice(malgo.Playback)
	if err != nil {
		return 0, err
	}

	id, _ := dev.Ref.(malgo.DeviceID)

	mgCtx, err := b.context()
	if err != nil {
		return 0, err
	}

	info, err := mgCtx.DeviceInfo(malgo.Playback, id, malgo.Shared)
	if err != nil {
		return 0, fmt.Errorf("failed to get device info for %q: %w", dev.Name, err)
	}

	if info.FormatCount == 0 {
		return 0, nil
	}

	return int(info.Formats[0].SampleRate), nil
}

func (b *MalgoBackend) defaultDevice(devType malgo.DeviceType) (capture.Device, error) {
	mgCtx, err := b.context()
	if err != nil {
		return capture.Device{}, err
	}

	devices, err := mgCtx.Devices(devType)
	if err != nil {
		return capture.Device{}, fmt.Errorf("failed to get devices: %w", err)
	}

	if len(devices) == 0 {
		return capture.Device{}, capture.ErrDeviceNotFound
	}

	for i := range devices {
		if devices[i].IsDefault != 0 {
			return toDevice(&devices[i]), nil
		}
	}

	return toDevice(&devices[0]), nil
}

// malgoStream adapts a malgo device to capture.Stream.
type malgoStream struct {
	device   *malgo.Device
	stopping atomic.Bool
	closed   atomic.Bool
}

func (s *malgoStream) Start() error {
	if s.closed.Load() {
		return errors.New("stream closed")
	}

	if s.device.IsStarted() {
		// noop
		return nil
	}

	s.stopping.Store(false)

	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (s *malgoStream) Stop() error {
	if s.closed.Load() || !s.device.IsStarted() {
		// noop
		return nil
	}

	s.stopping.Store(true)

	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (s *malgoStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.stopping.Store(true)
	s.device.Uninit()

	return nil
}

// Info describes a capture device for display.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
	Ranges      []capture.StreamConfigRange
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	count := min(int(mdi.FormatCount), len(mdi.Formats))

	formats := make([]string, count)
	for i, mf := range mdi.Formats[:count] {
		formats[i] = fmt.Sprintf("(Format: %s, Channels: %d, SampleRate: %d)",
			toSampleFormat(mf.Format), mf.Channels, mf.SampleRate)
	}

	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
		Ranges:      nil,
	}
}

func toDevice(mdi *malgo.DeviceInfo) capture.Device {
	return capture.Device{
		Name:      mdi.Name(),
		IsDefault: mdi.IsDefault != 0,
		Ref:       mdi.ID,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
