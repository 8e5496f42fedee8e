package capture_test

import (
	"context"

	"github.com/alkime/micgraph/internal/capture"
	"github.com/stretchr/testify/mock"
)

// MockBackend mocks capture.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) DefaultInputDevice(ctx context.Context) (capture.Device, error) {
	args := m.Called(ctx)
	return args.Get(0).(capture.Device), args.Error(1)
}

func (m *MockBackend) SupportedInputConfigs(ctx context.Context, dev capture.Device) ([]capture.StreamConfigRange, error) {
	args := m.Called(ctx, dev)
	ranges, _ := args.Get(0).([]capture.StreamConfigRange)
	return ranges, args.Error(1)
}

func (m *MockBackend) BuildInputStream(
	ctx context.Context,
	dev capture.Device,
	conf capture.StreamConfig,
	onData capture.DataFunc,
	onError capture.ErrorFunc,
) (capture.Stream, error) {
	args := m.Called(ctx, dev, conf, onData, onError)
	stream, _ := args.Get(0).(capture.Stream)
	return stream, args.Error(1)
}

// MockStream mocks capture.Stream
type MockStream struct {
	mock.Mock
}

func (m *MockStream) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStream) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStream) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingSender collects frames and can be told to fail.
type recordingSender struct {
	frames []capture.Frame
	failAt int // fail once this many frames were accepted; 0 never fails
}

func (s *recordingSender) Send(frame capture.Frame) error {
	if s.failAt > 0 && len(s.frames) >= s.failAt {
		return errReceiverGone
	}

	s.frames = append(s.frames, frame)

	return nil
}
