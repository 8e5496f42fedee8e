package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alkime/micgraph/pkg/channels"
)

// Sender is the producing end of a frame queue.
type Sender interface {
	// Send enqueues a frame without blocking. It returns an error once the
	// receiving side is gone.
	Send(frame Frame) error
}

// Stats is a snapshot of a worker's counters.
type Stats struct {
	// Callbacks is the number of data deliveries seen from the driver.
	Callbacks int64
	// Frames is the number of frames pushed into the queue.
	Frames int64
	// Discarded counts trailing samples dropped because they did not fill a frame.
	Discarded int64
	// SendFailed counts frames lost after the receiver went away.
	SendFailed int64
}

// Worker owns an input stream and pushes its samples into a Sender as
// fixed-width frames.
//
// Setup happens in NewWorker; afterwards a keep-alive goroutine holds the
// stream until the context passed to NewWorker is cancelled or Close is
// called. Data moves on the driver's callback thread, not on that goroutine.
type Worker struct {
	conf   Config
	device Device
	stream StreamConfig
	sender Sender
	logger *slog.Logger

	halted atomic.Bool

	callbacks  atomic.Int64
	frames     atomic.Int64
	discarded  atomic.Int64
	sendFailed atomic.Int64

	errC chan error

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewWorker opens the default input device of backend, selects a stream
// configuration that serves conf, starts the stream and returns a running
// worker. Every setup failure wraps ErrConstruction together with one of
// ErrDeviceNotFound, ErrNoMatchingConfig, ErrStreamBuild or ErrStreamStart.
//
//nolint:funlen // linear setup sequence
func NewWorker(ctx context.Context, backend Backend, conf Config, sender Sender) (*Worker, error) {
	if err := conf.Validate(); err != nil {
		return nil, setupError(ErrNoMatchingConfig, err)
	}

	if backend == nil || sender == nil {
		return nil, fmt.Errorf("%w: backend and sender are required", ErrConstruction)
	}

	dev, err := backend.DefaultInputDevice(ctx)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, setupError(ErrDeviceNotFound, nil)
		}

		return nil, setupError(ErrDeviceNotFound, err)
	}

	ranges, err := backend.SupportedInputConfigs(ctx, dev)
	if err != nil {
		return nil, setupError(ErrNoMatchingConfig, err)
	}

	streamConf, err := SelectConfig(ranges, conf)
	if err != nil {
		return nil, setupError(ErrNoMatchingConfig, fmt.Errorf("device %q offers %v", dev.Name, ranges))
	}

	w := &Worker{ //nolint:exhaustruct // counters and sync primitives start zeroed
		conf:   conf,
		device: dev,
		stream: streamConf,
		sender: sender,
		logger: slog.With("component", "capture", "config", conf.String(), "device", dev.Name),
		errC:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	stream, err := backend.BuildInputStream(ctx, dev, streamConf, w.onData, w.onError)
	if err != nil {
		return nil, setupError(ErrStreamBuild, err)
	}

	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			w.logger.Debug("failed to close stream after start failure", "error", cerr)
		}

		return nil, setupError(ErrStreamStart, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Go(func() {
		defer close(w.done)

		<-runCtx.Done()

		// no more frames once we begin tearing down
		w.halted.Store(true)

		if err := stream.Stop(); err != nil {
			w.closeErr = fmt.Errorf("failed to stop input stream: %w", err)
		}

		if err := stream.Close(); err != nil && w.closeErr == nil {
			w.closeErr = fmt.Errorf("failed to close input stream: %w", err)
		}

		w.logger.Debug("capture worker stopped", "stats", w.Stats())
	})

	w.logger.Info("capture worker started",
		"channels", streamConf.Channels,
		"sampleRate", streamConf.SampleRate,
		"format", streamConf.Format.String())

	return w, nil
}

// Config returns the configuration the worker was created for.
func (w *Worker) Config() Config {
	return w.conf
}

// StreamConfig returns the negotiated stream configuration.
func (w *Worker) StreamConfig() StreamConfig {
	return w.stream
}

// Device returns the device the worker captures from.
func (w *Worker) Device() Device {
	return w.device
}

// Errors delivers asynchronous stream errors. One undelivered error is
// buffered; later ones are logged and dropped until it is read.
func (w *Worker) Errors() <-chan error {
	return w.errC
}

// Done is closed once the stream has been stopped and released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Halted reports whether the worker has stopped producing frames, either
// because it was closed or because the receiver went away.
func (w *Worker) Halted() bool {
	return w.halted.Load()
}

// Close stops and releases the stream and waits for the keep-alive
// goroutine to exit. Safe to call multiple times.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
	})

	return w.closeErr
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Callbacks:  w.callbacks.Load(),
		Frames:     w.frames.Load(),
		Discarded:  w.discarded.Load(),
		SendFailed: w.sendFailed.Load(),
	}
}

// onData runs on the driver thread. It must not block.
func (w *Worker) onData(samples []float32) {
	if w.halted.Load() {
		return
	}

	w.callbacks.Add(1)

	frames, discarded := SplitFrames(samples, w.conf.Channels)
	w.discarded.Add(int64(discarded))

	for i, frame := range frames {
		if err := w.sender.Send(frame); err != nil {
			w.sendFailed.Add(int64(len(frames) - i))

			if w.halted.CompareAndSwap(false, true) {
				w.logger.Debug("frame receiver gone, no longer producing", "error", err)
			}

			return
		}

		w.frames.Add(1)
	}
}

// onError runs on the driver thread.
func (w *Worker) onError(err error) {
	if err == nil {
		return
	}

	w.logger.Error("input stream error", "error", err)

	if sendErr := channels.SendNonBlock(w.errC, err); sendErr != nil {
		w.logger.Debug("dropped input stream error", "error", err, "reason", sendErr)
	}
}
