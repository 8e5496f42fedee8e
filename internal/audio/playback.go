package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alkime/micgraph/internal/graph"
	"github.com/gen2brain/malgo"
)

// Playback plays a graph node through the default output device. The node
// is pulled from the playback callback, one block per driver period, so the
// output device's clock drives evaluation.
type Playback struct {
	node     graph.Node
	channels int

	mgDevice *malgo.Device

	// touched only on the driver's thread
	cols        [][]float32
	view        [][]float32
	interleaved []float32

	closeOnce sync.Once
}

// NewPlayback initialises an output device that pulls from node at
// sampleRate. The device is not started.
func NewPlayback(_ context.Context, b *MalgoBackend, node graph.Node, sampleRate int) (*Playback, error) {
	if node == nil {
		return nil, errors.New("node cannot be nil")
	}

	if node.Inputs() != 0 {
		return nil, fmt.Errorf("playback needs a source node, got %d inputs", node.Inputs())
	}

	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	mgCtx, err := b.context()
	if err != nil {
		return nil, err
	}

	p := &Playback{ //nolint:exhaustruct // buffers grow on first callback
		node:     node,
		channels: node.Outputs(),
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Playback)
	devCnf.Playback.Format = malgo.FormatF32
	devCnf.Playback.Channels = uint32(p.channels)
	devCnf.SampleRate = uint32(sampleRate)

	callBacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, framecount uint32) {
			p.render(output, int(framecount))
		},
	}

	p.mgDevice, err = malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo playback device: %w", err)
	}

	return p, nil
}

// Start starts the output device.
func (p *Playback) Start() error {
	if p.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := p.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo playback device: %w", err)
	}

	return nil
}

// Stop stops the output device.
func (p *Playback) Stop() error {
	if !p.mgDevice.IsStarted() {
		return nil
	}

	if err := p.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo playback device: %w", err)
	}

	return nil
}

// Close stops and releases the output device. Safe to call multiple times.
func (p *Playback) Close() error {
	var err error

	p.closeOnce.Do(func() {
		err = p.Stop()
		p.mgDevice.Uninit()
	})

	return err
}

// render pulls frames steps from the node into output as F32LE.
func (p *Playback) render(output []byte, frames int) {
	if frames <= 0 || p.channels == 0 {
		return
	}

	if len(p.cols) == 0 || len(p.cols[0]) < frames {
		p.cols = graph.NewBlock(p.channels, frames)
		p.interleaved = make([]float32, frames*p.channels)
	}

	p.view = p.view[:0]
	for _, col := range p.cols {
		p.view = append(p.view, col[:frames])
	}

	p.node.Process(frames, nil, p.view)

	n := graph.Interleave(p.interleaved, p.view, frames)
	written := Float32ToBytes(output, p.interleaved[:n])
	clear(output[written:])
}
