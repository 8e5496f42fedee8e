package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Drainer is implemented by nodes that can discard input queued while a
// Pump was paused, such as *CaptureNode.
type Drainer interface {
	Drain() int
}

// BlockFunc receives each block a Pump pulls. The columns are reused for the
// next block.
type BlockFunc func(block [][]float32, size int)

// Pump evaluates a source node in real time: every size/sampleRate seconds
// it pulls one block of size steps and hands it to a BlockFunc. It stands in
// for a host graph when nothing else drives the node, e.g. for metering.
type Pump struct {
	node   Node
	size   int
	period time.Duration
	sink   BlockFunc

	block   [][]float32
	running atomic.Bool
}

// NewPump creates a running pump. size and sampleRate must be positive.
func NewPump(node Node, size, sampleRate int, sink BlockFunc) (*Pump, error) {
	if node == nil || sink == nil {
		return nil, errors.New("node and sink cannot be nil")
	}

	if size <= 0 || sampleRate <= 0 {
		return nil, errors.New("block size and sample rate must be positive")
	}

	period := time.Duration(size) * time.Second / time.Duration(sampleRate)
	if period <= 0 {
		return nil, fmt.Errorf("block of %d steps at %d Hz is shorter than the timer resolution", size, sampleRate)
	}

	p := &Pump{ //nolint:exhaustruct // running set below
		node:   node,
		size:   size,
		period: period,
		sink:   sink,
		block:  NewBlock(node.Outputs(), size),
	}
	p.running.Store(true)

	return p, nil
}

// Period is the wall-clock time one block covers.
func (p *Pump) Period() time.Duration {
	return p.period
}

// Run pulls blocks until ctx is done. Not safe to call concurrently with
// itself or Step.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Step()
		}
	}
}

// Step pulls one block if the pump is running and reports whether it did.
func (p *Pump) Step() bool {
	if !p.running.Load() {
		return false
	}

	p.node.Process(p.size, nil, p.block)
	p.sink(p.block, p.size)

	return true
}

// Read reports whether the pump is pulling. While paused the node's queue
// keeps filling.
func (p *Pump) Read() bool {
	return p.running.Load()
}

// On resumes pulling. If the node is a Drainer, whatever queued up during
// the pause is discarded first so the next block is live input.
func (p *Pump) On() {
	if p.running.Load() {
		return
	}

	p.drain()
	p.running.Store(true)
}

func (p *Pump) Off() {
	p.running.Store(false)
}

func (p *Pump) Toggle() {
	if p.running.Load() {
		p.Off()

		return
	}

	p.On()
}

func (p *Pump) drain() {
	d, ok := p.node.(Drainer)
	if !ok {
		return
	}

	if dropped := d.Drain(); dropped > 0 {
		slog.Debug("pump resumed, dropped backlog", "frames", dropped)
	}
}
