package graph

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alkime/micgraph/internal/capture"
)

// CaptureNodeID is the dispatch identity shared by every capture node.
const CaptureNodeID uint64 = 1446762434551402895

// Receiver is the consuming end of a frame queue.
type Receiver interface {
	// TryRecv returns the next frame, or false if none is queued. It must
	// not wait for the producer.
	TryRecv() (capture.Frame, bool)
}

// NodeStats is a snapshot of a capture node's counters. Clones share them.
type NodeStats struct {
	// Pulled counts frames taken from the queue.
	Pulled int64
	// Underruns counts steps that found the queue empty.
	Underruns int64
}

// consumer is the single logical reader of one frame queue. Every clone of
// a node points at the same consumer; mu serialises their pulls.
type consumer struct {
	mu   sync.Mutex
	rx   Receiver
	last capture.Frame // guarded by mu; only kept for UnderrunHold

	pulled    atomic.Int64
	underruns atomic.Int64
	warned    atomic.Bool
}

// CaptureNode is a graph node with no inputs and one output per captured
// channel. Each step drains one frame from the queue; when the queue is
// empty the node's UnderrunPolicy decides the output instead of waiting.
//
// Clones share the queue. If clones are pulled concurrently, whichever
// takes the lock first receives the next frame, so the stream is split
// between them in no particular order.
type CaptureNode struct {
	channels int
	policy   UnderrunPolicy
	shared   *consumer
}

// NodeOption configures a CaptureNode.
type NodeOption func(*CaptureNode)

// WithUnderrunPolicy sets the node's underrun policy. Default is UnderrunSilence.
func WithUnderrunPolicy(p UnderrunPolicy) NodeOption {
	return func(n *CaptureNode) {
		n.policy = p
	}
}

// NewCaptureNode creates a node with channels outputs that reads from rx.
func NewCaptureNode(channels int, rx Receiver, opts ...NodeOption) *CaptureNode {
	n := &CaptureNode{
		channels: channels,
		policy:   UnderrunSilence,
		shared:   &consumer{rx: rx}, //nolint:exhaustruct // counters start zeroed
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

func (n *CaptureNode) ID() uint64 {
	return CaptureNodeID
}

func (n *CaptureNode) Inputs() int {
	return 0
}

func (n *CaptureNode) Outputs() int {
	return n.channels
}

// Policy returns the node's underrun policy.
func (n *CaptureNode) Policy() UnderrunPolicy {
	return n.policy
}

// Tick returns the next captured frame, or the underrun output if none is
// queued. input is ignored.
func (n *CaptureNode) Tick(_ []float32) []float32 {
	out := make([]float32, n.channels)

	n.shared.mu.Lock()
	n.nextLocked(out)
	n.shared.mu.Unlock()

	return out
}

// Process fills output[ch][0:size] with size consecutive steps. The queue
// lock is held for the whole block, so a block is never interleaved with
// another clone's pulls. Columns beyond Outputs() are left untouched.
func (n *CaptureNode) Process(size int, _ [][]float32, output [][]float32) {
	if size <= 0 {
		return
	}

	frame := make([]float32, n.channels)
	cols := output[:min(len(output), n.channels)]

	n.shared.mu.Lock()
	defer n.shared.mu.Unlock()

	for i := 0; i < size; i++ {
		n.nextLocked(frame)

		for ch, col := range cols {
			col[i] = frame[ch]
		}
	}
}

// Clone returns a node sharing this node's queue, counters and policy.
func (n *CaptureNode) Clone() Node {
	return n.CloneCapture()
}

// CloneCapture is Clone with the concrete type.
func (n *CaptureNode) CloneCapture() *CaptureNode {
	clone := *n

	return &clone
}

// Stats returns the counters shared by this node and its clones.
func (n *CaptureNode) Stats() NodeStats {
	return NodeStats{
		Pulled:    n.shared.pulled.Load(),
		Underruns: n.shared.underruns.Load(),
	}
}

// Drain discards every queued frame and returns how many were dropped.
// Discarded frames count neither as pulled nor as underruns.
func (n *CaptureNode) Drain() int {
	n.shared.mu.Lock()
	defer n.shared.mu.Unlock()

	dropped := 0

	for {
		frame, ok := n.shared.rx.TryRecv()
		if !ok {
			return dropped
		}

		if n.policy == UnderrunHold {
			n.shared.last = frame
		}

		dropped++
	}
}

// Underruns returns how many steps found the queue empty.
func (n *CaptureNode) Underruns() int64 {
	return n.shared.underruns.Load()
}

// nextLocked writes one step into dst, which has n.channels samples.
// Caller must hold n.shared.mu.
func (n *CaptureNode) nextLocked(dst []float32) {
	frame, ok := n.shared.rx.TryRecv()
	if ok {
		n.shared.pulled.Add(1)

		copied := copy(dst, frame)
		clear(dst[copied:])

		if n.policy == UnderrunHold {
			n.shared.last = frame
		}

		return
	}

	n.shared.underruns.Add(1)

	if n.shared.warned.CompareAndSwap(false, true) {
		slog.Debug("capture node underrun, substituting", "policy", n.policy.String(), "channels", n.channels)
	}

	if n.policy == UnderrunHold && n.shared.last != nil {
		copied := copy(dst, n.shared.last)
		clear(dst[copied:])

		return
	}

	clear(dst)
}
