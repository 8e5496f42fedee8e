package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/internal/capture/capturetest"
	"github.com/alkime/micgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend() *capturetest.Backend {
	return capturetest.NewBackend(
		capturetest.F32Range(1, 44100, 48001),
		capturetest.F32Range(2, 44100, 48001),
	)
}

func newManager(t *testing.T, backend capture.Backend, opts ...graph.ManagerOption) *graph.Manager {
	t.Helper()

	m := graph.NewManager(backend, opts...)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func TestManager_NodeArity(t *testing.T) {
	t.Parallel()

	for _, channelCount := range []int{1, 2} {
		m := newManager(t, newBackend())

		node, err := m.Node(context.Background(), capture.Config{Channels: channelCount, SampleRate: 48000})
		require.NoError(t, err)
		assert.Equal(t, channelCount, node.Outputs())
		assert.Equal(t, 0, node.Inputs())
	}
}

func TestManager_UnsupportedChannels(t *testing.T) {
	t.Parallel()

	backend := capturetest.NewBackend(
		capturetest.F32Range(3, 44100, 48001),
		capturetest.F32Range(4, 44100, 48001),
	)
	m := newManager(t, backend)

	for _, channelCount := range []int{0, 3, 4, -1} {
		node, err := m.Node(context.Background(), capture.Config{Channels: channelCount, SampleRate: 48000})
		require.ErrorIs(t, err, graph.ErrUnsupportedChannels)
		assert.Nil(t, node)
	}

	assert.Empty(t, backend.Streams(), "no stream should be opened for unsupported arities")
}

func TestManager_ExclusiveRateBounds(t *testing.T) {
	t.Parallel()

	m := newManager(t, newBackend())

	node, err := m.Node(context.Background(), capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, 1, node.Outputs())

	_, err = m.Node(context.Background(), capture.Config{Channels: 2, SampleRate: 48001})
	require.ErrorIs(t, err, capture.ErrNoMatchingConfig)
	require.ErrorIs(t, err, capture.ErrConstruction)

	assert.Equal(t, 1, m.Len())
}

func TestManager_DeduplicatesByConfig(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend)
	ctx := context.Background()

	conf := capture.Config{Channels: 2, SampleRate: 48000}

	a, err := m.Node(ctx, conf)
	require.NoError(t, err)
	b, err := m.Node(ctx, conf)
	require.NoError(t, err)

	assert.Len(t, backend.Streams(), 1)
	assert.NotSame(t, a, b)

	// both nodes read the same queue
	require.NoError(t, backend.Last().Deliver(1, 2, 3, 4))
	assert.Equal(t, []float32{1, 2}, a.Tick(nil))
	assert.Equal(t, []float32{3, 4}, b.Tick(nil))

	other, err := m.Node(ctx, capture.Config{Channels: 2, SampleRate: 44800})
	require.NoError(t, err)
	assert.Equal(t, 2, other.Outputs())
	assert.Len(t, backend.Streams(), 2)
	assert.Equal(t, 2, m.Len())
}

func TestManager_LegacyIdentityConflatesConfigs(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend, graph.WithLegacyIdentity())
	ctx := context.Background()

	mono, err := m.Node(ctx, capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)

	stereo, err := m.Node(ctx, capture.Config{Channels: 2, SampleRate: 44800})
	require.NoError(t, err)

	// the second request is served by the first worker
	assert.Len(t, backend.Streams(), 1)
	assert.Equal(t, mono.Outputs(), stereo.Outputs())
	assert.Equal(t, 1, stereo.Outputs())
}

func TestManager_EndToEnd(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend)

	node, err := m.Node(context.Background(), capture.Config{Channels: 2, SampleRate: 48000})
	require.NoError(t, err)

	stream := backend.Last()
	require.NoError(t, stream.Deliver(0.1, -0.1, 0.2))
	require.NoError(t, stream.Deliver(-0.2, 0.3, -0.3))

	out := graph.NewBlock(2, 4)
	node.Process(4, nil, out)

	// the partial frame from the first delivery is dropped, not stitched
	assert.Equal(t, [][]float32{
		{0.1, 0.3, 0, 0},
		{-0.1, -0.3, 0, 0},
	}, out)

	worker, ok := m.Worker(capture.Config{Channels: 2, SampleRate: 48000})
	require.True(t, ok)
	assert.Equal(t, capture.Stats{Callbacks: 2, Frames: 2, Discarded: 2}, worker.Stats())
}

func TestManager_UnderrunPolicyOption(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend, graph.WithNodeUnderrunPolicy(graph.UnderrunHold))

	node, err := m.Node(context.Background(), capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, graph.UnderrunHold, node.Policy())

	require.NoError(t, backend.Last().Deliver(0.5))
	assert.Equal(t, []float32{0.5}, node.Tick(nil))
	assert.Equal(t, []float32{0.5}, node.Tick(nil))
}

func TestManager_QueueLimitOption(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend, graph.WithQueueLimit(2))

	node, err := m.Node(context.Background(), capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)

	require.NoError(t, backend.Last().Deliver(1, 2, 3, 4))

	assert.Equal(t, []float32{3}, node.Tick(nil))
	assert.Equal(t, []float32{4}, node.Tick(nil))
	assert.Equal(t, []float32{0}, node.Tick(nil))
}

func TestManager_WorkerOutlivesRequestContext(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := newManager(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.Node(ctx, capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	cancel()

	worker, ok := m.Worker(capture.Config{Channels: 1, SampleRate: 48000})
	require.True(t, ok)

	select {
	case <-worker.Done():
		t.Fatal("worker stopped with the request context")
	default:
	}

	assert.True(t, backend.Last().Started())
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	m := graph.NewManager(backend)
	ctx := context.Background()

	node, err := m.Node(ctx, capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	_, err = m.Node(ctx, capture.Config{Channels: 2, SampleRate: 48000})
	require.NoError(t, err)

	require.NoError(t, backend.Streams()[0].Deliver(0.9))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	for _, s := range backend.Streams() {
		assert.True(t, s.Closed())
	}

	assert.Equal(t, 0, m.Len())

	// frames queued before close are still readable, then silence
	assert.Equal(t, []float32{0.9}, node.Tick(nil))
	assert.Equal(t, []float32{0}, node.Tick(nil))

	_, err = m.Node(ctx, capture.Config{Channels: 1, SampleRate: 48000})
	require.ErrorIs(t, err, graph.ErrManagerClosed)
}

func TestManager_SetupFailureIsNotCached(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	backend.BuildErr = errors.New("device busy")
	m := newManager(t, backend)

	conf := capture.Config{Channels: 1, SampleRate: 48000}

	_, err := m.Node(context.Background(), conf)
	require.ErrorIs(t, err, capture.ErrStreamBuild)

	backend.BuildErr = nil

	node, err := m.Node(context.Background(), conf)
	require.NoError(t, err)
	assert.Equal(t, 1, node.Outputs())
}

// gatedBackend holds BuildInputStream until release is closed.
type gatedBackend struct {
	*capturetest.Backend

	entered chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		Backend: newBackend(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *gatedBackend) BuildInputStream(
	ctx context.Context,
	dev capture.Device,
	conf capture.StreamConfig,
	onData capture.DataFunc,
	onError capture.ErrorFunc,
) (capture.Stream, error) {
	g.entered <- struct{}{}
	<-g.release

	return g.Backend.BuildInputStream(ctx, dev, conf, onData, onError)
}

type nodeResult struct {
	node *graph.CaptureNode
	err  error
}

func requestNode(m *graph.Manager, conf capture.Config) <-chan nodeResult {
	out := make(chan nodeResult, 1)

	go func() {
		node, err := m.Node(context.Background(), conf)
		out <- nodeResult{node: node, err: err}
	}()

	return out
}

func TestManager_SlowSetupDoesNotBlockOtherCalls(t *testing.T) {
	t.Parallel()

	backend := newGatedBackend()
	m := newManager(t, backend)
	conf := capture.Config{Channels: 1, SampleRate: 48000}

	pending := requestNode(m, conf)
	<-backend.entered

	lenC := make(chan int, 1)
	go func() { lenC <- m.Len() }()

	select {
	case n := <-lenC:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Len blocked behind device setup")
	}

	_, ok := m.Worker(conf)
	assert.False(t, ok)

	close(backend.release)

	res := <-pending
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.node.Outputs())
	assert.Equal(t, 1, m.Len())
}

func TestManager_CloseDuringSetup(t *testing.T) {
	t.Parallel()

	backend := newGatedBackend()
	m := graph.NewManager(backend)

	pending := requestNode(m, capture.Config{Channels: 2, SampleRate: 48000})
	<-backend.entered

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind device setup")
	}

	close(backend.release)

	res := <-pending
	require.ErrorIs(t, res.err, graph.ErrManagerClosed)
	assert.Nil(t, res.node)

	// the stream opened after Close is released, not leaked
	streams := backend.Streams()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Closed())
	assert.Equal(t, 0, m.Len())
}

func TestManager_ConcurrentSetupSharesOneWorker(t *testing.T) {
	t.Parallel()

	backend := newGatedBackend()
	m := newManager(t, backend)
	conf := capture.Config{Channels: 1, SampleRate: 48000}

	first := requestNode(m, conf)
	<-backend.entered
	second := requestNode(m, conf)
	<-backend.entered

	close(backend.release)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, 1, m.Len())

	// the losing request's stream is closed, the winner keeps running
	closedCount := 0
	for _, s := range backend.Streams() {
		if s.Closed() {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount)

	worker, ok := m.Worker(conf)
	require.True(t, ok)

	// both nodes read the winner's queue
	for _, s := range backend.Streams() {
		if !s.Closed() {
			require.NoError(t, s.Deliver(0.5, 0.25))
		}
	}

	assert.Equal(t, []float32{0.5}, a.node.Tick(nil))
	assert.Equal(t, []float32{0.25}, b.node.Tick(nil))
	assert.Equal(t, int64(2), worker.Stats().Frames)
}
