package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/pkg/channels"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	ErrManagerClosed       = errors.New("manager closed")
)

// SupportedChannels lists the output arities a capture node can be built with.
var SupportedChannels = []int{1, 2}

type source struct {
	conf   capture.Config
	queue  *channels.Queue[capture.Frame]
	worker *capture.Worker
	node   *CaptureNode
}

// Manager builds capture nodes on demand and caches them by configuration,
// so asking twice for the same configuration shares one capture worker.
type Manager struct {
	backend    capture.Backend
	policy     UnderrunPolicy
	queueLimit int
	legacy     bool

	mu      sync.Mutex
	sources map[uuid.UUID]*source
	closed  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNodeUnderrunPolicy sets the underrun policy of nodes the manager builds.
func WithNodeUnderrunPolicy(p UnderrunPolicy) ManagerOption {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithQueueLimit bounds each frame queue to limit frames, discarding the
// oldest on overflow. 0 keeps queues unbounded.
func WithQueueLimit(limit int) ManagerOption {
	return func(m *Manager) {
		m.queueLimit = limit
	}
}

// WithLegacyIdentity caches nodes under capture.LegacyKey instead of the
// configuration's own key. Every request then resolves to the first node
// built, whatever its channel count or sample rate.
func WithLegacyIdentity() ManagerOption {
	return func(m *Manager) {
		m.legacy = true
	}
}

// NewManager creates a manager that captures through backend.
func NewManager(backend capture.Backend, opts ...ManagerOption) *Manager {
	m := &Manager{ //nolint:exhaustruct // mu and closed start zeroed
		backend: backend,
		policy:  UnderrunSilence,
		sources: make(map[uuid.UUID]*source),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Node returns a capture node for conf, starting a capture worker the first
// time conf is requested. Later requests get a clone sharing that worker's
// queue.
//
// The worker outlives ctx; it runs until Close. Device setup runs without
// holding the manager's lock, so other calls are not held up by a slow
// device. If two requests for the same key race, the first to finish wins
// and the other's worker is closed.
func (m *Manager) Node(ctx context.Context, conf capture.Config) (*CaptureNode, error) {
	if !slices.Contains(SupportedChannels, conf.Channels) {
		return nil, fmt.Errorf("%w: %d (supported: %v)", ErrUnsupportedChannels, conf.Channels, SupportedChannels)
	}

	key := m.key(conf)

	if node, ok, err := m.cached(key, conf); ok || err != nil {
		return node, err
	}

	queue := channels.NewBoundedQueue[capture.Frame](m.queueLimit)

	worker, err := capture.NewWorker(context.WithoutCancel(ctx), m.backend, conf, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture for %s: %w", conf, err)
	}

	src := &source{
		conf:   conf,
		queue:  queue,
		worker: worker,
		node:   NewCaptureNode(conf.Channels, queue, WithUnderrunPolicy(m.policy)),
	}

	node, err := m.store(key, src)
	if node != src.node {
		// lost the race or the manager closed meanwhile
		discard(src)
	}

	if err != nil {
		return nil, err
	}

	return node.CloneCapture(), nil
}

// store caches src under key unless another source got there first, and
// returns the node now cached under key.
func (m *Manager) store(key uuid.UUID, src *source) (*CaptureNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	if existing, ok := m.sources[key]; ok {
		return existing.node, nil
	}

	m.sources[key] = src

	slog.Debug("capture node created", "config", src.conf.String(), "key", key.String())

	return src.node, nil
}

// cached returns a clone of the node stored under key, if any.
func (m *Manager) cached(key uuid.UUID, conf capture.Config) (*CaptureNode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrManagerClosed
	}

	src, ok := m.sources[key]
	if !ok {
		return nil, false, nil
	}

	if src.conf != conf {
		slog.Warn("capture config resolved to an existing node with a different config",
			"requested", conf.String(), "existing", src.conf.String())
	}

	return src.node.CloneCapture(), true, nil
}

// discard releases a source that lost a race or arrived after Close.
func discard(src *source) {
	src.queue.Close()

	if err := src.worker.Close(); err != nil {
		slog.Debug("failed to close unused capture", "config", src.conf.String(), "error", err)
	}
}

// Worker returns the capture worker serving conf, if one is running.
func (m *Manager) Worker(conf capture.Config) (*capture.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[m.key(conf)]
	if !ok {
		return nil, false
	}

	return src.worker, true
}

// Len returns the number of running capture workers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sources)
}

// Close stops every capture worker and closes their queues. Nodes handed
// out earlier keep working but only produce underrun output once drained.
// Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()

		return nil
	}

	m.closed = true

	sources := make([]*source, 0, len(m.sources))
	for key, src := range m.sources {
		sources = append(sources, src)
		delete(m.sources, key)
	}

	m.mu.Unlock()

	var errs []error

	for _, src := range sources {
		src.queue.Close()

		if err := src.worker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close capture for %s: %w", src.conf, err))
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) key(conf capture.Config) uuid.UUID {
	if m.legacy {
		return capture.LegacyKey()
	}

	return conf.Key()
}
