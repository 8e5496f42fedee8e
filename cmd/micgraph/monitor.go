package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/alkime/micgraph/internal/audio"
	"github.com/alkime/micgraph/internal/config"
	"github.com/alkime/micgraph/internal/graph"
	"github.com/alkime/micgraph/internal/logger"
	"github.com/alkime/micgraph/internal/tui/meter"
	tea "github.com/charmbracelet/bubbletea"
)

// monitorQueueBlocks bounds the monitor's frame queue, in blocks, when no
// queue limit is configured. Pausing the meter stops pulling, so an
// unbounded queue would grow for as long as the pause lasts.
const monitorQueueBlocks = 8

// MonitorCmd is the default command that runs the meter TUI.
type MonitorCmd struct {
	captureFlags `embed:""`

	BlockSize int    `flag:"" default:"${block_size}" help:"Steps pulled per block"`
	LogFile   string `flag:"" optional:"" help:"Write JSON logs to this file while the meter is shown"`
}

// Run executes the monitor command.
func (c *MonitorCmd) Run(cfg *config.Config) error {
	cfg.BlockSize = c.BlockSize
	if err := c.apply(cfg); err != nil {
		return err
	}

	if cfg.QueueLimit == 0 {
		cfg.QueueLimit = monitorQueueBlocks * cfg.BlockSize
	}

	// the meter owns the terminal, so logs go to a file or nowhere
	restore := slog.Default()
	defer slog.SetDefault(restore)

	var logOut io.Writer = io.Discard

	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()

		logOut = f
	}

	logger.SetupLoggerTo(logOut, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	backend := audio.NewMalgoBackend()
	defer backend.Close()

	mgr, node, conf, err := openNode(ctx, backend, cfg)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	// ~100ms of mono samples for the waveform
	ring := audio.NewSampleRingBuffer(conf.SampleRate / 10)

	var mono []float32

	pump, err := graph.NewPump(node, cfg.BlockSize, conf.SampleRate, func(block [][]float32, size int) {
		mono = graph.MixDown(mono[:0], block, size)
		ring.Write(mono)
	})
	if err != nil {
		return fmt.Errorf("failed to create pump: %w", err)
	}

	wg := sync.WaitGroup{}

	wg.Go(func() {
		pump.Run(ctx)
	})

	if worker, ok := mgr.Worker(conf); ok {
		wg.Go(func() {
			watchWorker(ctx, worker)
		})
	}

	controls := meter.Controls{
		Samples:   ringLevels{ring: ring, n: ring.Capacity()},
		Pulled:    statDial(func() int64 { return node.Stats().Pulled }),
		Underruns: statDial(node.Underruns),
		Pulling:   pump,
	}

	p := tea.NewProgram(meter.New(cancel, conf.String(), controls), tea.WithContext(ctx))

	_, runErr := p.Run()

	cancel()
	wg.Wait()

	stats := node.Stats()
	slog.Info("Monitor stopped", "pulled", stats.Pulled, "underruns", stats.Underruns)

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}

	return nil
}

// ringLevels implements uictl.Levels[float32] for waveform visualization.
type ringLevels struct {
	ring *audio.SampleRingBuffer
	n    int
}

func (rl ringLevels) Read() []float32 {
	return rl.ring.ReadSamples(rl.n)
}

// statDial implements uictl.Dial[int64] over a counter.
type statDial func() int64

func (sd statDial) Read() int64 {
	return sd()
}
