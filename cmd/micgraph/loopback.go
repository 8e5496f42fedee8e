package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/alkime/micgraph/internal/audio"
	"github.com/alkime/micgraph/internal/config"
)

// LoopbackCmd plays the captured node through the default output device.
type LoopbackCmd struct {
	captureFlags `embed:""`

	StatsInterval time.Duration `flag:"" default:"5s" help:"How often to log node counters, 0 to disable"`
}

// Run executes the loopback command.
func (c *LoopbackCmd) Run(cfg *config.Config) error {
	if err := c.apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	backend := audio.NewMalgoBackend()
	defer backend.Close()

	mgr, node, conf, err := openNode(ctx, backend, cfg)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	playback, err := audio.NewPlayback(ctx, backend, node, conf.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to create playback: %w", err)
	}
	defer func() {
		if err := playback.Close(); err != nil {
			slog.Error("Failed to close playback", "error", err)
		}
	}()

	if err := playback.Start(); err != nil {
		return err
	}

	slog.Info("Loopback running, press ctrl+c to stop", "config", conf.String())

	wg := sync.WaitGroup{}

	worker, ok := mgr.Worker(conf)
	if ok {
		wg.Go(func() {
			watchWorker(ctx, worker)
		})
	}

	if c.StatsInterval > 0 {
		wg.Go(func() {
			ticker := time.NewTicker(c.StatsInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					stats := node.Stats()
					slog.Info("Node stats", "pulled", stats.Pulled, "underruns", stats.Underruns)
				}
			}
		})
	}

	if ok {
		select {
		case <-ctx.Done():
		case <-worker.Done():
			slog.Warn("Capture worker stopped")
		}
	} else {
		<-ctx.Done()
	}

	cancel()
	wg.Wait()

	return nil
}
