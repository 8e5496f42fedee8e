package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/alkime/micgraph/internal/audio"
	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/internal/config"
	"github.com/alkime/micgraph/internal/graph"
	"github.com/alkime/micgraph/internal/logger"
)

// fallbackSampleRate is used when the default output device accepts any rate.
const fallbackSampleRate = 48000

// CLI defines the micgraph command structure.
type CLI struct {
	// Default command (runs when no subcommand given)
	Monitor MonitorCmd `cmd:"" default:"withargs" help:"Show a live meter of the default microphone"`

	// Subcommands
	Loopback LoopbackCmd `cmd:"" help:"Play the default microphone through the default output device"`
	Devices  DevicesCmd  `cmd:"" help:"List capture devices and their supported configurations"`
}

// captureFlags are shared by commands that open a capture node. Defaults
// come from the MICGRAPH_* environment.
type captureFlags struct {
	Channels       int    `flag:"" default:"${channels}" help:"Channels to capture (1 or 2)"`
	SampleRate     int    `flag:"" default:"${sample_rate}" help:"Sample rate in Hz, 0 for the default output device's rate"`
	UnderrunPolicy string `flag:"" default:"${underrun_policy}" enum:"silence,hold" help:"Output when no frame is queued: silence or hold"`
	QueueLimit     int    `flag:"" default:"${queue_limit}" help:"Max queued frames before the oldest are dropped, 0 for unbounded (monitor: a few blocks)"`
}

// apply copies the flags into cfg and validates the result.
func (f captureFlags) apply(cfg *config.Config) error {
	cfg.Channels = f.Channels
	cfg.SampleRate = f.SampleRate
	cfg.UnderrunPolicy = f.UnderrunPolicy
	cfg.QueueLimit = f.QueueLimit

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	return nil
}

// openNode builds the capture node described by cfg. The returned manager
// owns the capture worker and must be closed.
func openNode(
	ctx context.Context,
	backend *audio.MalgoBackend,
	cfg *config.Config,
) (*graph.Manager, *graph.CaptureNode, capture.Config, error) {
	rate, err := resolveSampleRate(ctx, backend, cfg.SampleRate)
	if err != nil {
		return nil, nil, capture.Config{}, err
	}

	conf := capture.Config{Channels: cfg.Channels, SampleRate: rate}
	mgr := graph.NewManager(backend, cfg.ManagerOptions()...)

	node, err := mgr.Node(ctx, conf)
	if err != nil {
		return nil, nil, conf, errors.Join(err, mgr.Close())
	}

	slog.Info("Capture node ready", "config", conf.String(), "policy", node.Policy().String())

	return mgr, node, conf, nil
}

// resolveSampleRate returns rate, or the default output device's rate when
// rate is 0.
func resolveSampleRate(ctx context.Context, backend *audio.MalgoBackend, rate int) (int, error) {
	if rate > 0 {
		return rate, nil
	}

	rate, err := backend.DefaultPlaybackSampleRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query output sample rate: %w", err)
	}

	if rate == 0 {
		rate = fallbackSampleRate
	}

	slog.Debug("Using output device sample rate", "sampleRate", rate)

	return rate, nil
}

// watchWorker logs capture errors until ctx is done or the worker stops.
func watchWorker(ctx context.Context, worker *capture.Worker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-worker.Done():
			return
		case err := <-worker.Errors():
			slog.Warn("Capture stream error", "error", err)
		}
	}
}

func closeManager(mgr *graph.Manager) {
	if err := mgr.Close(); err != nil {
		slog.Error("Failed to close capture", "error", err)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logger.Level(cfg),
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("micgraph"),
		kong.Description("Microphone capture as a pull-based signal graph node."),
		kong.Vars{
			"channels":        strconv.Itoa(cfg.Channels),
			"sample_rate":     strconv.Itoa(cfg.SampleRate),
			"underrun_policy": cfg.UnderrunPolicy,
			"queue_limit":     strconv.Itoa(cfg.QueueLimit),
			"block_size":      strconv.Itoa(cfg.BlockSize),
		},
	)
	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
