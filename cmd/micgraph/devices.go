package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alkime/micgraph/internal/audio"
	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/pkg/collections"
)

// DevicesCmd lists available capture devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	backend := audio.NewMalgoBackend()
	defer backend.Close()

	devices, err := backend.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
			"ranges", collections.Apply(dev.Ranges, capture.StreamConfigRange.String),
		)
	}

	return nil
}
