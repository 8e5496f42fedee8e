package capture_test

import (
	"testing"

	"github.com/alkime/micgraph/internal/capture"
	"github.com/alkime/micgraph/internal/capture/capturetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectConfig(t *testing.T) {
	t.Parallel()

	device := []capture.StreamConfigRange{
		{Format: capture.FormatS16, Channels: 1, MinSampleRate: 8000, MaxSampleRate: 96000},
		capturetest.F32Range(1, 44100, 48001),
		capturetest.F32Range(2, 44100, 48001),
	}

	tests := []struct {
		name    string
		conf    capture.Config
		wantErr bool
	}{
		{name: "mono inside range", conf: capture.Config{Channels: 1, SampleRate: 48000}},
		{name: "stereo inside range", conf: capture.Config{Channels: 2, SampleRate: 44101}},
		{name: "upper bound is exclusive", conf: capture.Config{Channels: 2, SampleRate: 48001}, wantErr: true},
		{name: "lower bound is exclusive", conf: capture.Config{Channels: 1, SampleRate: 44100}, wantErr: true},
		{name: "above range", conf: capture.Config{Channels: 1, SampleRate: 96000}, wantErr: true},
		{name: "channel count must match", conf: capture.Config{Channels: 3, SampleRate: 48000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := capture.SelectConfig(device, tt.conf)
			if tt.wantErr {
				require.ErrorIs(t, err, capture.ErrNoMatchingConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, capture.StreamConfig{
				Format:     capture.FormatF32,
				Channels:   tt.conf.Channels,
				SampleRate: tt.conf.SampleRate,
			}, got)
		})
	}
}

func TestSelectConfig_RequiresFloat(t *testing.T) {
	t.Parallel()

	ranges := []capture.StreamConfigRange{
		{Format: capture.FormatS16, Channels: 1, MinSampleRate: 8000, MaxSampleRate: 96000},
		{Format: capture.FormatS32, Channels: 1, MinSampleRate: 8000, MaxSampleRate: 96000},
	}

	_, err := capture.SelectConfig(ranges, capture.Config{Channels: 1, SampleRate: 48000})
	require.ErrorIs(t, err, capture.ErrNoMatchingConfig)
}

func TestSelectConfig_FirstMatchWins(t *testing.T) {
	t.Parallel()

	ranges := []capture.StreamConfigRange{
		capturetest.F32Range(1, 8000, 16000),
		capturetest.F32Range(1, 8000, 192000),
		capturetest.F32Range(1, 44100, 96000),
	}

	got, err := capture.SelectConfig(ranges, capture.Config{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, 48000, got.SampleRate)
}

func TestSampleFormat_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "f32", capture.FormatF32.String())
	assert.Equal(t, "s16", capture.FormatS16.String())
	assert.Equal(t, "unknown", capture.FormatUnknown.String())
	assert.Equal(t, "format(42)", capture.SampleFormat(42).String())
}
