package audio

import (
	"github.com/alkime/micgraph/internal/capture"
	"github.com/gen2brain/malgo"
)

// Sample rate limits miniaudio resamples between.
const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
)

// anyChannels is what a native format with a channel count of 0, or a
// device without native formats, expands to.
var anyChannels = []int{1, 2}

// toSampleFormat maps a miniaudio format to its capture equivalent.
func toSampleFormat(f malgo.FormatType) capture.SampleFormat {
	switch f { //nolint:exhaustive // remaining formats are unknown to capture
	case malgo.FormatU8:
		return capture.FormatU8
	case malgo.FormatS16:
		return capture.FormatS16
	case malgo.FormatS24:
		return capture.FormatS24
	case malgo.FormatS32:
		return capture.FormatS32
	case malgo.FormatF32:
		return capture.FormatF32
	default:
		return capture.FormatUnknown
	}
}

// toMalgoFormat is the inverse of toSampleFormat.
func toMalgoFormat(f capture.SampleFormat) malgo.FormatType {
	switch f {
	case capture.FormatU8:
		return malgo.FormatU8
	case capture.FormatS16:
		return malgo.FormatS16
	case capture.FormatS24:
		return malgo.FormatS24
	case capture.FormatS32:
		return malgo.FormatS32
	case capture.FormatF32:
		return malgo.FormatF32
	case capture.FormatUnknown:
		return malgo.FormatUnknown
	default:
		return malgo.FormatUnknown
	}
}

// nativeRanges turns a device's native data formats into the configurations
// a capture stream can be opened with.
//
// Streams are always opened as float32 and miniaudio converts from the
// device's native format and rate, so each reported channel count yields one
// float32 range spanning every rate miniaudio accepts. A channel count of 0
// stands for any of anyChannels, as does a device reporting no formats. The
// native formats themselves are only shown by the device listing.
func nativeRanges(formats []malgo.DataFormat) []capture.StreamConfigRange {
	var counts []int

	for _, df := range formats {
		if df.Channels == 0 {
			counts = append(counts, anyChannels...)

			continue
		}

		counts = append(counts, int(df.Channels))
	}

	if len(formats) == 0 {
		counts = anyChannels
	}

	ranges := make([]capture.StreamConfigRange, 0, len(counts))
	seen := make(map[int]bool, len(counts))

	for _, ch := range counts {
		if seen[ch] {
			continue
		}

		seen[ch] = true
		ranges = append(ranges, capture.StreamConfigRange{
			Format:        capture.FormatF32,
			Channels:      ch,
			MinSampleRate: MinSampleRate,
			MaxSampleRate: MaxSampleRate,
		})
	}

	return ranges
}
