package audio

import (
	"encoding/binary"
	"math"
)

// BytesToFloat32 appends the F32LE samples in data to dst and returns the
// extended slice. Trailing bytes that do not form a whole sample are ignored.
func BytesToFloat32(dst []float32, data []byte) []float32 {
	numSamples := len(data) / 4

	for i := 0; i < numSamples; i++ {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}

	return dst
}

// Float32ToBytes writes samples into dst as F32LE and returns the number of
// bytes written. It stops when dst cannot hold another sample.
func Float32ToBytes(dst []byte, samples []float32) int {
	n := min(len(samples), len(dst)/4)

	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(samples[i]))
	}

	return n * 4
}
