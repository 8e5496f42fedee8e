// Package graph exposes captured audio as nodes of a pull-based signal graph.
package graph

// Node is the contract a host graph evaluates. A node produces Outputs()
// samples per step from Inputs() input samples.
type Node interface {
	// ID identifies the node kind in the host's dispatch table. It does not
	// vary with the node's configuration.
	ID() uint64

	Inputs() int
	Outputs() int

	// Tick computes one step. The returned slice has Outputs() samples and
	// belongs to the caller.
	Tick(input []float32) []float32

	// Process computes size steps at once. input and output are
	// per-channel columns; output[ch][i] receives channel ch of step i.
	Process(size int, input [][]float32, output [][]float32)

	// Clone returns a node that can be evaluated independently of the
	// receiver. Clones may share upstream state.
	Clone() Node
}

// NewBlock allocates channels columns of size samples each, suitable as
// Process output.
func NewBlock(channels, size int) [][]float32 {
	backing := make([]float32, channels*size)
	cols := make([][]float32, channels)

	for ch := range cols {
		cols[ch] = backing[ch*size : (ch+1)*size : (ch+1)*size]
	}

	return cols
}

// Interleave writes the first n steps of cols into dst as interleaved
// frames and returns the number of samples written. It stops early if dst
// is too short to hold another full frame.
func Interleave(dst []float32, cols [][]float32, n int) int {
	channels := len(cols)
	if channels == 0 {
		return 0
	}

	n = min(n, len(dst)/channels)

	for i := 0; i < n; i++ {
		for ch, col := range cols {
			dst[i*channels+ch] = col[i]
		}
	}

	return n * channels
}

// MixDown appends the mean of the first n steps of cols to dst.
func MixDown(dst []float32, cols [][]float32, n int) []float32 {
	if len(cols) == 0 {
		return dst
	}

	scale := 1 / float32(len(cols))

	for i := 0; i < n; i++ {
		var sum float32
		for _, col := range cols {
			sum += col[i]
		}

		dst = append(dst, sum*scale)
	}

	return dst
}
