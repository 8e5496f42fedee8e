package capture

// Frame holds one sample per channel at a single instant.
type Frame []float32

// Silence returns an all-zero frame of the given width.
func Silence(channels int) Frame {
	return make(Frame, channels)
}

// SplitFrames partitions interleaved samples into consecutive frames of
// width channels. A trailing group shorter than channels is dropped and its
// length returned as discarded. Each frame is a copy, so samples may be
// reused by the caller once SplitFrames returns.
func SplitFrames(samples []float32, channels int) (frames []Frame, discarded int) {
	if channels < 1 {
		return nil, len(samples)
	}

	n := len(samples) / channels
	discarded = len(samples) - n*channels

	if n == 0 {
		return nil, discarded
	}

	// frames from one delivery share a backing array; the 3-index slices
	// stop an append on one frame from bleeding into the next
	backing := make([]float32, n*channels)
	copy(backing, samples[:n*channels])

	frames = make([]Frame, n)
	for i := range frames {
		frames[i] = Frame(backing[i*channels : (i+1)*channels : (i+1)*channels])
	}

	return frames, discarded
}
