package unit

// DefaultMaxBlock is the block size scratch buffers are presized for.
// Process calls larger than this still work but may allocate once to grow.
const DefaultMaxBlock = 8192

// Buffer is a reusable per-channel scratch buffer for block processing.
// The zero value is ready to use.
type Buffer struct {
	channels [][]float64
}

// Ensure returns per-channel slices with at least size samples each,
// growing the underlying storage if needed.
func (b *Buffer) Ensure(channels, size int) [][]float64 {
	for len(b.channels) < channels {
		b.channels = append(b.channels, nil)
	}
	for c := 0; c < channels; c++ {
		if len(b.channels[c]) < size {
			b.channels[c] = make([]float64, size)
		}
	}
	return b.channels[:channels]
}
