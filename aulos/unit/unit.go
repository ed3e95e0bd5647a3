// Package unit defines the audio unit contract shared by every DSP element
// in the toolkit. A unit produces (and optionally consumes) one sample per
// channel on each Tick, or a block of samples on each Process call.
package unit

// DefaultSampleRate is the sample rate units are constructed with before a
// host assigns the real rate via SetSampleRate.
const DefaultSampleRate = 44100.0

// Unit is the minimal DSP element. Channel counts are constant for the life
// of a unit. SetSampleRate and Allocate are called off the audio thread
// before a unit starts rendering; Tick and Process run on the audio thread
// and must not allocate or block.
type Unit interface {
	// Inputs returns the number of input channels.
	Inputs() int
	// Outputs returns the number of output channels.
	Outputs() int

	// SetSampleRate propagates the sample rate. Units should reset any
	// rate-derived state when the rate actually changes.
	SetSampleRate(rate float64)
	// Allocate preallocates everything the unit needs to render, so that
	// the audio thread never has to.
	Allocate()
	// Reset returns the unit to its initial state at the current sample rate.
	Reset()

	// Tick renders one frame. len(input) == Inputs(), len(output) == Outputs().
	Tick(input, output []float64)
	// Process renders n frames into per-channel buffers. Buffers may be
	// longer than n; only the first n samples of each are meaningful.
	Process(n int, input, output [][]float64)

	// ID returns a stable identifier for the unit type, for graph analysis.
	ID() uint64
	// Route describes how signals propagate through the unit.
	Route(input Frame, frequency float64) Frame
}
