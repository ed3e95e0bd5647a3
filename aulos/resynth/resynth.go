// Package resynth implements a frequency domain resynthesizer: overlap-add
// short-time Fourier processing with a user supplied spectral transform.
//
// Four Hann windowed FFT buffers overlap at a quarter window hop. Every
// input sample is absorbed into all four; whenever one of them completes a
// full fill it is forward transformed, handed to the processing callback,
// inverse transformed, and its result feeds the overlap-add sum. With an
// identity callback the input is reconstructed exactly, delayed by one
// window length once all four windows overlap (one window length beyond
// the nominal latency).
//
// For background on the technique see "Fourier analysis and reconstruction
// of audio signals", http://msp.ucsd.edu/techniques/v0.11/book-html/node172.html
package resynth

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/valerio/go-aulos/aulos/unit"
)

const defaultSampleRate = unit.DefaultSampleRate

// numWindows is the number of overlapping FFT windows.
const numWindows = 4

// Processor is the user's spectral transform. It is called on the audio
// thread each time a window completes; it must not retain the handle, must
// not panic, and must fit comfortably within one hop of real time.
// It may be a closure; any state it captures must be safe to touch from the
// audio goroutine.
type Processor func(*Window)

// Resynth is the overlap-add resynthesizer unit.
type Resynth struct {
	inputs  int
	outputs int
	// The four windows, phased a quarter window length apart.
	windows [numWindows]*Window
	// Window length in samples.
	windowLength int
	// Hann window table, peak at the center.
	windowFunc []float64
	// The user's spectral transform.
	processing Processor
	sampleRate float64
	// Shared real FFT plan; Coefficients is the forward transform and
	// Sequence the inverse. The round trip is unnormalized (scales by the
	// window length), which z absorbs.
	fft *fourier.FFT
	// Total samples processed.
	samples uint64
	// Normalizing term for the FFT round trip and the four-way Hann
	// overlap-add: 2 / (3 * windowLength).
	z float64

	// Per-frame scratch for Process.
	tickInput  []float64
	tickOutput []float64
}

var _ unit.Unit = (*Resynth)(nil)

// New creates a resynthesizer with the given channel counts and window
// length. The window length must be a power of two and at least four.
func New(inputs, outputs, windowLength int, processing Processor) *Resynth {
	if windowLength < 4 || windowLength&(windowLength-1) != 0 {
		panic("resynth: window length must be a power of two and at least four")
	}
	r := &Resynth{
		inputs:       inputs,
		outputs:      outputs,
		windowLength: windowLength,
		windowFunc:   make([]float64, windowLength),
		processing:   processing,
		sampleRate:   defaultSampleRate,
		fft:          fourier.NewFFT(windowLength),
		z:            2.0 / (3.0 * float64(windowLength)),
		tickInput:    make([]float64, inputs),
		tickOutput:   make([]float64, outputs),
	}
	for i := 0; i < windowLength; i++ {
		r.windowFunc[i] = 0.5 + 0.5*math.Cos(float64(i-windowLength>>1)*2*math.Pi/float64(windowLength))
	}
	for i := range r.windows {
		r.windows[i] = newWindow(windowLength, i*(windowLength>>2), inputs, outputs)
	}
	return r
}

// WindowLength returns the FFT window length in samples.
func (r *Resynth) WindowLength() int { return r.windowLength }

// Bins returns the number of spectrum bins, windowLength/2 + 1.
func (r *Resynth) Bins() int { return r.windowLength>>1 + 1 }

// Latency returns the processing latency in seconds, one window length.
func (r *Resynth) Latency() float64 {
	return float64(r.windowLength) / r.sampleRate
}

// Inputs returns the number of input channels.
func (r *Resynth) Inputs() int { return r.inputs }

// Outputs returns the number of output channels.
func (r *Resynth) Outputs() int { return r.outputs }

// SetSampleRate propagates the sample rate to the windows.
func (r *Resynth) SetSampleRate(rate float64) {
	r.sampleRate = rate
	for _, w := range r.windows {
		w.setSampleRate(rate)
	}
}

// Allocate is a no-op; everything is sized at construction.
func (r *Resynth) Allocate() {}

// Reset empties the windows and restores their phase offsets.
func (r *Resynth) Reset() {
	r.samples = 0
	for i, w := range r.windows {
		w.reset(i * (r.windowLength >> 2))
	}
}

// Tick absorbs one input frame and produces one output frame.
func (r *Resynth) Tick(input, output []float64) {
	for c := 0; c < r.outputs; c++ {
		output[c] = 0
	}
	for _, w := range r.windows {
		windowValue := r.windowFunc[w.index]
		for c := 0; c < r.inputs; c++ {
			w.input[c][w.index] = input[c] * windowValue
		}
		for c := 0; c < r.outputs; c++ {
			output[c] += w.output[c][w.index] * windowValue * r.z
		}
		w.advance()
	}
	r.samples++

	// At each quarter window boundary, transform whichever window just
	// completed a full fill.
	if r.samples&(uint64(r.windowLength>>2)-1) != 0 {
		return
	}
	for _, w := range r.windows {
		if !w.fftTime() {
			continue
		}
		for c := 0; c < r.inputs; c++ {
			r.fft.Coefficients(w.inputFFT[c], w.input[c])
		}
		w.clearOutput()
		r.processing(w)
		for c := 0; c < r.outputs; c++ {
			r.fft.Sequence(w.output[c], w.outputFFT[c])
		}
	}
}

// Process renders a block by ticking each frame.
func (r *Resynth) Process(n int, input, output [][]float64) {
	for j := 0; j < n; j++ {
		for c := 0; c < r.inputs; c++ {
			r.tickInput[c] = input[c][j]
		}
		r.Tick(r.tickInput, r.tickOutput)
		for c := 0; c < r.outputs; c++ {
			output[c][j] = r.tickOutput[c]
		}
	}
}

// ID identifies the resynthesizer unit type.
func (r *Resynth) ID() uint64 { return 80 }

// Route reports an arbitrary response with one window length of latency.
func (r *Resynth) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Arbitrary(r.outputs, float64(r.windowLength))
}
