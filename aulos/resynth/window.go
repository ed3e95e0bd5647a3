package resynth

// Window is one of the four overlapping FFT windows of a Resynth, and the
// handle the spectral processing callback receives. During the callback the
// input spectra hold the forward transform of the latest full window of
// input; the callback fills the output spectra, which are then inverse
// transformed and overlap-added into the output stream.
//
// The handle is only valid for the duration of the callback.
type Window struct {
	// Window length. A power of two, at least four.
	length int
	// Time-domain input samples per input channel.
	input [][]float64
	// Input spectra per input channel.
	inputFFT [][]complex128
	// Output spectra per output channel.
	outputFFT [][]complex128
	// Time-domain output samples per output channel.
	output [][]float64
	// Sample rate cache.
	sampleRate float64
	// Circular read/write index into the time-domain buffers.
	index int
	// Total samples absorbed, for first-fill detection.
	samples uint64
}

func newWindow(length, index, inputs, outputs int) *Window {
	w := &Window{
		length:     length,
		input:      make([][]float64, inputs),
		inputFFT:   make([][]complex128, inputs),
		outputFFT:  make([][]complex128, outputs),
		output:     make([][]float64, outputs),
		sampleRate: defaultSampleRate,
		index:      index,
	}
	for c := range w.input {
		w.input[c] = make([]float64, length)
		w.inputFFT[c] = make([]complex128, w.Bins())
	}
	for c := range w.output {
		w.output[c] = make([]float64, length)
		w.outputFFT[c] = make([]complex128, w.Bins())
	}
	return w
}

// Inputs returns the number of input channels.
func (w *Window) Inputs() int { return len(w.input) }

// Outputs returns the number of output channels.
func (w *Window) Outputs() int { return len(w.output) }

// Length returns the window length in samples.
func (w *Window) Length() int { return w.length }

// Bins returns the number of non-redundant spectrum bins, length/2 + 1.
func (w *Window) Bins() int { return w.length>>1 + 1 }

// Latency returns the resynthesizer's processing latency in seconds,
// equal to one window length.
func (w *Window) Latency() float64 {
	return float64(w.length) / w.sampleRate
}

// Frequency returns the frequency in Hz associated with bin i.
func (w *Window) Frequency(i int) float64 {
	return w.sampleRate / float64(w.length) * float64(i)
}

// Time returns the time in seconds at the center (peak) of the window,
// with latency subtracted from stream time. Add Latency for stream time.
func (w *Window) Time() float64 {
	return float64(int64(w.samples)-int64(w.length>>1)) / w.sampleRate
}

// TimeAt returns the time in seconds at sample i of the current input
// frame, with latency subtracted from stream time.
func (w *Window) TimeAt(i int) float64 {
	return float64(int64(w.samples)-int64(w.length)+int64(i)) / w.sampleRate
}

// At returns the input spectrum value at bin i of channel.
func (w *Window) At(channel, i int) complex128 {
	return w.inputFFT[channel][i]
}

// AtOutput returns the output spectrum value at bin i of channel.
func (w *Window) AtOutput(channel, i int) complex128 {
	return w.outputFFT[channel][i]
}

// Set writes the output spectrum value at bin i of channel.
func (w *Window) Set(channel, i int, value complex128) {
	w.outputFFT[channel][i] = value
}

func (w *Window) setSampleRate(rate float64) {
	w.sampleRate = rate
}

// clearOutput zeroes the output spectra before the processing callback.
func (w *Window) clearOutput() {
	for c := range w.outputFFT {
		buf := w.outputFFT[c]
		for i := range buf {
			buf[i] = 0
		}
	}
}

// advance steps the circular index to the next sample.
func (w *Window) advance() {
	w.samples++
	w.index = (w.index + 1) & (w.length - 1)
}

// fftTime reports whether the window just completed a full fill: the index
// wrapped to zero and at least one whole window has been absorbed.
func (w *Window) fftTime() bool {
	return w.index == 0 && w.samples >= uint64(w.length)
}

// reset returns the window to an empty state at its configured phase.
func (w *Window) reset(startIndex int) {
	w.samples = 0
	w.index = startIndex
	for c := range w.input {
		buf := w.input[c]
		for i := range buf {
			buf[i] = 0
		}
	}
	for c := range w.output {
		buf := w.output[c]
		for i := range buf {
			buf[i] = 0
		}
	}
}
