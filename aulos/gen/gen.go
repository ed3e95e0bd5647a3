// Package gen provides a few primitive generator units: constants,
// oscillators and noise. They are the raw material the sequencer schedules
// and the demo plays; anything fancier is expected to come from the host
// application.
package gen

import (
	"math"

	"github.com/valerio/go-aulos/aulos/unit"
)

// Unit type identifiers for Route/graph analysis.
const (
	idDC uint64 = iota + 1
	idSine
	idSquare
	idNoise
)

// DC outputs a constant value on each of its channels.
type DC struct {
	values []float64
}

var _ unit.Unit = (*DC)(nil)

// NewDC creates a constant generator with one output channel per value.
func NewDC(values ...float64) *DC {
	v := make([]float64, len(values))
	copy(v, values)
	return &DC{values: v}
}

func (d *DC) Inputs() int  { return 0 }
func (d *DC) Outputs() int { return len(d.values) }

func (d *DC) SetSampleRate(rate float64) {}
func (d *DC) Allocate()                  {}
func (d *DC) Reset()                     {}

func (d *DC) Tick(input, output []float64) {
	copy(output, d.values)
}

func (d *DC) Process(n int, input, output [][]float64) {
	for c, v := range d.values {
		buf := output[c][:n]
		for i := range buf {
			buf[i] = v
		}
	}
}

func (d *DC) ID() uint64 { return idDC }

func (d *DC) Route(input unit.Frame, frequency float64) unit.Frame {
	frame := unit.NewFrame(d.Outputs())
	for i, v := range d.values {
		frame[i] = unit.Signal{Kind: unit.SignalValue, Value: v}
	}
	return frame
}

// Sine is a mono sine oscillator with a fixed frequency.
// Phase is accumulated in cycles and wrapped each sample, so the oscillator
// stays accurate over arbitrarily long renders.
type Sine struct {
	freq       float64
	sampleRate float64
	phase      float64
	delta      float64
}

var _ unit.Unit = (*Sine)(nil)

// NewSine creates a sine oscillator at freq Hz.
func NewSine(freq float64) *Sine {
	s := &Sine{freq: freq, sampleRate: unit.DefaultSampleRate}
	s.delta = freq / s.sampleRate
	return s
}

func (s *Sine) Inputs() int  { return 0 }
func (s *Sine) Outputs() int { return 1 }

func (s *Sine) SetSampleRate(rate float64) {
	if s.sampleRate != rate {
		s.sampleRate = rate
		s.delta = s.freq / rate
	}
}

func (s *Sine) Allocate() {}

func (s *Sine) Reset() {
	s.phase = 0
}

func (s *Sine) Tick(input, output []float64) {
	output[0] = math.Sin(2 * math.Pi * s.phase)
	s.phase += s.delta
	s.phase -= math.Floor(s.phase)
}

func (s *Sine) Process(n int, input, output [][]float64) {
	buf := output[0][:n]
	for i := range buf {
		buf[i] = math.Sin(2 * math.Pi * s.phase)
		s.phase += s.delta
		s.phase -= math.Floor(s.phase)
	}
}

func (s *Sine) ID() uint64 { return idSine }

func (s *Sine) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Generated(1)
}

// Square is a mono naive square oscillator. It aliases, which is fine for
// test signals and bleeps; band-limit it downstream if that matters.
type Square struct {
	freq       float64
	sampleRate float64
	phase      float64
	delta      float64
}

var _ unit.Unit = (*Square)(nil)

// NewSquare creates a square oscillator at freq Hz.
func NewSquare(freq float64) *Square {
	s := &Square{freq: freq, sampleRate: unit.DefaultSampleRate}
	s.delta = freq / s.sampleRate
	return s
}

func (s *Square) Inputs() int  { return 0 }
func (s *Square) Outputs() int { return 1 }

func (s *Square) SetSampleRate(rate float64) {
	if s.sampleRate != rate {
		s.sampleRate = rate
		s.delta = s.freq / rate
	}
}

func (s *Square) Allocate() {}

func (s *Square) Reset() {
	s.phase = 0
}

func (s *Square) Tick(input, output []float64) {
	if s.phase < 0.5 {
		output[0] = 1
	} else {
		output[0] = -1
	}
	s.phase += s.delta
	s.phase -= math.Floor(s.phase)
}

func (s *Square) Process(n int, input, output [][]float64) {
	buf := output[0][:n]
	for i := range buf {
		if s.phase < 0.5 {
			buf[i] = 1
		} else {
			buf[i] = -1
		}
		s.phase += s.delta
		s.phase -= math.Floor(s.phase)
	}
}

func (s *Square) ID() uint64 { return idSquare }

func (s *Square) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Generated(1)
}
