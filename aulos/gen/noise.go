package gen

import "github.com/valerio/go-aulos/aulos/unit"

const noiseSeed = 0x7FFF

// Noise is a mono noise generator built on a 15-bit linear feedback shift
// register, the same construction retro sound chips use. Each sample shifts
// the register once; bit 0 selects between +1 and -1.
//
// The sequence is deterministic: two Noise units reset to the same state
// produce the same samples, which makes renders reproducible.
type Noise struct {
	lfsr uint16
}

var _ unit.Unit = (*Noise)(nil)

// NewNoise creates an LFSR noise generator.
func NewNoise() *Noise {
	return &Noise{lfsr: noiseSeed}
}

func (n *Noise) Inputs() int  { return 0 }
func (n *Noise) Outputs() int { return 1 }

func (n *Noise) SetSampleRate(rate float64) {}
func (n *Noise) Allocate()                  {}

func (n *Noise) Reset() {
	n.lfsr = noiseSeed
}

func (n *Noise) step() float64 {
	if n.lfsr == 0 {
		n.lfsr = noiseSeed
	}
	bit := (n.lfsr & 1) ^ ((n.lfsr >> 1) & 1)
	n.lfsr = (n.lfsr >> 1) | (bit << 14)
	if n.lfsr&1 == 0 {
		return 1
	}
	return -1
}

func (n *Noise) Tick(input, output []float64) {
	output[0] = n.step()
}

func (n *Noise) Process(count int, input, output [][]float64) {
	buf := output[0][:count]
	for i := range buf {
		buf[i] = n.step()
	}
}

func (n *Noise) ID() uint64 { return idNoise }

func (n *Noise) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Generated(1)
}
