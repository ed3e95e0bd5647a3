package gen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCOutputsConstants(t *testing.T) {
	dc := NewDC(1.0, -0.5)
	assert.Equal(t, 0, dc.Inputs())
	assert.Equal(t, 2, dc.Outputs())

	frame := make([]float64, 2)
	dc.Tick(nil, frame)
	assert.Equal(t, []float64{1.0, -0.5}, frame)

	out := [][]float64{make([]float64, 16), make([]float64, 16)}
	dc.Process(16, nil, out)
	for i := 0; i < 16; i++ {
		assert.Equal(t, 1.0, out[0][i])
		assert.Equal(t, -0.5, out[1][i])
	}
}

func TestSineFrequency(t *testing.T) {
	const rate = 48000.0
	const freq = 440.0
	sine := NewSine(freq)
	sine.SetSampleRate(rate)

	// Count rising zero crossings over one second; should match the
	// frequency within one cycle.
	out := [][]float64{make([]float64, 48000)}
	sine.Process(48000, nil, out)
	crossings := 0
	for i := 1; i < len(out[0]); i++ {
		if out[0][i-1] < 0 && out[0][i] >= 0 {
			crossings++
		}
	}
	assert.InDelta(t, freq, float64(crossings), 1.0)
}

func TestSineTickMatchesProcess(t *testing.T) {
	a := NewSine(220.0)
	b := NewSine(220.0)
	a.SetSampleRate(44100)
	b.SetSampleRate(44100)

	blocked := [][]float64{make([]float64, 64)}
	a.Process(64, nil, blocked)

	frame := make([]float64, 1)
	for i := 0; i < 64; i++ {
		b.Tick(nil, frame)
		assert.InDelta(t, blocked[0][i], frame[0], 1e-12)
	}
}

func TestSquareAlternates(t *testing.T) {
	sq := NewSquare(1000.0)
	sq.SetSampleRate(48000)
	out := [][]float64{make([]float64, 480)}
	sq.Process(480, nil, out)
	high, low := 0, 0
	for _, v := range out[0] {
		switch v {
		case 1:
			high++
		case -1:
			low++
		default:
			t.Fatalf("square output must be ±1, got %v", v)
		}
	}
	// 10 cycles, half of each up.
	assert.InDelta(t, 240, high, 11)
	assert.InDelta(t, 240, low, 11)
}

func TestNoiseDeterministicAndBounded(t *testing.T) {
	a := NewNoise()
	b := NewNoise()
	bufA := [][]float64{make([]float64, 1024)}
	bufB := [][]float64{make([]float64, 1024)}
	a.Process(1024, nil, bufA)
	b.Process(1024, nil, bufB)
	assert.Equal(t, bufA[0], bufB[0], "same seed must give the same sequence")

	sum := 0.0
	for _, v := range bufA[0] {
		assert.LessOrEqual(t, math.Abs(v), 1.0)
		sum += v
	}
	// The LFSR sequence is roughly balanced.
	assert.Less(t, math.Abs(sum)/1024, 0.25)

	a.Reset()
	again := [][]float64{make([]float64, 1024)}
	a.Process(1024, nil, again)
	assert.Equal(t, bufA[0], again[0], "reset must restart the sequence")
}
