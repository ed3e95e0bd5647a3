package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLerpDelerpRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(-1e6, 1e6).Draw(t, "a")
		span := rapid.Float64Range(1e-3, 1e6).Draw(t, "span")
		b := a + span
		x := rapid.Float64Range(0, 1).Draw(t, "x")
		got := Delerp(a, b, Lerp(a, b, x))
		assert.InDelta(t, x, got, 1e-6)
	})
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-2.5))
	assert.Equal(t, 1.0, Clamp01(3.0))
	assert.Equal(t, 0.25, Clamp01(0.25))
}

func TestSmooth5Values(t *testing.T) {
	assert.Equal(t, 0.0, Smooth5(0))
	assert.Equal(t, 1.0, Smooth5(1))
	assert.InDelta(t, 0.5, Smooth5(0.5), 1e-12)
}

func TestRoundIndexHalfToEven(t *testing.T) {
	assert.Equal(t, 0, RoundIndex(0.5))
	assert.Equal(t, 2, RoundIndex(1.5))
	assert.Equal(t, 2, RoundIndex(2.5))
	assert.Equal(t, 3, RoundIndex(2.51))
	assert.Equal(t, 2, RoundIndex(2.49))
}
