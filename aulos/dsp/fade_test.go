package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFadeEndpoints(t *testing.T) {
	for _, fade := range []Fade{FadePower, FadeSmooth} {
		assert.InDelta(t, 0.0, fade.At(0), 1e-12, "%s should start at zero", fade)
		assert.InDelta(t, 1.0, fade.At(1), 1e-12, "%s should end at one", fade)
	}
}

func TestFadeMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(0, 1).Draw(t, "x")
		y := rapid.Float64Range(0, 1).Draw(t, "y")
		if x > y {
			x, y = y, x
		}
		for _, fade := range []Fade{FadePower, FadeSmooth} {
			assert.LessOrEqual(t, fade.At(x), fade.At(y)+1e-12, "%s must be non-decreasing", fade)
		}
	})
}

func TestPowerFadeEqualPower(t *testing.T) {
	// Power(x)² + Power(1−x)² == 1: a pair of coinciding power fades mixes
	// at constant power.
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(0, 1).Draw(t, "x")
		up := FadePower.At(x)
		down := FadePower.At(1 - x)
		assert.InDelta(t, 1.0, up*up+down*down, 1e-6)
	})
}
