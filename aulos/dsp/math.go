package dsp

import "math"

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Delerp is the inverse of Lerp: it recovers the interpolation parameter
// for x between a and b. The result is not clamped.
func Delerp(a, b, x float64) float64 {
	return (x - a) / (b - a)
}

// Clamp01 clamps x to the unit interval.
func Clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}

// Smooth5 is the fifth order smoothstep polynomial x³(6x² − 15x + 10).
// It is C² continuous with f(0) = 0 and f(1) = 1.
func Smooth5(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

// SineEase is the quarter sine curve sin(½πx). Paired as
// SineEase(x) and SineEase(1−x) the two values always sum to unit power:
// sin² + cos² = 1.
func SineEase(x float64) float64 {
	return math.Sin(0.5 * math.Pi * x)
}

// RoundIndex converts a non-negative sample offset to a sample index,
// rounding halves to even so boundary times that fall exactly between
// two samples do not drift in one direction.
func RoundIndex(x float64) int {
	return int(math.RoundToEven(x))
}
