// Package testutil holds deterministic excitation signals and assertion
// helpers shared by filter and measurement tests.
package testutil

import (
	"math"
	"math/rand"
)

// Noise generates uniform white noise in [-amplitude, amplitude] from a
// fixed seed.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Sine generates amplitude·sin(2π·freqHz·n/sampleRate).
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// Impulse generates a unit impulse at pos. Out-of-range positions yield
// silence.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// Constant returns a side-chain held at value.
func Constant(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// Sweep returns a linear side-chain from `from` to `to`, inclusive.
func Sweep(from, to float64, length int) []float64 {
	out := make([]float64, length)
	if length == 1 {
		out[0] = to
		return out
	}

	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(length-1)
	}

	return out
}
