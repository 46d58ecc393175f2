// Package levels computes level statistics of rendered audio blocks.
package levels

import (
	"math"

	"github.com/tphakala/simd/f64"
)

// Stats holds level statistics of a signal.
//
//nolint:revive
type Stats struct {
	Length         int
	DC             float64 // mean
	RMS            float64
	RMS_dB         float64
	Peak           float64 // max |x|
	Peak_dB        float64
	CrestFactor_dB float64
	Energy         float64 // sum of squares
	Clipped        int     // samples with |x| >= 1
}

// Calculate computes Stats for one block.
func Calculate(signal []float64) Stats {
	var s Streaming

	s.Update(signal)

	return s.Result()
}

// Streaming accumulates Stats across consecutive blocks.
type Streaming struct {
	n       int
	sum     float64
	sumSq   float64
	peak    float64
	clipped int
}

// Update adds a block of samples.
func (s *Streaming) Update(samples []float64) {
	if len(samples) == 0 {
		return
	}

	s.n += len(samples)
	s.sum += f64.Sum(samples)
	s.sumSq += f64.DotProduct(samples, samples)

	for _, x := range samples {
		a := math.Abs(x)
		if a > s.peak {
			s.peak = a
		}

		if a >= 1 {
			s.clipped++
		}
	}
}

// Result returns the statistics accumulated so far.
func (s *Streaming) Result() Stats {
	if s.n == 0 {
		return Stats{
			RMS_dB:         math.Inf(-1),
			Peak_dB:        math.Inf(-1),
			CrestFactor_dB: 0,
		}
	}

	nf := float64(s.n)
	rms := math.Sqrt(s.sumSq / nf)

	crest := 0.0
	if rms > 0 {
		crest = ampTodB(s.peak / rms)
	}

	return Stats{
		Length:         s.n,
		DC:             s.sum / nf,
		RMS:            rms,
		RMS_dB:         ampTodB(rms),
		Peak:           s.peak,
		Peak_dB:        ampTodB(s.peak),
		CrestFactor_dB: crest,
		Energy:         s.sumSq,
		Clipped:        s.clipped,
	}
}

// Reset clears accumulated data.
func (s *Streaming) Reset() {
	*s = Streaming{}
}

// ampTodB converts an amplitude to decibels. Zero maps to -Inf.
func ampTodB(value float64) float64 {
	a := math.Abs(value)
	if a == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(a)
}
