package main

import (
	"math"

	"github.com/cwbudde/algo-vcf/dsp/signal"
	"github.com/cwbudde/algo-vcf/internal/config"
)

// automation renders a side-chain curve of n samples: the ramp from
// a.From to a.To plus a sine of a.Depth at a.LFOHz, clipped to [0, 1].
func automation(a config.Automation, sampleRate float64, n int) ([]float64, error) {
	curve, err := signal.Ramp(a.From, a.To, n)
	if err != nil {
		return nil, err
	}

	if a.LFOHz == 0 || a.Depth == 0 {
		return curve, nil
	}

	// depth is at most 0.5, so an LFO centred on 0.5 stays unclipped
	lfo, err := signal.NewGenerator(sampleRate).LFO(a.LFOHz, 0.5, a.Depth, n)
	if err != nil {
		return nil, err
	}

	for i := range curve {
		curve[i] = math.Min(1, math.Max(0, curve[i]+lfo[i]-0.5))
	}

	return curve, nil
}
