package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tphakala/simd/f64"
)

const defaultSampleRate = 48000

// Generator creates deterministic excitation signals and side-chain curves.
//
// Noise and LFO phase continue from call to call, so a long signal can be
// rendered in blocks.
type Generator struct {
	sampleRate float64
	seed       int64
	rng        *rand.Rand
	lfoPhase   float64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a signal generator. Non-positive sample rates fall
// back to 48 kHz.
func NewGenerator(sampleRate float64, opts ...Option) *Generator {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		sampleRate = defaultSampleRate
	}

	g := &Generator{sampleRate: sampleRate, seed: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.rng = rand.New(rand.NewSource(g.seed))

	return g
}

// SampleRate returns the generator sample rate in Hz.
func (g *Generator) SampleRate() float64 { return g.sampleRate }

// Sine generates a sine wave starting at phase 0.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sine samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out, nil
}

// WhiteNoise generates uniform white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}

	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, samples)
	for i := range out {
		out[i] = (g.rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Impulse returns a unit impulse followed by zeros.
func Impulse(samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("impulse samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	out[0] = 1

	return out, nil
}

// Ramp returns a linear ramp from `from` to `to` over samples values. The
// last value equals `to`.
func Ramp(from, to float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("ramp samples must be > 0: %d", samples)
	}

	out := make([]float64, samples)
	if samples == 1 {
		out[0] = to
		return out, nil
	}

	step := (to - from) / float64(samples-1)
	for i := range out {
		out[i] = from + step*float64(i)
	}

	return out, nil
}

// LFO returns center + depth·sin(2π·rate·t), clipped to [0, 1] so the curve
// can drive a normalized side-chain. The phase continues across calls.
func (g *Generator) LFO(rateHz, center, depth float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("lfo samples must be > 0: %d", samples)
	}

	if rateHz < 0 {
		return nil, fmt.Errorf("lfo rate must be >= 0: %f", rateHz)
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * rateHz / g.sampleRate

	for i := range out {
		v := center + depth*math.Sin(g.lfoPhase)
		out[i] = math.Min(1, math.Max(0, v))

		g.lfoPhase += step
		if g.lfoPhase >= 2*math.Pi {
			g.lfoPhase -= 2 * math.Pi
		}
	}

	return out, nil
}

// Normalize scales channels in place by one common factor so that the
// largest absolute sample across all of them equals targetPeak, and returns
// the factor. Silent input is left unchanged with a factor of 1.
func Normalize(targetPeak float64, channels ...[]float64) (float64, error) {
	if targetPeak < 0 || math.IsInf(targetPeak, 0) || math.IsNaN(targetPeak) {
		return 0, fmt.Errorf("normalize target peak must be >= 0 and finite: %f", targetPeak)
	}

	if len(channels) == 0 {
		return 0, fmt.Errorf("normalize needs at least one channel")
	}

	maxAbs := 0.0
	for _, ch := range channels {
		for _, v := range ch {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}

	if maxAbs == 0 {
		return 1, nil
	}

	factor := targetPeak / maxAbs
	for _, ch := range channels {
		f64.Scale(ch, ch, factor)
	}

	return factor, nil
}
