package ladder

import "math"

const (
	// MaxResonance is the largest resonance the solve accepts. Above it the
	// feedback loop approaches self-oscillation and the discretized system
	// loses stability margin.
	MaxResonance = 0.9873

	baseCutoffHz  = 20.0
	cutoffOctaves = 10.0
)

// ClampResonance clips a resonance side-chain value to [0, MaxResonance].
// NaN maps to 0.
func ClampResonance(resonance float64) float64 {
	return clamp(resonance, 0, MaxResonance)
}

// CutoffOmega maps a normalized cutoff c in [0,1] to angular frequency
// 2π·20·2^(10c) rad/s, an exponential sweep from about 20 Hz to 20 kHz.
func CutoffOmega(cutoff float64) float64 {
	return 2 * math.Pi * baseCutoffHz * exp2(cutoffOctaves*cutoff)
}

// MaxOmega returns the angular Nyquist frequency π·sampleRate.
func MaxOmega(sampleRate float64) float64 {
	return math.Pi * sampleRate
}

// condition returns the clamped resonance and cutoff angular frequency for
// one sample. A NaN cutoff is read as c = 0, so w0 becomes 20 Hz rather
// than 0.
func (f *Filter) condition(resonance, cutoff float64) (r, w0 float64) {
	if math.IsNaN(cutoff) {
		cutoff = 0
	}

	return ClampResonance(resonance), clamp(CutoffOmega(cutoff), 0, f.maxOmega)
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}

	if x > hi {
		return hi
	}

	return x
}
