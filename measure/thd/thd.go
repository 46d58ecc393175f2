// Package thd measures the harmonic distortion of a periodic signal from
// its windowed spectrum.
//
// Each spectral line is the power summed over CaptureBins bins either side
// of its nominal bin, so a line's level does not depend on where it falls
// between bins. Distortion figures are RMS ratios relative to the
// fundamental.
package thd

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	defaultRangeLowerHz = 20.0
	// half-width of the Blackman-Harris main lobe
	defaultCaptureBins = 4
)

var (
	// ErrEmptySignal is returned for a zero-length input.
	ErrEmptySignal = errors.New("thd: empty signal")
	// ErrFundamentalRange is returned when the fundamental is too close to DC
	// or Nyquist to be separated from them.
	ErrFundamentalRange = errors.New("thd: fundamental outside analysis range")
)

// Config holds analysis parameters. Zero values select defaults.
type Config struct {
	SampleRate float64
	// FFTSize defaults to the next power of two >= len(signal).
	FFTSize int
	// FundamentalHz defaults to the strongest line in the analysis range.
	FundamentalHz float64
	// RangeLowerHz and RangeUpperHz bound the fundamental search and the
	// harmonics taken into account. They default to 20 Hz and Nyquist.
	RangeLowerHz float64
	RangeUpperHz float64
	// MaxHarmonics limits the harmonic count; 0 means all in range.
	MaxHarmonics int
	// CaptureBins is the half-width of each line in bins.
	CaptureBins int
}

// Result holds distortion figures.
//
//nolint:revive
type Result struct {
	FundamentalHz    float64
	FundamentalLevel float64
	THD              float64
	THD_dB           float64
	OddHD            float64
	EvenHD           float64
	// Harmonics[i] is the level of harmonic i+2 relative to the fundamental.
	Harmonics []float64
}

// AnalyzeSignal windows signal with a Blackman-Harris window, transforms it
// and evaluates the harmonic content.
func AnalyzeSignal(signal []float64, cfg Config) (Result, error) {
	if len(signal) == 0 {
		return Result{}, ErrEmptySignal
	}

	fftSize := cfg.FFTSize
	if fftSize <= 0 {
		fftSize = nextPowerOf2(len(signal))
	}

	if fftSize < len(signal) {
		return Result{}, fmt.Errorf("thd: fft size %d shorter than signal %d", fftSize, len(signal))
	}

	windowed := window.BlackmanHarris(append([]float64(nil), signal...))

	in := make([]complex128, fftSize)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Result{}, fmt.Errorf("thd: %w", err)
	}

	spec := make([]complex128, fftSize)
	if err := plan.Forward(spec, in); err != nil {
		return Result{}, fmt.Errorf("thd: %w", err)
	}

	bins := fftSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := range bins {
		re[i] = real(spec[i])
		im[i] = imag(spec[i])
	}

	power := make([]float64, bins)
	vecmath.Power(power, re, im)

	cfg.FFTSize = fftSize

	return CalculateFromPower(power, cfg)
}

// CalculateFromPower evaluates a one-sided power spectrum covering bins
// [0, Nyquist] of an FFT of cfg.FFTSize points.
func CalculateFromPower(power []float64, cfg Config) (Result, error) {
	if len(power) < 2 {
		return Result{}, ErrEmptySignal
	}

	if !(cfg.SampleRate > 0) {
		return Result{}, fmt.Errorf("thd: sample rate must be > 0: %v", cfg.SampleRate)
	}

	if cfg.FFTSize <= 0 {
		cfg.FFTSize = 2 * (len(power) - 1)
	}

	if cfg.CaptureBins < 0 {
		return Result{}, fmt.Errorf("thd: capture bins must be >= 0: %d", cfg.CaptureBins)
	}

	capture := cfg.CaptureBins
	if capture == 0 {
		capture = defaultCaptureBins
	}

	binHz := cfg.SampleRate / float64(cfg.FFTSize)
	maxBin := len(power) - 1

	lower := cfg.RangeLowerHz
	if lower <= 0 {
		lower = defaultRangeLowerHz
	}

	upper := cfg.RangeUpperHz
	if upper <= 0 || upper > cfg.SampleRate/2 {
		upper = cfg.SampleRate / 2
	}

	lowerBin := max(int(math.Round(lower/binHz)), capture+1)
	upperBin := min(int(math.Round(upper/binHz)), maxBin)

	fundamentalHz := cfg.FundamentalHz
	if fundamentalHz <= 0 {
		if lowerBin > upperBin {
			return Result{}, ErrFundamentalRange
		}

		fundamentalHz = float64(argMax(power, lowerBin, upperBin)) * binHz
	}

	fundamentalBin := int(math.Round(fundamentalHz / binHz))
	if fundamentalBin < lowerBin || fundamentalBin+capture > maxBin {
		return Result{}, fmt.Errorf("%w: %g Hz", ErrFundamentalRange, fundamentalHz)
	}

	fundamental := linePower(power, fundamentalBin, capture)
	if fundamental <= 0 {
		return Result{FundamentalHz: fundamentalHz}, nil
	}

	var total, odd, even float64

	harmonics := make([]float64, 0, 8)

	for k := 2; cfg.MaxHarmonics <= 0 || k-1 <= cfg.MaxHarmonics; k++ {
		bin := int(math.Round(float64(k) * fundamentalHz / binHz))
		if bin > upperBin || bin+capture > maxBin {
			break
		}

		p := linePower(power, bin, capture)

		total += p
		if k%2 == 0 {
			even += p
		} else {
			odd += p
		}

		harmonics = append(harmonics, math.Sqrt(p/fundamental))
	}

	thd := math.Sqrt(total / fundamental)

	return Result{
		FundamentalHz:    fundamentalHz,
		FundamentalLevel: math.Sqrt(fundamental),
		THD:              thd,
		THD_dB:           ratioToDB(thd),
		OddHD:            math.Sqrt(odd / fundamental),
		EvenHD:           math.Sqrt(even / fundamental),
		Harmonics:        harmonics,
	}, nil
}

func linePower(power []float64, bin, capture int) float64 {
	lo := max(bin-capture, 0)
	hi := min(bin+capture, len(power)-1)

	sum := 0.0
	for _, p := range power[lo : hi+1] {
		if p > 0 {
			sum += p
		}
	}

	return sum
}

func argMax(power []float64, lo, hi int) int {
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if power[i] > power[best] {
			best = i
		}
	}

	return best
}

func ratioToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(v)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
