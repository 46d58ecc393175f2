package response

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/tphakala/simd/f64"
)

// Errors returned by response analysis.
var (
	ErrEmptyImpulse      = errors.New("response: impulse response is empty")
	ErrInvalidSampleRate = errors.New("response: sample rate must be positive")
	ErrInvalidFFTSize    = errors.New("response: FFT size must be a power of two not shorter than the impulse response")
	ErrFrequencyRange    = errors.New("response: frequency outside [0, Nyquist]")
	ErrNoCorner          = errors.New("response: response never drops below the requested level")
)

// defaultPadding is the zero-padding factor used when Analyze picks the FFT
// size.
const defaultPadding = 4

// ImpulseResponse feeds a unit impulse followed by zeros through process and
// returns the first n outputs.
func ImpulseResponse(process func(float64) float64, n int) []float64 {
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)

	out[0] = process(1)
	for i := 1; i < n; i++ {
		out[i] = process(0)
	}

	return out
}

// DCGain returns the sum of the impulse response, the gain at 0 Hz.
func DCGain(ir []float64) float64 {
	return f64.Sum(ir)
}

// Response is a one-sided magnitude response.
type Response struct {
	SampleRate float64
	FFTSize    int
	// Magnitude holds linear |H| for bins 0..FFTSize/2.
	Magnitude []float64
}

// Analyze computes the magnitude response of ir. If fftSize is 0 a power of
// two of at least four times the impulse length is used.
func Analyze(ir []float64, sampleRate float64, fftSize int) (*Response, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyImpulse
	}

	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}

	if fftSize == 0 {
		fftSize = nextPowerOf2(defaultPadding * len(ir))
	}

	if fftSize < len(ir) || fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFFTSize, fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("response: failed to create FFT plan: %w", err)
	}

	in := make([]complex128, fftSize)
	for i, v := range ir {
		in[i] = complex(v, 0)
	}

	spec := make([]complex128, fftSize)
	if err := plan.Forward(spec, in); err != nil {
		return nil, fmt.Errorf("response: forward FFT failed: %w", err)
	}

	bins := fftSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := range bins {
		re[i] = real(spec[i])
		im[i] = imag(spec[i])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	return &Response{SampleRate: sampleRate, FFTSize: fftSize, Magnitude: mag}, nil
}

// BinHz returns the frequency spacing between bins.
func (r *Response) BinHz() float64 {
	return r.SampleRate / float64(r.FFTSize)
}

// Nyquist returns half the sample rate.
func (r *Response) Nyquist() float64 {
	return r.SampleRate / 2
}

// MagnitudeAt returns linear |H| at freqHz, interpolating between bins.
func (r *Response) MagnitudeAt(freqHz float64) (float64, error) {
	if !(freqHz >= 0) || freqHz > r.Nyquist() {
		return 0, fmt.Errorf("%w: %g Hz", ErrFrequencyRange, freqHz)
	}

	pos := freqHz / r.BinHz()
	i := int(pos)

	if i >= len(r.Magnitude)-1 {
		return r.Magnitude[len(r.Magnitude)-1], nil
	}

	t := pos - float64(i)

	return r.Magnitude[i] + t*(r.Magnitude[i+1]-r.Magnitude[i]), nil
}

// MagnitudeDB returns 20·log10|H| at freqHz.
func (r *Response) MagnitudeDB(freqHz float64) (float64, error) {
	m, err := r.MagnitudeAt(freqHz)
	if err != nil {
		return 0, err
	}

	return ampToDB(m), nil
}

// SlopeDBPerOctave returns the level change from freqHz to 2·freqHz.
func (r *Response) SlopeDBPerOctave(freqHz float64) (float64, error) {
	lo, err := r.MagnitudeDB(freqHz)
	if err != nil {
		return 0, err
	}

	hi, err := r.MagnitudeDB(2 * freqHz)
	if err != nil {
		return 0, err
	}

	return hi - lo, nil
}

// CornerHz returns the lowest frequency at which the response has fallen
// dropDB below its DC level, interpolated between bins.
func (r *Response) CornerHz(dropDB float64) (float64, error) {
	ref := ampToDB(r.Magnitude[0]) - dropDB

	prev := ampToDB(r.Magnitude[0])
	for i := 1; i < len(r.Magnitude); i++ {
		cur := ampToDB(r.Magnitude[i])
		if cur <= ref {
			t := 0.0
			if prev != cur {
				t = (prev - ref) / (prev - cur)
			}

			return (float64(i-1) + t) * r.BinHz(), nil
		}

		prev = cur
	}

	return 0, ErrNoCorner
}

// Peak returns the frequency and level of the largest bin.
func (r *Response) Peak() (freqHz, levelDB float64) {
	best := 0
	for i, m := range r.Magnitude {
		if m > r.Magnitude[best] {
			best = i
		}
	}

	return float64(best) * r.BinHz(), ampToDB(r.Magnitude[best])
}

func ampToDB(value float64) float64 {
	if value <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(value)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
