package ladder

import (
	"fmt"
	"math"
)

const (
	defaultResonance = 0.5
	defaultCutoff    = 0.7
)

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	model     Model
	resonance float64
	cutoff    float64
}

func defaultConfig() config {
	return config{
		model:     ModelLinear,
		resonance: defaultResonance,
		cutoff:    defaultCutoff,
	}
}

// WithModel selects the linear or nonlinear solve.
func WithModel(model Model) Option {
	return func(cfg *config) error {
		if !validModel(model) {
			return fmt.Errorf("ladder: invalid model: %d", model)
		}

		cfg.model = model

		return nil
	}
}

// WithResonance sets the static resonance in [0, 1] used by Process and
// ProcessInPlace.
func WithResonance(resonance float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(resonance, 0, 1, "resonance"); err != nil {
			return err
		}

		cfg.resonance = resonance

		return nil
	}
}

// WithCutoff sets the static normalized cutoff in [0, 1] used by Process
// and ProcessInPlace.
func WithCutoff(cutoff float64) Option {
	return func(cfg *config) error {
		if err := validateFiniteRange(cutoff, 0, 1, "cutoff"); err != nil {
			return err
		}

		cfg.cutoff = cutoff

		return nil
	}
}

// State contains the ladder stage outputs for save/restore workflows.
type State struct {
	Stage Vec4
}

// Step holds every intermediate of one trapezoidal update.
type Step struct {
	Input        float64
	Resonance    float64
	Omega        float64
	NormFreq     float64
	Coefficients Coefficients
	System       Mat4
	Inverse      Mat4
	Propagation  Vec4
	Injection    Vec4
	Previous     Vec4
	Next         Vec4
}

// Output returns the fourth stage of the updated state.
func (s *Step) Output() float64 { return s.Next[3] }

// Filter is a four-stage ladder low-pass processor with per-sample
// resonance and cutoff modulation.
type Filter struct {
	sampleRate float64
	timeStep   float64
	maxOmega   float64

	model    Model
	strategy strategy

	resonance float64
	cutoff    float64

	state State

	prev      State
	lastIn    float64
	lastRes   float64
	lastCut   float64
	processed bool
}

// New constructs a ladder filter for the given sample rate.
func New(sampleRate float64, opts ...Option) (*Filter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	f := &Filter{
		model:     cfg.model,
		strategy:  strategyFor(cfg.model),
		resonance: cfg.resonance,
		cutoff:    cfg.cutoff,
	}

	if err := f.SetSampleRate(sampleRate); err != nil {
		return nil, err
	}

	return f, nil
}

// SampleRate returns the sample rate in Hz.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// TimeStep returns 1/SampleRate.
func (f *Filter) TimeStep() float64 { return f.timeStep }

// Model returns the active model.
func (f *Filter) Model() Model { return f.model }

// Resonance returns the static resonance.
func (f *Filter) Resonance() float64 { return f.resonance }

// Cutoff returns the static normalized cutoff.
func (f *Filter) Cutoff() float64 { return f.cutoff }

// SetSampleRate updates the time step and the cutoff clamp. Ladder state is
// kept.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if !isFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("ladder: sample rate must be > 0 and finite: %f", sampleRate)
	}

	f.sampleRate = sampleRate
	f.timeStep = 1 / sampleRate
	f.maxOmega = MaxOmega(sampleRate)

	return nil
}

// SetModel switches between linear and nonlinear solves.
func (f *Filter) SetModel(model Model) error {
	if !validModel(model) {
		return fmt.Errorf("ladder: invalid model: %d", model)
	}

	f.model = model
	f.strategy = strategyFor(model)

	return nil
}

// SetResonance updates the static resonance.
func (f *Filter) SetResonance(resonance float64) error {
	if err := validateFiniteRange(resonance, 0, 1, "resonance"); err != nil {
		return err
	}

	f.resonance = resonance

	return nil
}

// SetCutoff updates the static normalized cutoff.
func (f *Filter) SetCutoff(cutoff float64) error {
	if err := validateFiniteRange(cutoff, 0, 1, "cutoff"); err != nil {
		return err
	}

	f.cutoff = cutoff

	return nil
}

// Reset clears ladder state.
func (f *Filter) Reset() {
	f.state = State{}
	f.prev = State{}
	f.lastIn, f.lastRes, f.lastCut = 0, 0, 0
	f.processed = false
}

// State returns a copy of the current ladder state.
func (f *Filter) State() State {
	return f.state
}

// SetState restores an externally saved ladder state.
func (f *Filter) SetState(state State) error {
	if !state.Stage.IsFinite() {
		return fmt.Errorf("ladder: state contains NaN or Inf")
	}

	f.state = state
	f.processed = false

	return nil
}

// ProcessSample filters one input sample with the given resonance and
// normalized cutoff side-chain values. Out-of-range side-chain values are
// clamped; calls for one channel must be made in sample order.
func (f *Filter) ProcessSample(input, resonance, cutoff float64) float64 {
	if !isFinite(input) {
		input = 0
	}

	f.prev = f.state
	f.lastIn, f.lastRes, f.lastCut = input, resonance, cutoff
	f.processed = true

	step := f.solve(f.state.Stage, input, resonance, cutoff)
	if !step.Next.IsFinite() {
		f.state = State{}
		return 0
	}

	f.state.Stage = step.Next

	return step.Next[3]
}

// Process filters one sample with the static resonance and cutoff.
func (f *Filter) Process(input float64) float64 {
	return f.ProcessSample(input, f.resonance, f.cutoff)
}

// ProcessInPlace filters a mono buffer in place with the static resonance
// and cutoff.
func (f *Filter) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = f.ProcessSample(buf[i], f.resonance, f.cutoff)
	}
}

// ProcessTo filters src into dst with per-sample resonance and cutoff
// side-chains. All slices must have the same length.
func (f *Filter) ProcessTo(dst, src, resonance, cutoff []float64) {
	n := len(src)
	if n == 0 {
		return
	}

	_ = dst[n-1]
	_ = resonance[n-1]
	_ = cutoff[n-1]

	for i, x := range src {
		dst[i] = f.ProcessSample(x, resonance[i], cutoff[i])
	}
}

// Snapshot recomputes the most recent update from the state before it.
// The filter is not modified. Before the first sample it reports the
// update a zero input would make with the static parameters.
func (f *Filter) Snapshot() Step {
	if !f.processed {
		return f.solve(f.state.Stage, 0, f.resonance, f.cutoff)
	}

	return f.solve(f.prev.Stage, f.lastIn, f.lastRes, f.lastCut)
}

// solve runs conditioner, strategy, coefficient builder, inverter and
// state updater for one sample.
func (f *Filter) solve(x Vec4, input, resonance, cutoff float64) Step {
	r, w0 := f.condition(resonance, cutoff)
	wk := w0 * f.timeStep

	coeffs := f.strategy.coefficients(input, r, x)
	system := SystemMatrix(wk, coeffs.Feedback)

	s := Step{
		Input:        input,
		Resonance:    r,
		Omega:        w0,
		NormFreq:     wk,
		Coefficients: coeffs,
		System:       system,
		Inverse:      invertLadder(&system),
		Propagation:  Propagate(wk, coeffs.Feedback, coeffs.State),
		Injection:    Inject(wk, input, coeffs.Gain),
		Previous:     x,
	}

	s.Next = s.Inverse.MulVec(s.Propagation.Add(s.Injection))

	return s
}

func validateFiniteRange(value, min, max float64, name string) error {
	if !isFinite(value) {
		return fmt.Errorf("ladder: %s must be finite: %v", name, value)
	}

	if value < min || value > max {
		return fmt.Errorf("ladder: %s must be in [%g, %g]: %f", name, min, max, value)
	}

	return nil
}

// OmegaHz converts an angular frequency in rad/s to Hz.
func OmegaHz(omega float64) float64 {
	return omega / (2 * math.Pi)
}
