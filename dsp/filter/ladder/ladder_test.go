package ladder

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/algo-vcf/internal/testutil"
	"github.com/cwbudde/algo-vcf/measure/response"
	"github.com/cwbudde/algo-vcf/measure/thd"
)

func mustNew(t *testing.T, sampleRate float64, opts ...Option) *Filter {
	t.Helper()

	f, err := New(sampleRate, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return f
}

func TestNewValidation(t *testing.T) {
	for _, sr := range []float64{0, -44100, math.NaN(), math.Inf(1)} {
		if _, err := New(sr); err == nil {
			t.Fatalf("expected error for sample rate %v", sr)
		}
	}

	if _, err := New(44100, WithModel(Model(9))); err == nil {
		t.Fatal("expected error for unknown model")
	}

	if _, err := New(44100, WithResonance(1.5)); err == nil {
		t.Fatal("expected error for resonance out of range")
	}

	if _, err := New(44100, WithCutoff(-0.1)); err == nil {
		t.Fatal("expected error for cutoff out of range")
	}

	if _, err := New(44100, WithCutoff(math.NaN())); err == nil {
		t.Fatal("expected error for NaN cutoff")
	}

	f := mustNew(t, 44100, nil, WithModel(ModelNonlinear))
	if f.Model() != ModelNonlinear {
		t.Fatalf("Model() = %v, want nonlinear", f.Model())
	}

	if f.Resonance() != defaultResonance || f.Cutoff() != defaultCutoff {
		t.Fatalf("defaults = (%v, %v)", f.Resonance(), f.Cutoff())
	}

	if f.TimeStep() != 1/44100.0 {
		t.Fatalf("TimeStep() = %v", f.TimeStep())
	}
}

func TestSetters(t *testing.T) {
	f := mustNew(t, 44100)

	if err := f.SetModel(Model(-1)); err == nil {
		t.Fatal("expected error for invalid model")
	}

	if err := f.SetResonance(2); err == nil {
		t.Fatal("expected error for resonance > 1")
	}

	if err := f.SetCutoff(math.Inf(1)); err == nil {
		t.Fatal("expected error for infinite cutoff")
	}

	if err := f.SetSampleRate(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	if err := f.SetResonance(0.25); err != nil {
		t.Fatalf("SetResonance() error = %v", err)
	}

	if err := f.SetCutoff(0.4); err != nil {
		t.Fatalf("SetCutoff() error = %v", err)
	}

	if f.Resonance() != 0.25 || f.Cutoff() != 0.4 {
		t.Fatalf("static parameters = (%v, %v)", f.Resonance(), f.Cutoff())
	}
}

func TestSetSampleRateKeepsState(t *testing.T) {
	f := mustNew(t, 44100)
	for range 32 {
		f.Process(0.5)
	}

	before := f.State()
	if err := f.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate() error = %v", err)
	}

	if f.State() != before {
		t.Fatal("SetSampleRate changed ladder state")
	}

	if f.SampleRate() != 96000 {
		t.Fatalf("SampleRate() = %v", f.SampleRate())
	}
}

func TestDeterministic(t *testing.T) {
	in := testutil.Noise(7, 0.25, 2048)
	res := testutil.Sweep(0, 1, len(in))
	cut := testutil.Sweep(1, 0, len(in))

	for _, m := range []Model{ModelLinear, ModelNonlinear, ModelNonlinearLightweight} {
		a := make([]float64, len(in))
		b := make([]float64, len(in))

		mustNew(t, 44100, WithModel(m)).ProcessTo(a, in, res, cut)
		mustNew(t, 44100, WithModel(m)).ProcessTo(b, in, res, cut)

		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%v: outputs differ at %d", m, i)
			}
		}
	}
}

func TestZeroResonanceIsStable(t *testing.T) {
	in := testutil.Noise(1, 1, 10000)

	for c := 0.0; c <= 1.0; c += 0.125 {
		f := mustNew(t, 44100, WithResonance(0), WithCutoff(c))

		out := append([]float64(nil), in...)
		f.ProcessInPlace(out)

		testutil.RequireBounded(t, out, 8)
	}
}

func TestModulatedSolveStaysFinite(t *testing.T) {
	in := testutil.Noise(3, 1, 20000)
	res := testutil.Sweep(0, 1, len(in))
	cut := make([]float64, len(in))

	for i := range cut {
		cut[i] = 0.5 + 0.5*math.Sin(2*math.Pi*float64(i)/1500)
	}

	for _, m := range []Model{ModelLinear, ModelNonlinear, ModelNonlinearLightweight} {
		for _, sr := range []float64{8000, 44100, 192000} {
			f := mustNew(t, sr, WithModel(m))

			out := make([]float64, len(in))
			f.ProcessTo(out, in, res, cut)

			testutil.RequireBounded(t, out, 1e3)
		}
	}
}

func TestZeroResonanceResponse(t *testing.T) {
	const sr = 44100

	// c = 0.5 puts the cutoff at 20·2^5 = 640 Hz.
	f := mustNew(t, sr, WithResonance(0), WithCutoff(0.5))

	ir := response.ImpulseResponse(f.Process, 16384)

	if dc := response.DCGain(ir); math.Abs(dc-1) > 1e-6 {
		t.Fatalf("DC gain = %v, want 1", dc)
	}

	resp, err := response.Analyze(ir, sr, 0)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	atCutoff, err := resp.MagnitudeDB(640)
	if err != nil {
		t.Fatalf("MagnitudeDB() error = %v", err)
	}

	if math.Abs(atCutoff-(-12.04)) > 0.3 {
		t.Fatalf("level at cutoff = %.3f dB, want about -12 dB", atCutoff)
	}

	slope, err := resp.SlopeDBPerOctave(2560)
	if err != nil {
		t.Fatalf("SlopeDBPerOctave() error = %v", err)
	}

	if slope < -26 || slope > -22 {
		t.Fatalf("slope above cutoff = %.2f dB/oct, want about -24", slope)
	}

	corner3, err := resp.CornerHz(3)
	if err != nil {
		t.Fatalf("CornerHz(3) error = %v", err)
	}

	// four equal one-poles: |H|^2 = (1+(f/fc)^2)^-4
	want3 := 640 * math.Sqrt(math.Pow(2, 0.25)-1)
	if math.Abs(corner3-want3) > 3 {
		t.Fatalf("-3 dB corner = %.1f Hz, want %.1f Hz", corner3, want3)
	}

	corner6, err := resp.CornerHz(6)
	if err != nil {
		t.Fatalf("CornerHz(6) error = %v", err)
	}

	want6 := 640 * math.Sqrt(math.Sqrt(2)-1)
	if math.Abs(corner6-want6) > 3 {
		t.Fatalf("-6 dB corner = %.1f Hz, want %.1f Hz", corner6, want6)
	}
}

func TestResonanceLowersDCGain(t *testing.T) {
	for _, r := range []float64{0.25, 0.5, 0.9} {
		f := mustNew(t, 44100, WithResonance(r), WithCutoff(0.5))

		var y float64
		for range 30000 {
			y = f.Process(1)
		}

		if want := 1 / (1 + 4*r); math.Abs(y-want) > 1e-6 {
			t.Fatalf("r=%v: settled output = %v, want %v", r, y, want)
		}
	}
}

func TestImpulseRisesThenDecays(t *testing.T) {
	f := mustNew(t, 44100, WithResonance(0), WithCutoff(0.5))

	ir := response.ImpulseResponse(f.Process, 2000)
	peak := testutil.ArgMaxAbs(ir)

	if peak <= 0 {
		t.Fatalf("peak index = %d, want a delayed peak", peak)
	}

	if ir[peak] > 1 {
		t.Fatalf("peak = %v, want <= 1", ir[peak])
	}

	for i := 1; i <= peak; i++ {
		if ir[i] < ir[i-1] {
			t.Fatalf("response falls at %d before peak %d", i, peak)
		}
	}

	for i := peak + 1; i < len(ir); i++ {
		if ir[i] > ir[i-1] {
			t.Fatalf("response rises at %d after peak %d", i, peak)
		}
	}

	if dc := response.DCGain(ir); math.Abs(dc-1) > 1e-9 {
		t.Fatalf("impulse response sum = %v, want 1", dc)
	}
}

func TestSideChainClamping(t *testing.T) {
	in := testutil.Noise(11, 0.5, 1024)

	run := func(sr, r, c float64) []float64 {
		f := mustNew(t, sr)
		out := make([]float64, len(in))
		f.ProcessTo(out, in, testutil.Constant(r, len(in)), testutil.Constant(c, len(in)))

		return out
	}

	testutil.RequireSliceNearlyEqual(t, run(44100, 5, 0.5), run(44100, MaxResonance, 0.5), 0)
	testutil.RequireSliceNearlyEqual(t, run(44100, -1, 0.5), run(44100, 0, 0.5), 0)
	testutil.RequireSliceNearlyEqual(t, run(44100, math.NaN(), 0.5), run(44100, 0, 0.5), 0)
	testutil.RequireSliceNearlyEqual(t, run(44100, 0.3, math.NaN()), run(44100, 0.3, 0), 0)

	// At 8 kHz both cutoffs exceed Nyquist and clamp to the same w0.
	testutil.RequireSliceNearlyEqual(t, run(8000, 0.5, 1), run(8000, 0.5, 0.9), 0)

	f := mustNew(t, 44100)
	f.ProcessSample(0.1, 0.5, math.NaN())

	if s := f.Snapshot(); math.Abs(OmegaHz(s.Omega)-20) > 1e-9 {
		t.Fatalf("NaN cutoff w0 = %v Hz, want 20 Hz", OmegaHz(s.Omega))
	}

	f = mustNew(t, 8000)
	f.ProcessSample(0.1, 0.5, 1)

	if s := f.Snapshot(); s.Omega != MaxOmega(8000) {
		t.Fatalf("w0 = %v, want clamp at %v", s.Omega, MaxOmega(8000))
	}
}

func TestNonlinearSingularityGuards(t *testing.T) {
	for _, m := range []Model{ModelNonlinear, ModelNonlinearLightweight} {
		f := mustNew(t, 44100, WithModel(m))

		// zero input from rest: mu falls back to 1
		if y := f.ProcessSample(0, 0.5, 0.5); y != 0 {
			t.Fatalf("%v: silent input gave %v", m, y)
		}

		s := f.Snapshot()
		if s.Coefficients.Gain != 1 || s.Coefficients.Feedback != 0.5 {
			t.Fatalf("%v: coefficients at rest = %+v", m, s.Coefficients)
		}

		// x3 is still exactly 0: rho falls back to r
		y := f.ProcessSample(0.3, 0.7, 0.5)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			t.Fatalf("%v: non-finite output %v", m, y)
		}

		if s := f.Snapshot(); s.Coefficients.Feedback != 0.7 {
			t.Fatalf("%v: feedback = %v, want resonance 0.7", m, s.Coefficients.Feedback)
		}
	}
}

func TestSmallSignalMatchesLinear(t *testing.T) {
	in := testutil.Noise(5, 1e-4, 4096)
	res := testutil.Constant(0.5, len(in))
	cut := testutil.Sweep(0.2, 0.9, len(in))

	want := make([]float64, len(in))
	mustNew(t, 44100).ProcessTo(want, in, res, cut)

	for _, m := range []Model{ModelNonlinear, ModelNonlinearLightweight} {
		got := make([]float64, len(in))
		mustNew(t, 44100, WithModel(m)).ProcessTo(got, in, res, cut)

		testutil.RequireSliceNearlyEqual(t, got, want, 1e-10)
	}
}

func TestNonlinearSaturates(t *testing.T) {
	const n = 4000

	lin := mustNew(t, 44100, WithResonance(0), WithCutoff(0.5))
	nl := mustNew(t, 44100, WithResonance(0), WithCutoff(0.5), WithModel(ModelNonlinear))

	var linOut float64
	nlPeak := 0.0

	for range n {
		linOut = lin.Process(10)
		nlPeak = math.Max(nlPeak, math.Abs(nl.Process(10)))
	}

	if math.Abs(linOut-10) > 1e-3 {
		t.Fatalf("linear settled output = %v, want 10", linOut)
	}

	if nlPeak >= 3 {
		t.Fatalf("nonlinear peak = %v, want saturation below 3", nlPeak)
	}
}

func TestProcessVariantsMatchSample(t *testing.T) {
	in := testutil.Noise(9, 0.4, 512)

	f1 := mustNew(t, 48000, WithModel(ModelNonlinear), WithResonance(0.8), WithCutoff(0.6))
	f2 := mustNew(t, 48000, WithModel(ModelNonlinear), WithResonance(0.8), WithCutoff(0.6))
	f3 := mustNew(t, 48000, WithModel(ModelNonlinear))

	want := make([]float64, len(in))
	for i, x := range in {
		want[i] = f1.ProcessSample(x, 0.8, 0.6)
	}

	got := append([]float64(nil), in...)
	f2.ProcessInPlace(got)
	testutil.RequireSliceNearlyEqual(t, got, want, 0)

	to := make([]float64, len(in))
	f3.ProcessTo(to, in, testutil.Constant(0.8, len(in)), testutil.Constant(0.6, len(in)))
	testutil.RequireSliceNearlyEqual(t, to, want, 0)

	f3.ProcessTo(nil, nil, nil, nil)
}

func TestStateRoundTrip(t *testing.T) {
	in := testutil.Noise(13, 0.3, 300)

	f := mustNew(t, 44100, WithResonance(0.7))
	for _, x := range in[:200] {
		f.Process(x)
	}

	saved := f.State()

	want := make([]float64, 100)
	for i, x := range in[200:] {
		want[i] = f.Process(x)
	}

	g := mustNew(t, 44100, WithResonance(0.7))
	if err := g.SetState(saved); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	got := make([]float64, 100)
	for i, x := range in[200:] {
		got[i] = g.Process(x)
	}

	testutil.RequireSliceNearlyEqual(t, got, want, 0)

	if err := g.SetState(State{Stage: Vec4{0, math.NaN(), 0, 0}}); err == nil {
		t.Fatal("expected error for NaN state")
	}

	g.Reset()
	if g.State() != (State{}) {
		t.Fatalf("Reset() left state %v", g.State())
	}
}

func TestNonFiniteInputIsSilence(t *testing.T) {
	f := mustNew(t, 44100)
	g := mustNew(t, 44100)

	for _, x := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		f.Process(0.5)
		g.Process(0.5)

		if a, b := f.Process(x), g.Process(0); a != b {
			t.Fatalf("input %v: output %v, want %v", x, a, b)
		}
	}
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	f := mustNew(t, 44100, WithModel(ModelNonlinear))

	var last float64
	for _, x := range testutil.Noise(17, 0.5, 64) {
		last = f.ProcessSample(x, 0.9, 0.55)
	}

	before := f.State()
	s := f.Snapshot()

	if f.State() != before {
		t.Fatal("Snapshot changed filter state")
	}

	if s.Next != before.Stage {
		t.Fatalf("snapshot next = %v, want %v", s.Next, before.Stage)
	}

	if s.Output() != last {
		t.Fatalf("snapshot output = %v, want %v", s.Output(), last)
	}

	if s.Resonance != 0.9 {
		t.Fatalf("snapshot resonance = %v", s.Resonance)
	}
}

func TestDump(t *testing.T) {
	f := mustNew(t, 44100)

	var before bytes.Buffer
	if err := f.Dump(&before); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	f.ProcessSample(0.25, 0.5, 0.5)

	var buf bytes.Buffer
	if err := f.Dump(&buf); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"input      0.25", "resonance  0.5", "I-kA/2", "inv(I-kA/2)", "x (next)", "640.000 Hz"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}

	if before.String() == out {
		t.Fatal("dump did not change after processing")
	}
}

func TestNonlinearHarmonics(t *testing.T) {
	const (
		sampleRate = 44100.0
		fftSize    = 16384
	)

	tone := 64 * sampleRate / fftSize

	measureTHD := func(model Model) thd.Result {
		t.Helper()

		f, err := New(sampleRate, WithModel(model), WithResonance(0), WithCutoff(0.9))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		out := make([]float64, 2*fftSize)
		for i := range out {
			out[i] = f.Process(math.Sin(2 * math.Pi * tone * float64(i) / sampleRate))
		}

		res, err := thd.AnalyzeSignal(out[fftSize:], thd.Config{
			SampleRate:    sampleRate,
			FundamentalHz: tone,
		})
		if err != nil {
			t.Fatalf("AnalyzeSignal() error = %v", err)
		}

		return res
	}

	if lin := measureTHD(ModelLinear); lin.THD > 1e-4 {
		t.Fatalf("linear THD = %g, want none", lin.THD)
	}

	for _, model := range []Model{ModelNonlinear, ModelNonlinearLightweight} {
		res := measureTHD(model)
		if res.THD < 1e-3 {
			t.Fatalf("%s THD = %g, want saturation harmonics", model, res.THD)
		}

		if res.OddHD <= res.EvenHD {
			t.Fatalf("%s odd %g <= even %g, want odd-dominant saturation", model, res.OddHD, res.EvenHD)
		}
	}
}

func TestModelNames(t *testing.T) {
	for _, m := range []Model{ModelLinear, ModelNonlinear, ModelNonlinearLightweight} {
		got, err := ParseModel(m.String())
		if err != nil {
			t.Fatalf("ParseModel(%q) error = %v", m.String(), err)
		}

		if got != m {
			t.Fatalf("ParseModel(%q) = %v", m.String(), got)
		}
	}

	if _, err := ParseModel("diode"); err == nil {
		t.Fatal("expected error for unknown model name")
	}

	if Model(42).String() != "unknown" {
		t.Fatalf("String() = %q", Model(42).String())
	}
}

func TestCutoffMapping(t *testing.T) {
	if got := OmegaHz(CutoffOmega(0)); math.Abs(got-20) > 1e-9 {
		t.Fatalf("c=0 maps to %v Hz, want 20", got)
	}

	if got := OmegaHz(CutoffOmega(1)); math.Abs(got-20480) > 1e-6 {
		t.Fatalf("c=1 maps to %v Hz, want 20480", got)
	}

	if got := ClampResonance(math.NaN()); got != 0 {
		t.Fatalf("ClampResonance(NaN) = %v", got)
	}
}

func TestFastTanhApprox(t *testing.T) {
	for x := -5.0; x <= 5.0; x += 0.01 {
		got := fastTanhApprox(x)
		if math.Abs(got-math.Tanh(x)) > 0.03 {
			t.Fatalf("fastTanhApprox(%v) = %v, tanh = %v", x, got, math.Tanh(x))
		}
	}
}
