// Command vcfinfo prints measured frequency-response properties of the
// ladder filter for a set of normalized cutoff values.
//
// Usage:
//
//	vcfinfo [flags] [cutoff ...]
//
// Without arguments it measures cutoffs 0, 0.25, 0.5, 0.75 and 1.
//
// Examples:
//
//	vcfinfo 0.5
//	vcfinfo -rate 48000 -resonance 0.9 0.3 0.6
//	vcfinfo -model nonlinear -probe 0.01 0.5
//	vcfinfo -model nonlinear -thd 2 0.5
//	vcfinfo -list
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cwbudde/algo-vcf/dsp/filter/ladder"
	"github.com/cwbudde/algo-vcf/dsp/signal"
	"github.com/cwbudde/algo-vcf/measure/response"
	"github.com/cwbudde/algo-vcf/measure/thd"
)

var defaultCutoffs = []float64{0, 0.25, 0.5, 0.75, 1}

const (
	thdFFTSize = 8192
	// lowest tone bin; keeps the fundamental clear of DC leakage
	thdMinBin = 16
)

type settings struct {
	sampleRate float64
	model      ladder.Model
	resonance  float64
	length     int
	probe      float64
	thdLevel   float64
}

type row struct {
	cutoff   float64
	omegaHz  float64
	dcDB     float64
	cornerHz float64
	atCutDB  float64
	slope1   float64
	slope2   float64
	peakHz   float64
	peakDB   float64
	toneHz   float64
	thdPct   float64
}

func main() {
	rate := flag.Float64("rate", 44100, "sample rate in Hz")
	modelName := flag.String("model", "linear", "filter model (linear, nonlinear, nonlinear_lightweight)")
	resonance := flag.Float64("resonance", 0, "resonance in [0, 1]")
	length := flag.Int("length", 16384, "impulse response length in samples")
	probe := flag.Float64("probe", 1e-3, "impulse amplitude; keep small for nonlinear models")
	thdLevel := flag.Float64("thd", 0.5, "sine amplitude for the distortion column; 0 disables it")
	list := flag.Bool("list", false, "list available models")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vcfinfo [flags] [cutoff ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints measured response properties of the ladder filter.\n")
		fmt.Fprintf(os.Stderr, "Cutoffs are normalized to [0, 1] (20 Hz to 20.48 kHz).\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vcfinfo 0.5\n")
		fmt.Fprintf(os.Stderr, "  vcfinfo -rate 48000 -resonance 0.9 0.3 0.6\n")
		fmt.Fprintf(os.Stderr, "  vcfinfo -list\n")
	}
	flag.Parse()

	if *list {
		printList(os.Stdout)
		return
	}

	model, err := ladder.ParseModel(*modelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cutoffs, err := parseCutoffs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	s := settings{
		sampleRate: *rate,
		model:      model,
		resonance:  *resonance,
		length:     *length,
		probe:      *probe,
		thdLevel:   *thdLevel,
	}

	rows := make([]row, 0, len(cutoffs))
	for _, c := range cutoffs {
		r, err := measure(s, c)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cutoff %g: %v\n", c, err)
			os.Exit(1)
		}

		rows = append(rows, r)
	}

	if err := printAnalysis(os.Stdout, s, rows); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printList(w io.Writer) {
	for _, m := range []ladder.Model{ladder.ModelLinear, ladder.ModelNonlinear, ladder.ModelNonlinearLightweight} {
		fmt.Fprintln(w, m)
	}
}

func parseCutoffs(args []string) ([]float64, error) {
	if len(args) == 0 {
		return defaultCutoffs, nil
	}

	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cutoff %q: %w", a, err)
		}

		if v < 0 || v > 1 {
			return nil, fmt.Errorf("cutoff %g outside [0, 1]", v)
		}

		out[i] = v
	}

	return out, nil
}

// measure records a scaled impulse response at one cutoff and extracts
// the table columns. Columns that fall beyond Nyquist are NaN.
func measure(s settings, cutoff float64) (row, error) {
	if !(s.probe > 0) {
		return row{}, fmt.Errorf("probe amplitude must be > 0: %g", s.probe)
	}

	f, err := ladder.New(s.sampleRate,
		ladder.WithModel(s.model),
		ladder.WithResonance(s.resonance),
		ladder.WithCutoff(cutoff),
	)
	if err != nil {
		return row{}, err
	}

	ir := response.ImpulseResponse(func(x float64) float64 {
		return f.Process(x*s.probe) / s.probe
	}, s.length)

	resp, err := response.Analyze(ir, s.sampleRate, 0)
	if err != nil {
		return row{}, err
	}

	omegaHz := ladder.OmegaHz(math.Min(ladder.CutoffOmega(cutoff), ladder.MaxOmega(s.sampleRate)))

	r := row{
		cutoff:  cutoff,
		omegaHz: omegaHz,
		dcDB:    20 * math.Log10(math.Abs(response.DCGain(ir))),
	}

	r.cornerHz = orNaN(resp.CornerHz(3))
	r.atCutDB = orNaN(resp.MagnitudeDB(omegaHz))
	r.slope1 = orNaN(resp.SlopeDBPerOctave(omegaHz))
	r.slope2 = orNaN(resp.SlopeDBPerOctave(2 * omegaHz))
	r.peakHz, r.peakDB = resp.Peak()

	r.toneHz, r.thdPct = math.NaN(), math.NaN()
	if s.thdLevel > 0 {
		f.Reset()

		tone, res, err := distortion(f, s, omegaHz)
		if err == nil {
			r.toneHz, r.thdPct = tone, 100*res.THD
		}
	}

	return r, nil
}

// distortion drives f with a sine at half the cutoff, snapped to an FFT
// bin, and analyses the second half of the output once the filter has
// settled.
func distortion(f *ladder.Filter, s settings, omegaHz float64) (float64, thd.Result, error) {
	binHz := s.sampleRate / thdFFTSize

	bin := max(int(math.Round(omegaHz/2/binHz)), thdMinBin)
	bin = min(bin, thdFFTSize/6)
	tone := float64(bin) * binHz

	out, err := signal.NewGenerator(s.sampleRate).Sine(tone, s.thdLevel, 2*thdFFTSize)
	if err != nil {
		return 0, thd.Result{}, err
	}

	f.ProcessInPlace(out)

	res, err := thd.AnalyzeSignal(out[thdFFTSize:], thd.Config{
		SampleRate:    s.sampleRate,
		FFTSize:       thdFFTSize,
		FundamentalHz: tone,
	})

	return tone, res, err
}

func orNaN(v float64, err error) float64 {
	if err != nil {
		return math.NaN()
	}

	return v
}

func printAnalysis(w io.Writer, s settings, rows []row) error {
	if _, err := fmt.Fprintf(w, "model %s, resonance %.4g, %g Hz\n\n", s.model, s.resonance, s.sampleRate); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprint(tw, "Cutoff\tw0 [Hz]\tDC [dB]\t-3dB [Hz]\tAt w0 [dB]\tSlope 1 oct [dB]\tSlope 2 oct [dB]\tPeak [Hz]\tPeak [dB]\tTone [Hz]\tTHD [%]\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprint(tw, "------\t-------\t-------\t---------\t----------\t----------------\t----------------\t---------\t---------\t---------\t-------\n"); err != nil {
		return err
	}

	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%.4f\t%.1f\t%.2f\t%s\t%s\t%s\t%s\t%.1f\t%.2f\t%s\t%s\n",
			r.cutoff,
			r.omegaHz,
			r.dcDB,
			cell("%.1f", r.cornerHz),
			cell("%.2f", r.atCutDB),
			cell("%.2f", r.slope1),
			cell("%.2f", r.slope2),
			r.peakHz,
			r.peakDB,
			cell("%.1f", r.toneHz),
			cell("%.4f", r.thdPct),
		); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func cell(format string, v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	return fmt.Sprintf(format, v)
}
