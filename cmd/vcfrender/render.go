package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/bitmark-inc/logger"
	"github.com/tphakala/simd/f64"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-vcf/dsp/filter/ladder"
	"github.com/cwbudde/algo-vcf/dsp/signal"
	"github.com/cwbudde/algo-vcf/internal/config"
	"github.com/cwbudde/algo-vcf/internal/wavio"
	"github.com/cwbudde/algo-vcf/measure/levels"
)

func runRender(c *cli.Context) error {
	outName := c.String("out")
	if outName == "" {
		return errors.New("missing --out file")
	}

	cfg := config.Default()
	if fileName := c.String("config"); fileName != "" {
		var err error
		if cfg, err = config.Load(fileName); err != nil {
			return fmt.Errorf("failed to read configuration from: %q  error: %w", fileName, err)
		}
	}

	if c.IsSet("model") {
		cfg.Model = c.String("model")
	}

	if c.IsSet("seed") {
		cfg.Seed = int64(c.Int("seed"))
	}

	if c.IsSet("duration") {
		cfg.Duration = c.Float64("duration")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Logging.Directory, 0o755); err != nil {
		return err
	}

	if err := logger.Initialise(cfg.Logging); err != nil {
		return fmt.Errorf("logger setup failed with error: %w", err)
	}
	defer logger.Finalise()

	log := logger.New("render")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("configuration: %#v", cfg)

	var input *wavio.Audio
	if inName := c.String("in"); inName != "" {
		var err error
		if input, err = wavio.Read(inName); err != nil {
			log.Criticalf("read input %q error: %s", inName, err)
			return err
		}

		log.Infof("input: %q %d Hz, %d channels, %d-bit, %d frames",
			inName, input.SampleRate, len(input.Channels), input.BitDepth, input.Frames())
	}

	out, err := render(cfg, input, log)
	if err != nil {
		log.Criticalf("render error: %s", err)
		return err
	}

	if err := wavio.Write(outName, out); err != nil {
		log.Criticalf("write output %q error: %s", outName, err)
		return err
	}

	log.Infof("wrote %q: %d frames", outName, out.Frames())
	fmt.Fprintf(c.App.Writer, "wrote %s (%d channels, %d frames)\n", outName, len(out.Channels), out.Frames())

	return nil
}

// render filters input, or seeded noise when input is nil, with one ladder
// per channel. Channels are processed concurrently.
func render(cfg *config.Configuration, input *wavio.Audio, log *logger.L) (*wavio.Audio, error) {
	sampleRate := cfg.SampleRate

	var channels [][]float64

	if input != nil {
		sampleRate = float64(input.SampleRate)
		channels = input.Channels
	} else {
		var err error
		if channels, err = noise(cfg); err != nil {
			return nil, err
		}
	}

	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, errors.New("nothing to render")
	}

	n := len(channels[0])

	resonance, err := automation(cfg.Resonance, sampleRate, n)
	if err != nil {
		return nil, fmt.Errorf("resonance automation: %w", err)
	}

	cutoff, err := automation(cfg.Cutoff, sampleRate, n)
	if err != nil {
		return nil, fmt.Errorf("cutoff automation: %w", err)
	}

	model := cfg.ParsedModel()
	log.Infof("model: %s, %g Hz, %d channels, %d frames", model, sampleRate, len(channels), n)

	out := make([][]float64, len(channels))

	var g errgroup.Group
	for ch, src := range channels {
		g.Go(func() error {
			f, err := ladder.New(sampleRate, ladder.WithModel(model))
			if err != nil {
				return fmt.Errorf("channel %d: %w", ch, err)
			}

			dst := make([]float64, len(src))
			f.ProcessTo(dst, src, resonance, cutoff)
			out[ch] = dst

			log.Debugf("channel %d: done", ch)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats, err := applyGain(out, cfg.Output)
	if err != nil {
		return nil, err
	}

	for ch, s := range stats {
		log.Infof("channel %d: peak %.2f dBFS, rms %.2f dBFS, crest %.2f dB, dc %.3g",
			ch, s.Peak_dB, s.RMS_dB, s.CrestFactor_dB, s.DC)

		if s.Clipped > 0 {
			log.Warnf("channel %d: %d samples at or beyond full scale", ch, s.Clipped)
		}
	}

	return &wavio.Audio{
		SampleRate: int(math.Round(sampleRate)),
		BitDepth:   cfg.Output.BitDepth,
		Channels:   out,
	}, nil
}

func noise(cfg *config.Configuration) ([][]float64, error) {
	gen := signal.NewGenerator(cfg.SampleRate, signal.WithSeed(cfg.Seed))

	channels := make([][]float64, cfg.Channels)
	for ch := range channels {
		samples, err := gen.WhiteNoise(cfg.NoiseAmplitude, cfg.Samples())
		if err != nil {
			return nil, err
		}

		channels[ch] = samples
	}

	return channels, nil
}

// applyGain scales every channel by o.Gain, or to a common peak of o.Gain
// when o.Normalize is set, and returns the resulting statistics.
func applyGain(channels [][]float64, o config.Output) ([]levels.Stats, error) {
	if o.Normalize {
		if _, err := signal.Normalize(o.Gain, channels...); err != nil {
			return nil, err
		}
	} else if o.Gain != 1 {
		for _, ch := range channels {
			f64.Scale(ch, ch, o.Gain)
		}
	}

	stats := make([]levels.Stats, len(channels))
	for i, ch := range channels {
		stats[i] = levels.Calculate(ch)
	}

	return stats, nil
}
