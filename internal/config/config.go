// Package config reads vcfrender render settings from a Lua file.
//
// The file is a Lua chunk returning a table:
//
//	local M = {}
//	M.sample_rate = 48000
//	M.model = "nonlinear"
//	M.duration = 4
//	M.cutoff = { from = 0.2, to = 0.9, lfo_hz = 0.5, depth = 0.1 }
//	M.output = { bit_depth = 24, gain = 0.8 }
//	return M
//
// Missing keys keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"math"
	"path"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/cwbudde/algo-vcf/dsp/filter/ladder"
)

const (
	defaultSampleRate     = 44100
	defaultDuration       = 2
	defaultNoiseAmplitude = 0.25
	defaultBitDepth       = 16

	defaultLogDirectory = "log"
	defaultLogFile      = "vcfrender.log"
	defaultLogCount     = 10
	defaultLogSize      = 1024 * 1024

	// bitmark logger rejects smaller values
	minLogSize  = 20000
	minLogCount = 10

	maxChannels = 8
	maxLFODepth = 0.5
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Automation describes a side-chain curve: a linear ramp from From to To
// over the render, plus an optional sine of LFOHz and Depth around it.
type Automation struct {
	From  float64 `gluamapper:"from" json:"from"`
	To    float64 `gluamapper:"to" json:"to"`
	LFOHz float64 `gluamapper:"lfo_hz" json:"lfo_hz"`
	Depth float64 `gluamapper:"depth" json:"depth"`
}

// Output controls the written file.
type Output struct {
	BitDepth  int     `gluamapper:"bit_depth" json:"bit_depth"`
	Gain      float64 `gluamapper:"gain" json:"gain"`
	Normalize bool    `gluamapper:"normalize" json:"normalize"`
}

// Configuration holds one render job.
type Configuration struct {
	SampleRate     float64              `gluamapper:"sample_rate" json:"sample_rate"`
	Model          string               `gluamapper:"model" json:"model"`
	Duration       float64              `gluamapper:"duration" json:"duration"`
	Channels       int                  `gluamapper:"channels" json:"channels"`
	Seed           int64                `gluamapper:"seed" json:"seed"`
	NoiseAmplitude float64              `gluamapper:"noise_amplitude" json:"noise_amplitude"`
	Resonance      Automation           `gluamapper:"resonance" json:"resonance"`
	Cutoff         Automation           `gluamapper:"cutoff" json:"cutoff"`
	Output         Output               `gluamapper:"output" json:"output"`
	Logging        logger.Configuration `gluamapper:"logging" json:"logging"`
}

// Default returns the settings used for keys a file leaves out.
func Default() *Configuration {
	return &Configuration{
		SampleRate:     defaultSampleRate,
		Model:          ladder.ModelLinear.String(),
		Duration:       defaultDuration,
		Channels:       1,
		Seed:           1,
		NoiseAmplitude: defaultNoiseAmplitude,
		Resonance:      Automation{From: 0.5, To: 0.5},
		Cutoff:         Automation{From: 0.7, To: 0.7},
		Output: Output{
			BitDepth: defaultBitDepth,
			Gain:     1,
		},
		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels: map[string]string{
				logger.DefaultTag: "info",
			},
		},
	}
}

// Load reads fileName over Default, makes the log directory absolute
// relative to the file and validates the result.
func Load(fileName string) (*Configuration, error) {
	fileName, err := filepath.Abs(filepath.Clean(fileName))
	if err != nil {
		return nil, err
	}

	options := Default()
	if err := ParseFile(fileName, options); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(options.Logging.Directory) {
		options.Logging.Directory = filepath.Join(filepath.Dir(fileName), options.Logging.Directory)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	return options, nil
}

// Validate checks every field and returns the first problem found.
func (c *Configuration) Validate() error {
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("%w: sample_rate must be > 0: %v", ErrInvalid, c.SampleRate)
	}

	if _, err := ladder.ParseModel(c.Model); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration must be > 0: %v", ErrInvalid, c.Duration)
	}

	if c.Channels < 1 || c.Channels > maxChannels {
		return fmt.Errorf("%w: channels must be in [1, %d]: %d", ErrInvalid, maxChannels, c.Channels)
	}

	if !inRange(c.NoiseAmplitude, 0, 1) {
		return fmt.Errorf("%w: noise_amplitude must be in [0, 1]: %v", ErrInvalid, c.NoiseAmplitude)
	}

	if err := c.Resonance.validate("resonance"); err != nil {
		return err
	}

	if err := c.Cutoff.validate("cutoff"); err != nil {
		return err
	}

	switch c.Output.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: output.bit_depth must be 16, 24 or 32: %d", ErrInvalid, c.Output.BitDepth)
	}

	if !(c.Output.Gain > 0) || math.IsInf(c.Output.Gain, 0) {
		return fmt.Errorf("%w: output.gain must be > 0: %v", ErrInvalid, c.Output.Gain)
	}

	return validateLogging(&c.Logging)
}

func validateLogging(l *logger.Configuration) error {
	if l.Directory == "" {
		return fmt.Errorf("%w: logging.directory must not be empty", ErrInvalid)
	}

	if l.File == "" || path.Base(l.File) != l.File {
		return fmt.Errorf("%w: logging.file must be a plain file name: %q", ErrInvalid, l.File)
	}

	if l.Size < minLogSize {
		return fmt.Errorf("%w: logging.size must be >= %d: %d", ErrInvalid, minLogSize, l.Size)
	}

	if l.Count < minLogCount {
		return fmt.Errorf("%w: logging.count must be >= %d: %d", ErrInvalid, minLogCount, l.Count)
	}

	return nil
}

// ParsedModel returns Model as a ladder.Model. Call Validate first.
func (c *Configuration) ParsedModel() ladder.Model {
	m, _ := ladder.ParseModel(c.Model)
	return m
}

// Samples returns the render length in samples.
func (c *Configuration) Samples() int {
	return int(math.Round(c.Duration * c.SampleRate))
}

func (a Automation) validate(name string) error {
	if !inRange(a.From, 0, 1) || !inRange(a.To, 0, 1) {
		return fmt.Errorf("%w: %s.from and %s.to must be in [0, 1]: %v, %v", ErrInvalid, name, name, a.From, a.To)
	}

	if !(a.LFOHz >= 0) || math.IsInf(a.LFOHz, 0) {
		return fmt.Errorf("%w: %s.lfo_hz must be >= 0: %v", ErrInvalid, name, a.LFOHz)
	}

	if !inRange(a.Depth, 0, maxLFODepth) {
		return fmt.Errorf("%w: %s.depth must be in [0, %g]: %v", ErrInvalid, name, maxLFODepth, a.Depth)
	}

	return nil
}

func inRange(x, lo, hi float64) bool {
	return x >= lo && x <= hi
}
