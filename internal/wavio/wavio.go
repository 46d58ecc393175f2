// Package wavio converts between PCM WAV files and planar float64 channels
// in [-1, 1].
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcmFormat = 1

// ErrInvalidFile is returned when the input is not a readable PCM WAV file.
var ErrInvalidFile = errors.New("wavio: invalid WAV file")

// Audio holds planar samples. Every channel has the same length.
type Audio struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float64
}

// Frames returns the number of samples per channel.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}

	return len(a.Channels[0])
}

// Read decodes the WAV file at path.
func Read(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: open input: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a complete PCM WAV stream.
func Decode(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: read samples: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)

	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFile, channels)
	}

	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	frames := len(buf.Data) / channels
	out := &Audio{
		SampleRate: int(dec.SampleRate),
		BitDepth:   bitDepth,
		Channels:   make([][]float64, channels),
	}

	inv := 1 / scale
	for ch := range out.Channels {
		samples := make([]float64, frames)
		for i := range samples {
			samples[i] = float64(buf.Data[i*channels+ch]) * inv
		}

		out.Channels[ch] = samples
	}

	return out, nil
}

// Write encodes a to path, replacing any existing file.
func Write(path string, a *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create output: %w", err)
	}

	if err := Encode(f, a); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// Encode writes a as integer PCM. Samples are clipped to [-1, 1].
func Encode(w io.WriteSeeker, a *Audio) error {
	if err := a.validate(); err != nil {
		return err
	}

	scale, err := fullScale(a.BitDepth)
	if err != nil {
		return err
	}

	channels := len(a.Channels)
	frames := a.Frames()

	data := make([]int, frames*channels)
	for ch, samples := range a.Channels {
		for i, v := range samples {
			data[i*channels+ch] = int(math.Round(clip(v) * scale))
		}
	}

	enc := wav.NewEncoder(w, a.SampleRate, a.BitDepth, channels, pcmFormat)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: a.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: write samples: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: finalize: %w", err)
	}

	return nil
}

func (a *Audio) validate() error {
	if a == nil || len(a.Channels) == 0 {
		return errors.New("wavio: no channels to write")
	}

	if a.SampleRate <= 0 {
		return fmt.Errorf("wavio: sample rate must be > 0: %d", a.SampleRate)
	}

	frames := a.Frames()
	for ch, samples := range a.Channels {
		if len(samples) != frames {
			return fmt.Errorf("wavio: channel %d has %d samples, want %d", ch, len(samples), frames)
		}
	}

	return nil
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float64(int64(1)<<(bitDepth-1) - 1), nil
	default:
		return 0, fmt.Errorf("wavio: unsupported bit depth: %d", bitDepth)
	}
}

func clip(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
