package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/cwbudde/algo-vcf/dsp/filter/ladder"
	"github.com/cwbudde/algo-vcf/dsp/signal"
)

func runDump(c *cli.Context) error {
	model, err := ladder.ParseModel(c.String("model"))
	if err != nil {
		return err
	}

	samples := c.Int("samples")

	impulse, err := signal.Impulse(samples)
	if err != nil {
		return err
	}

	f, err := ladder.New(c.Float64("rate"),
		ladder.WithModel(model),
		ladder.WithResonance(c.Float64("resonance")),
		ladder.WithCutoff(c.Float64("cutoff")),
	)
	if err != nil {
		return err
	}

	w := c.App.Writer
	verbose := c.Bool("verbose")

	for i, x := range impulse {
		y := f.Process(x)
		if verbose {
			fmt.Fprintf(w, "y[%d] = %.9g\n", i, y)
		}
	}

	fmt.Fprintf(w, "model      %s\n", model)
	fmt.Fprintf(w, "sample     %d\n", samples-1)

	return f.Dump(w)
}
