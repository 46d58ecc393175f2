package ladder_test

import (
	"fmt"

	"github.com/cwbudde/algo-vcf/dsp/filter/ladder"
)

func ExampleNew() {
	f, err := ladder.New(44100,
		ladder.WithModel(ladder.ModelLinear),
		ladder.WithResonance(0.5),
		ladder.WithCutoff(0.5),
	)
	if err != nil {
		panic(err)
	}

	var y float64
	for range 20000 {
		y = f.Process(1)
	}

	// A settled step input is scaled by 1/(1+4r).
	fmt.Printf("%.3f\n", y)

	// Output:
	// 0.333
}

func ExampleFilter_ProcessTo() {
	f, err := ladder.New(48000, ladder.WithModel(ladder.ModelNonlinear))
	if err != nil {
		panic(err)
	}

	in := []float64{1, 0, 0, 0}
	resonance := []float64{0.2, 0.4, 0.6, 0.8}
	cutoff := []float64{1, 1, 0.5, 0.5}
	out := make([]float64, len(in))

	f.ProcessTo(out, in, resonance, cutoff)
	fmt.Println(len(out), f.Snapshot().Resonance)

	// Output:
	// 4 0.8
}
