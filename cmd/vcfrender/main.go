// Command vcfrender renders audio through the ladder filter with
// resonance and cutoff automation, and dumps the per-sample solve.
//
// Usage:
//
//	vcfrender render --config render.lua [--in in.wav] --out out.wav
//	vcfrender dump --model nonlinear --resonance 0.9 --cutoff 0.4 --samples 8
package main

import (
	"os"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/urfave/cli"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero"

func main() {
	defer exitwithstatus.Handler()

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		exitwithstatus.Message("%s: terminated with error: %s", app.Name, err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "vcfrender"
	app.Usage = "render audio through a four-stage ladder filter"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Commands = []cli.Command{
		{
			Name:      "render",
			Usage:     "filter a WAV file, or generated noise, into a WAV file",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Value: "",
					Usage: " Lua render configuration `FILE`",
				},
				cli.StringFlag{
					Name:  "in, i",
					Value: "",
					Usage: " input WAV `FILE`, noise is rendered when empty",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "",
					Usage: "*output WAV `FILE`",
				},
				cli.StringFlag{
					Name:  "model, m",
					Value: "",
					Usage: " override the model `NAME` [linear|nonlinear|nonlinear_lightweight]",
				},
				cli.IntFlag{
					Name:  "seed, s",
					Value: 0,
					Usage: " override the noise `SEED`",
				},
				cli.Float64Flag{
					Name:  "duration, d",
					Value: 0,
					Usage: " override the noise duration in `SECONDS`",
				},
			},
			Action: runRender,
		},
		{
			Name:      "dump",
			Usage:     "drive the filter with an impulse and print the last update",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "model, m",
					Value: "linear",
					Usage: " model `NAME` [linear|nonlinear|nonlinear_lightweight]",
				},
				cli.Float64Flag{
					Name:  "resonance, r",
					Value: 0.5,
					Usage: " resonance `VALUE` in [0, 1]",
				},
				cli.Float64Flag{
					Name:  "cutoff, f",
					Value: 0.7,
					Usage: " normalized cutoff `VALUE` in [0, 1]",
				},
				cli.Float64Flag{
					Name:  "rate",
					Value: 44100,
					Usage: " sample rate in `HZ`",
				},
				cli.IntFlag{
					Name:  "samples, n",
					Value: 1,
					Usage: " number of samples to run `COUNT`",
				},
				cli.BoolFlag{
					Name:  "verbose, v",
					Usage: " print every output sample",
				},
			},
			Action: runDump,
		},
	}

	return app
}
