// Package response measures the magnitude response of a sample processor
// from its impulse response.
//
// # Usage
//
//	ir := response.ImpulseResponse(process, 16384)
//	r, err := response.Analyze(ir, 44100, 0)
//	db, _ := r.MagnitudeDB(640)
//	slope, _ := r.SlopeDBPerOctave(2560)
//
// The FFT is zero-padded to a power of two so that bin spacing can be made
// finer than the impulse length alone allows.
package response
