package ladder

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Dump writes the most recent update in human-readable form: parameters,
// model coefficients, the state before and after, the propagation and
// injection vectors, and both matrices. It does not modify the filter.
func (f *Filter) Dump(w io.Writer) error {
	s := f.Snapshot()

	return s.Dump(w)
}

// Dump writes s in human-readable form.
func (s *Step) Dump(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("input      %.9g\n", s.Input)
	ew.printf("resonance  %.9g\n", s.Resonance)
	ew.printf("w0         %.9g rad/s (%.3f Hz)\n", s.Omega, OmegaHz(s.Omega))
	ew.printf("w0*k       %.9g\n", s.NormFreq)
	ew.printf("feedback   %.9g\n", s.Coefficients.Feedback)
	ew.printf("gain       %.9g\n", s.Coefficients.Gain)
	ew.printf("output     %.9g\n\n", s.Output())

	ew.vector("x (previous)", s.Previous)
	ew.vector("state (propagated)", s.Coefficients.State)
	ew.vector("(I+kA/2)x", s.Propagation)
	ew.vector("k(I+kA/2)Bu", s.Injection)
	ew.vector("x (next)", s.Next)
	ew.printf("\n")

	ew.matrix("I-kA/2", s.System)
	ew.matrix("inv(I-kA/2)", s.Inverse)

	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) vector(name string, v Vec4) {
	ew.printf("%-20s [% .9g % .9g % .9g % .9g]\n", name, v[0], v[1], v[2], v[3])
}

func (ew *errWriter) matrix(name string, m Mat4) {
	ew.printf("%s =\n", name)
	ew.printf("%.9g\n\n", mat.Formatted(dense(m), mat.Prefix(""), mat.Squeeze()))
}

// dense copies m into a gonum matrix.
func dense(m Mat4) *mat.Dense {
	data := make([]float64, 0, 16)
	for i := range m {
		data = append(data, m[i][:]...)
	}

	return mat.NewDense(4, 4, data)
}
