package ladder

import (
	"errors"
	"fmt"
	"math"
)

// Vec4 is a four-element vector, one entry per ladder stage.
type Vec4 [4]float64

// Mat4 is a row-major 4x4 matrix.
type Mat4 [4][4]float64

// ErrNotLadder is returned by InvertLadder for matrices outside the
// banded-plus-corner pattern.
var ErrNotLadder = errors.New("ladder: matrix is not banded-plus-corner")

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// MulVec returns m·v.
func (m *Mat4) MulVec(v Vec4) Vec4 {
	var out Vec4
	for i := range out {
		row := &m[i]
		out[i] = row[0]*v[0] + row[1]*v[1] + row[2]*v[2] + row[3]*v[3]
	}

	return out
}

// Mul returns m·n.
func (m *Mat4) Mul(n *Mat4) Mat4 {
	var out Mat4
	for i := range 4 {
		for j := range 4 {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j] + m[i][3]*n[3][j]
		}
	}

	return out
}

// Add returns v+w.
func (v Vec4) Add(w Vec4) Vec4 {
	return Vec4{v[0] + w[0], v[1] + w[1], v[2] + w[2], v[3] + w[3]}
}

// IsFinite reports whether every entry of v is finite.
func (v Vec4) IsFinite() bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}

	return true
}

// SystemMatrix builds Im = I - kA/2 for normalized frequency wk and feedback
// coefficient f.
func SystemMatrix(wk, f float64) Mat4 {
	d := 1 + 0.5*wk
	e := -0.5 * wk

	return Mat4{
		{d, 0, 0, 2 * f * wk},
		{e, d, 0, 0},
		{0, e, d, 0},
		{0, 0, e, d},
	}
}

// PropagationMatrix builds I + kA/2, which equals 2I - Im.
func PropagationMatrix(wk, f float64) Mat4 {
	a := 1 - 0.5*wk
	b := 0.5 * wk

	return Mat4{
		{a, 0, 0, -2 * f * wk},
		{b, a, 0, 0},
		{0, b, a, 0},
		{0, 0, b, a},
	}
}

// Propagate returns (I + kA/2)·x without forming the matrix.
func Propagate(wk, f float64, x Vec4) Vec4 {
	a := 1 - 0.5*wk
	b := 0.5 * wk

	return Vec4{
		a*x[0] - 2*f*wk*x[3],
		b*x[0] + a*x[1],
		b*x[1] + a*x[2],
		b*x[2] + a*x[3],
	}
}

// Inject returns k·(I + kA/2)·B·u scaled by gain. The input only drives the
// first stage, so the last two entries are always zero.
func Inject(wk, u, gain float64) Vec4 {
	half := 0.5 * wk * wk

	return Vec4{u * (wk - half) * gain, u * half * gain, 0, 0}
}

// LadderDeterminant returns det(SystemMatrix(wk, f)).
func LadderDeterminant(wk, f float64) float64 {
	d := 1 + 0.5*wk
	d2 := d * d
	wk2 := wk * wk

	return d2*d2 + 0.25*f*wk2*wk2
}

// InvertLadder inverts a banded-plus-corner matrix: equal diagonal, equal
// sub-diagonal, one entry at row 0 column 3 and zeros elsewhere.
func InvertLadder(m Mat4) (Mat4, error) {
	d := m[0][0]
	e := m[1][0]

	for i := range 4 {
		for j := range 4 {
			var want float64

			switch {
			case i == j:
				want = d
			case i == j+1:
				want = e
			case i == 0 && j == 3:
				continue
			}

			if m[i][j] != want {
				return Mat4{}, fmt.Errorf("%w: entry (%d,%d) = %g", ErrNotLadder, i, j, m[i][j])
			}
		}
	}

	c := m[0][3]

	det := d*d*d*d - c*e*e*e
	if det == 0 || !isFinite(det) {
		return Mat4{}, fmt.Errorf("ladder: matrix is singular: det = %g", det)
	}

	return cofactorInverse(d, e, c, 1/det), nil
}

// invertLadder is InvertLadder without the pattern check, for matrices
// built by SystemMatrix.
func invertLadder(m *Mat4) Mat4 {
	d, e, c := m[0][0], m[1][0], m[0][3]
	dd := d * d

	return cofactorInverse(d, e, c, 1/(dd*dd-c*e*e*e))
}

// cofactorInverse writes out adj(Im)/det(Im) for diagonal d, sub-diagonal e,
// corner c and reciprocal determinant invDet. The corner closes a 4-cycle,
// so det = d^4 - c·e^3.
func cofactorInverse(d, e, c, invDet float64) Mat4 {
	dd := d * d
	ee := e * e

	return Mat4{
		{invDet * d * dd, -invDet * c * ee, invDet * c * d * e, -invDet * c * dd},
		{-invDet * e * dd, invDet * d * dd, -invDet * c * e * e, invDet * c * e * d},
		{invDet * ee * d, -invDet * d * e * d, invDet * d * dd, -invDet * c * ee},
		{-invDet * e * ee, invDet * d * ee, -invDet * dd * e, invDet * d * dd},
	}
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
