// Package ladder provides a four-stage ladder voltage-controlled low-pass
// filter solved per sample with an implicit trapezoidal rule.
//
// The continuous-time model is x' = A·x + B·u with
//
//	      [ -1   0   0  -4r ]          [ 1 ]
//	A = w0[  1  -1   0   0  ]    B = w0[ 0 ]
//	      [  0   1  -1   0  ]          [ 0 ]
//	      [  0   0   1  -1  ]          [ 0 ]
//
// four cascaded one-pole stages with global feedback of gain 4r from the
// last stage into the first. With time step k and wk = w0·k the update is
//
//	x[n+1] = (I - kA/2)^-1 · ((I + kA/2)·x[n] + k·(I + kA/2)·B·u[n])
//
// The system matrix Im = I - kA/2 is lower bidiagonal plus one corner entry
// (row 0, column 3):
//
//	[ 1+wk/2      0        0      2r·wk  ]
//	[ -wk/2    1+wk/2      0        0    ]
//	[   0      -wk/2    1+wk/2      0    ]
//	[   0        0      -wk/2    1+wk/2  ]
//
// Its determinant is (1+wk/2)^4 + r·wk^4/4, and every cofactor is a product
// of at most three nonzero entries, so the inverse is written out in closed
// form instead of running a general elimination. Both matrices change with
// every sample when resonance or cutoff are modulated, so nothing is cached.
//
// Supported models:
//   - ModelLinear: the plain linear ladder.
//   - ModelNonlinear: a per-sample companding linearization of a tanh
//     saturating ladder. The input gain mu = tanh(u)/u, the feedback
//     coefficient rho = tanh(4r·x3)/(4·tanh(x3)) and the saturated state
//     tanh(x) replace their linear counterparts in the same solve.
//   - ModelNonlinearLightweight: ModelNonlinear with a rational tanh
//     approximation.
//
// A Filter is stateful and must be driven in sample order. Distinct Filter
// values share nothing and may run on separate goroutines.
package ladder
