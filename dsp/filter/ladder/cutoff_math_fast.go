//go:build fastmath

package ladder

import (
	"github.com/meko-christian/algo-approx"
)

const ln2 = 0.693147180559945309417232121458

// exp2 computes 2^x as e^(x·ln2) with the fast exponential approximation.
func exp2(x float64) float64 {
	return approx.FastExp(x * ln2)
}
