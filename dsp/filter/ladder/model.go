package ladder

import (
	"fmt"
	"math"
	"strings"
)

// Model selects how the per-sample solve is parameterized.
type Model int

const (
	// ModelLinear is the linear ladder: feedback r, unit input gain and the
	// raw state in the propagation term.
	ModelLinear Model = iota
	// ModelNonlinear applies the tanh companding linearization.
	ModelNonlinear
	// ModelNonlinearLightweight is ModelNonlinear with a rational tanh
	// approximation for lower CPU use.
	ModelNonlinearLightweight
)

func (m Model) String() string {
	switch m {
	case ModelLinear:
		return "linear"
	case ModelNonlinear:
		return "nonlinear"
	case ModelNonlinearLightweight:
		return "nonlinear_lightweight"
	default:
		return "unknown"
	}
}

// ParseModel returns the Model named by s, as printed by Model.String.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return ModelLinear, nil
	case "nonlinear":
		return ModelNonlinear, nil
	case "nonlinear_lightweight", "nonlinear-lightweight", "lightweight":
		return ModelNonlinearLightweight, nil
	default:
		return 0, fmt.Errorf("ladder: unknown model: %q", s)
	}
}

func validModel(m Model) bool {
	return m >= ModelLinear && m <= ModelNonlinearLightweight
}

// Coefficients are the substitutions a model makes into the shared solve.
type Coefficients struct {
	// Feedback replaces r in the corner terms of Im and I + kA/2.
	Feedback float64
	// Gain scales the input injection.
	Gain float64
	// State is the vector carried through I + kA/2.
	State Vec4
}

// strategy computes Coefficients for one sample from the input u, clamped
// resonance r and previous state x.
type strategy interface {
	coefficients(u, r float64, x Vec4) Coefficients
}

type linearStrategy struct{}

func (linearStrategy) coefficients(_, r float64, x Vec4) Coefficients {
	return Coefficients{Feedback: r, Gain: 1, State: x}
}

// gainDenominatorFloor guards the companding gain when both tanh(u) and
// tanh(r·x3) saturate to the same sign.
const gainDenominatorFloor = 1e-12

type nonlinearStrategy struct {
	tanh func(float64) float64
}

func (s nonlinearStrategy) coefficients(u, r float64, x Vec4) Coefficients {
	tanhU := s.tanh(u)

	mu := 1.0
	if u != 0 {
		mu = tanhU / u
	}

	rho := r
	if x[3] != 0 {
		if t := s.tanh(x[3]); t != 0 {
			rho = s.tanh(4*r*x[3]) / (4 * t)
		}
	}

	tanhRX3 := s.tanh(r * x[3])

	gain := mu
	if den := 1 - tanhU*tanhRX3; math.Abs(den) > gainDenominatorFloor {
		gain = mu * (1 - tanhRX3*tanhRX3) / den
	}

	return Coefficients{
		Feedback: rho,
		Gain:     gain,
		State:    Vec4{s.tanh(x[0]), s.tanh(x[1]), s.tanh(x[2]), s.tanh(x[3])},
	}
}

func strategyFor(m Model) strategy {
	switch m {
	case ModelNonlinear:
		return nonlinearStrategy{tanh: math.Tanh}
	case ModelNonlinearLightweight:
		return nonlinearStrategy{tanh: fastTanhApprox}
	default:
		return linearStrategy{}
	}
}

// fastTanhApprox is a rational approximation of tanh, exact in the limit
// and clipped to ±1 beyond |x| = 3.
func fastTanhApprox(x float64) float64 {
	if x > 3 {
		return 1
	}

	if x < -3 {
		return -1
	}

	x2 := x * x

	return clamp(x*(27+x2)/(27+9*x2), -1, 1)
}
