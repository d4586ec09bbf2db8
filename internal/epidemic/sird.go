package epidemic

import "github.com/san-kum/episim/internal/dynamo"

// Form selects how the susceptible outflow is written.
type Form int

const (
	// FormPublished uses (lockdown - slipthrough) for dS/dt and
	// (1 + slipthrough - lockdown) for dI/dt. The two only balance when
	// lockdown(t) - slipthrough = 1/2, so the total population drifts for
	// most parameter sets. Existing calibrations were produced with it.
	FormPublished Form = iota
	// FormBalanced uses the dI/dt force of infection for both compartments,
	// which keeps S+I+R+D constant for every parameter set.
	FormBalanced
)

func (f Form) String() string {
	switch f {
	case FormPublished:
		return "published"
	case FormBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

func ParseForm(s string) (Form, bool) {
	switch s {
	case "", "published":
		return FormPublished, true
	case "balanced":
		return FormBalanced, true
	default:
		return FormPublished, false
	}
}

// SIRD is the compartmental derivative. The state is (S, I, R, D) and args
// is a parameter vector laid out as Params.Vector.
type SIRD struct {
	N    float64
	Form Form
}

func NewSIRD(n float64, form Form) *SIRD {
	return &SIRD{N: n, Form: form}
}

func (m *SIRD) StateDim() int { return NumCompartments }

func (m *SIRD) Derive(dx, x dynamo.State, args []float64, t float64) {
	s, i := x[0], x[1]

	beta := TransmissionRate(args[IdxBetaA], args[IdxBetaB], args[IdxBetaK], t)
	lockdown := InterventionIntensity(args[IdxLockdownA], args[IdxLockdownB], t)
	slip := args[IdxSlipthrough]
	gamma := args[IdxGamma]
	rho := args[IdxRho]

	contact := beta * s * i / m.N
	infection := contact * (1 + slip - lockdown)
	removal := gamma * i

	if m.Form == FormBalanced {
		dx[0] = -infection
	} else {
		dx[0] = -contact * (lockdown - slip)
	}
	dx[1] = infection - removal
	dx[2] = (1 - rho) * removal
	dx[3] = rho * removal
}
