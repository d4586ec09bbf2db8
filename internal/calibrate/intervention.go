package calibrate

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/lsq"
	"github.com/san-kum/episim/internal/observability"
	"github.com/san-kum/episim/internal/sim"
)

// Objective selects what the intervention fit matches.
type Objective int

const (
	// ObjectiveFinal matches the last observed cumulative death count with a
	// single residual. Many lockdown curves reach the same total, so the
	// result is one point on a ridge of equivalent solutions.
	ObjectiveFinal Objective = iota
	// ObjectiveCurve matches the whole observed series.
	ObjectiveCurve
	// ObjectiveBroadcast compares the final simulated death count with every
	// observed day, one residual per day. Its optimum puts the final count at
	// the mean of the observed series.
	ObjectiveBroadcast
)

func (o Objective) String() string {
	switch o {
	case ObjectiveFinal:
		return "final"
	case ObjectiveCurve:
		return "curve"
	case ObjectiveBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

func ParseObjective(s string) (Objective, bool) {
	switch s {
	case "", "final":
		return ObjectiveFinal, true
	case "curve":
		return ObjectiveCurve, true
	case "broadcast":
		return ObjectiveBroadcast, true
	default:
		return ObjectiveFinal, false
	}
}

const (
	// DefaultInterventionGuess is the starting value of both lockdown
	// parameters.
	DefaultInterventionGuess = 0.2

	stageOptimize = "optimize"
)

var interventionParams = []string{epidemic.NameLockdownA, epidemic.NameLockdownB}

// InterventionOptimizer refits lockdown_a and lockdown_b inside [0, 1] with
// every other parameter held fixed.
type InterventionOptimizer struct {
	Sim       *sim.Simulator
	Solver    lsq.Solver
	Objective Objective
	Log       logging.Logger
	Metrics   *observability.Collector
}

func NewInterventionOptimizer(s *sim.Simulator, solver lsq.Solver) *InterventionOptimizer {
	return &InterventionOptimizer{Sim: s, Solver: solver}
}

// Optimize returns current with the two lockdown fields replaced by their
// fitted values, both in [0, 1].
func (o *InterventionOptimizer) Optimize(ctx context.Context, current epidemic.Params, observed []float64) (epidemic.Params, *lsq.Report, error) {
	if err := o.Sim.ValidateObserved(observed); err != nil {
		return current, nil, err
	}

	ctx, span := observability.StartSpan(ctx, "calibrate.Optimize",
		attribute.String("objective", o.Objective.String()),
	)
	defer span.End()

	dead := make([]float64, len(observed))
	target := observed
	if o.Objective == ObjectiveFinal {
		target = observed[len(observed)-1:]
	}

	prob := &lsq.Problem{
		Names:   interventionParams,
		Initial: []float64{DefaultInterventionGuess, DefaultInterventionGuess},
		Lower:   []float64{0, 0},
		Upper:   []float64{1, 1},
		Target:  target,
		Model: func(v, out []float64) error {
			p := withLockdown(current, v[0], v[1])
			if err := o.Sim.Dead(ctx, p, dead); err != nil {
				return err
			}
			switch o.Objective {
			case ObjectiveFinal:
				out[0] = dead[len(dead)-1]
			case ObjectiveBroadcast:
				for i := range out {
					out[i] = dead[len(dead)-1]
				}
			default:
				copy(out, dead)
			}
			return nil
		},
	}

	res, err := solve(ctx, span, stageOptimize, solverOrDefault(o.Solver), prob, logging.OrNoop(o.Log), o.Metrics)
	if err != nil {
		return current, nil, err
	}

	a, b := clampUnit(res.Params[0]), clampUnit(res.Params[1])
	if math.IsNaN(a) || math.IsNaN(b) {
		return current, nil, fmt.Errorf("%w: solver returned NaN lockdown parameters", ErrFitFailed)
	}
	return withLockdown(current, a, b), res.Report, nil
}

func withLockdown(p epidemic.Params, a, b float64) epidemic.Params {
	p.LockdownA = a
	p.LockdownB = b
	return p
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
