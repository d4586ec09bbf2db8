package integrators

import (
	"context"

	"github.com/san-kum/episim/internal/dynamo"
)

// Euler is the explicit first-order method. It exists as a cheap baseline
// for comparing against RK4 and RK45.
type Euler struct {
	Substeps int
}

func NewEuler(substeps int) *Euler {
	return &Euler{Substeps: substeps}
}

func (e *Euler) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, args []float64) ([]dynamo.State, error) {
	dx := make(dynamo.State, len(x0))
	step := func(sys dynamo.System, x dynamo.State, args []float64, t, dt float64, out dynamo.State) {
		sys.Derive(dx, x, args, t)
		for i := range x {
			out[i] = x[i] + dt*dx[i]
		}
	}
	return integrateFixed(ctx, step, e.Substeps, sys, x0, grid, args)
}
