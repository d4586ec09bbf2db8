package integrators

import (
	"context"

	"github.com/san-kum/episim/internal/dynamo"
)

// RK4 is the classic fixed-step fourth-order Runge-Kutta method, taking
// Substeps equal steps between consecutive grid points.
type RK4 struct {
	Substeps int
}

func NewRK4(substeps int) *RK4 {
	return &RK4{Substeps: substeps}
}

type rk4Workspace struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func newRK4Workspace(n int) *rk4Workspace {
	return &rk4Workspace{
		k1:      make(dynamo.State, n),
		k2:      make(dynamo.State, n),
		k3:      make(dynamo.State, n),
		k4:      make(dynamo.State, n),
		scratch: make(dynamo.State, n),
	}
}

func (r *rk4Workspace) step(sys dynamo.System, x dynamo.State, args []float64, t, dt float64, out dynamo.State) {
	n := len(x)

	sys.Derive(r.k1, x, args, t)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	sys.Derive(r.k2, r.scratch, args, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	sys.Derive(r.k3, r.scratch, args, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	sys.Derive(r.k4, r.scratch, args, t+dt)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		out[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
}

func (r *RK4) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, args []float64) ([]dynamo.State, error) {
	ws := newRK4Workspace(len(x0))
	return integrateFixed(ctx, ws.step, r.Substeps, sys, x0, grid, args)
}
