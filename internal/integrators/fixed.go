package integrators

import (
	"context"

	"github.com/san-kum/episim/internal/dynamo"
)

type stepFunc func(sys dynamo.System, x dynamo.State, args []float64, t, dt float64, out dynamo.State)

// integrateFixed advances x0 across grid with substeps equal steps per
// grid interval.
func integrateFixed(ctx context.Context, step stepFunc, substeps int, sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, args []float64) ([]dynamo.State, error) {
	if err := checkInputs(sys, x0, grid); err != nil {
		return nil, err
	}
	if substeps < 1 {
		substeps = 1
	}

	out := make([]dynamo.State, grid.Len())
	out[0] = x0.Clone()

	x := x0.Clone()
	next := make(dynamo.State, len(x0))

	for i := 1; i < grid.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, dynamo.Canceled(ctx.Err())
		default:
		}

		t0 := grid.At(i - 1)
		h := (grid.At(i) - t0) / float64(substeps)
		for s := 0; s < substeps; s++ {
			step(sys, x, args, t0+float64(s)*h, h, next)
			x, next = next, x
		}

		if !x.IsValid() {
			return nil, &dynamo.SimulationError{Step: i, Time: grid.At(i), State: x.Clone(), Wrapped: dynamo.Diverged(dynamo.ErrInvalidState)}
		}
		out[i] = x.Clone()
	}

	return out, nil
}

func checkInputs(sys dynamo.System, x0 dynamo.State, grid dynamo.Grid) error {
	if len(x0) != sys.StateDim() {
		return &dynamo.SimulationError{Wrapped: dynamo.ErrDimensionMismatch, State: x0.Clone()}
	}
	if grid.Len() == 0 {
		return dynamo.ErrInvalidGrid
	}
	if !x0.IsValid() {
		return &dynamo.SimulationError{Wrapped: dynamo.ErrInvalidState, State: x0.Clone()}
	}
	return nil
}
