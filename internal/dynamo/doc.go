// Package dynamo provides the numerical primitives shared by the outbreak
// simulator and its calibration pipeline.
//
// The package defines the contracts between a model and the numerical
// machinery that drives it:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, args, t))
//   - [Grid]: immutable, strictly increasing sample times
//   - [Integrator]: drives a [System] across a [Grid]
//
// # Example
//
//	grid, _ := dynamo.DailyGrid(50)
//	integ := integrators.NewRK45()
//	states, err := integ.Integrate(ctx, sys, x0, grid, args)
//
// # Thread Safety
//
// States and grids are plain values. Integrators allocate their scratch
// space per call and may be shared; System implementations used here are
// immutable once constructed.
package dynamo
