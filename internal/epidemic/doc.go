// Package epidemic defines the SIRD outbreak model: its time-varying rate
// curves, the eight named parameters, the derivative function handed to an
// integrator and the trajectories it produces.
package epidemic
