// Package lsq solves small nonlinear least-squares problems: find the
// parameter vector p minimising sum((model(p) - target)^2), optionally
// subject to box bounds.
//
// Two solvers are provided. LevenbergMarquardt works on a finite-difference
// Jacobian and reports standard errors from the normal-equation covariance.
// NelderMead is derivative free and maps bounded parameters through smooth
// transforms. Both return a Report that renders as a plain-text summary.
package lsq
