// Package calibrate fits SIRD parameters to an observed cumulative-deaths
// series.
//
// A Calibrator fits all eight parameters at once. An InterventionOptimizer
// then refits only the lockdown curve, inside [0, 1], to match the observed
// outcome. Neither mutates anything: both return a new parameter set which
// the caller commits to its sim.Model. RunPipeline chains the two the way
// the command line tool does.
package calibrate
