// Package metrics provides trajectory summaries that plug into
// sim.Simulator.AddMetric.
package metrics

import "github.com/san-kum/episim/internal/sim"

// Standard returns the outbreak summaries, plus goodness of fit when an
// observed series is given.
func Standard(population float64, observed []float64) []sim.Metric {
	ms := []sim.Metric{
		NewConservationDrift(population),
		NewAttackRate(population),
		NewPeakInfected(),
		NewPeakDay(),
		NewFinalDeaths(),
	}
	if len(observed) > 0 {
		ms = append(ms, NewSSE(observed), NewRSquared(observed))
	}
	return ms
}
