package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/episim/internal/epidemic"
)

// deadSeries collects the simulated deaths sample by sample for comparison
// against an observed series of the same length.
type deadSeries struct {
	observed []float64
	dead     []float64
}

func (d *deadSeries) observe(x epidemic.Compartments) {
	d.dead = append(d.dead, x.D)
}

func (d *deadSeries) complete() bool {
	return len(d.observed) > 0 && len(d.dead) == len(d.observed)
}

func (d *deadSeries) reset() { d.dead = d.dead[:0] }

// SSE is the sum of squared differences between simulated and observed
// cumulative deaths. It is NaN if the run length does not match.
type SSE struct {
	name string
	deadSeries
}

func NewSSE(observed []float64) *SSE {
	return &SSE{name: "sse", deadSeries: deadSeries{observed: observed}}
}

func (s *SSE) Name() string { return s.name }

func (s *SSE) Observe(x epidemic.Compartments, t float64) { s.observe(x) }

func (s *SSE) Value() float64 {
	if !s.complete() {
		return math.NaN()
	}
	dist := floats.Distance(s.dead, s.observed, 2)
	return dist * dist
}

func (s *SSE) Reset() { s.reset() }

// RSquared is the coefficient of determination of the simulated deaths as
// a predictor of the observed series.
type RSquared struct {
	name string
	deadSeries
}

func NewRSquared(observed []float64) *RSquared {
	return &RSquared{name: "r_squared", deadSeries: deadSeries{observed: observed}}
}

func (r *RSquared) Name() string { return r.name }

func (r *RSquared) Observe(x epidemic.Compartments, t float64) { r.observe(x) }

func (r *RSquared) Value() float64 {
	if !r.complete() {
		return math.NaN()
	}
	return stat.RSquaredFrom(r.dead, r.observed, nil)
}

func (r *RSquared) Reset() { r.reset() }
