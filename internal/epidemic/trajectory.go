package epidemic

import (
	"fmt"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

const NumCompartments = 4

// Compartments is a population snapshot.
type Compartments struct {
	S float64 `yaml:"s" json:"s"`
	I float64 `yaml:"i" json:"i"`
	R float64 `yaml:"r" json:"r"`
	D float64 `yaml:"d" json:"d"`
}

func (c Compartments) Total() float64 { return c.S + c.I + c.R + c.D }

func (c Compartments) State() dynamo.State {
	return dynamo.State{c.S, c.I, c.R, c.D}
}

func CompartmentsFromState(x dynamo.State) (Compartments, error) {
	if len(x) != NumCompartments {
		return Compartments{}, fmt.Errorf("%w: expected %d compartments, got %d", dynamo.ErrDimensionMismatch, NumCompartments, len(x))
	}
	return Compartments{S: x[0], I: x[1], R: x[2], D: x[3]}, nil
}

// Validate checks that every compartment is finite and non-negative and that
// the total matches the population size.
func (c Compartments) Validate(population float64) error {
	for _, v := range c.State() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("compartments must be finite and non-negative, got %+v", c)
		}
	}
	if diff := math.Abs(c.Total() - population); diff > 1e-9*math.Max(1, population) {
		return fmt.Errorf("compartments sum to %g, population is %g", c.Total(), population)
	}
	return nil
}

// Trajectory holds one sample per grid point for each compartment.
type Trajectory struct {
	Times   []float64
	S       []float64
	I       []float64
	R       []float64
	D       []float64
	Metrics map[string]float64
}

// NewTrajectory transposes integrator output into per-compartment series.
func NewTrajectory(grid dynamo.Grid, states []dynamo.State) (*Trajectory, error) {
	if len(states) != grid.Len() {
		return nil, fmt.Errorf("%w: %d states for %d grid points", dynamo.ErrDimensionMismatch, len(states), grid.Len())
	}
	n := len(states)
	tr := &Trajectory{
		Times:   grid.Points(),
		S:       make([]float64, n),
		I:       make([]float64, n),
		R:       make([]float64, n),
		D:       make([]float64, n),
		Metrics: make(map[string]float64),
	}
	for k, x := range states {
		if len(x) != NumCompartments {
			return nil, fmt.Errorf("%w: state %d has %d entries", dynamo.ErrDimensionMismatch, k, len(x))
		}
		tr.S[k], tr.I[k], tr.R[k], tr.D[k] = x[0], x[1], x[2], x[3]
	}
	return tr, nil
}

func (t *Trajectory) Len() int { return len(t.Times) }

// Dead returns the cumulative deaths series. The slice is owned by the
// trajectory.
func (t *Trajectory) Dead() []float64 { return t.D }

func (t *Trajectory) At(k int) Compartments {
	return Compartments{S: t.S[k], I: t.I[k], R: t.R[k], D: t.D[k]}
}

func (t *Trajectory) Final() Compartments { return t.At(t.Len() - 1) }

func (t *Trajectory) Total(k int) float64 { return t.At(k).Total() }
