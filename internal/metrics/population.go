package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/epidemic"
)

// ConservationDrift is the largest relative deviation of S+I+R+D from the
// population over a run.
type ConservationDrift struct {
	name       string
	population float64
	maxDrift   float64
}

func NewConservationDrift(population float64) *ConservationDrift {
	return &ConservationDrift{
		name:       "conservation_drift",
		population: population,
	}
}

func (c *ConservationDrift) Name() string { return c.name }

func (c *ConservationDrift) Observe(x epidemic.Compartments, t float64) {
	if c.population == 0 {
		return
	}
	drift := math.Abs(x.Total()-c.population) / c.population
	c.maxDrift = math.Max(c.maxDrift, drift)
}

func (c *ConservationDrift) Value() float64 {
	return c.maxDrift
}

func (c *ConservationDrift) Reset() {
	c.maxDrift = 0
}

// AttackRate is the share of the population that left the susceptible
// compartment between the first and last sample.
type AttackRate struct {
	name       string
	population float64
	first      float64
	last       float64
	samples    int
}

func NewAttackRate(population float64) *AttackRate {
	return &AttackRate{
		name:       "attack_rate",
		population: population,
	}
}

func (a *AttackRate) Name() string { return a.name }

func (a *AttackRate) Observe(x epidemic.Compartments, t float64) {
	if a.samples == 0 {
		a.first = x.S
	}
	a.last = x.S
	a.samples++
}

func (a *AttackRate) Value() float64 {
	if a.samples == 0 || a.population == 0 {
		return 0
	}
	return (a.first - a.last) / a.population
}

func (a *AttackRate) Reset() {
	a.first = 0
	a.last = 0
	a.samples = 0
}
