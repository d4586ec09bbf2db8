package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
)

// Recorder receives one call per integration. *observability.Collector
// satisfies it.
type Recorder interface {
	ObserveSimulation(elapsed time.Duration, err error)
}

// Simulator integrates the SIRD model from a fixed initial state over a
// fixed grid. It owns no parameters; every call takes the full set.
type Simulator struct {
	population float64
	grid       dynamo.Grid
	initial    epidemic.Compartments
	integrator dynamo.Integrator
	system     *epidemic.SIRD
	strict     bool
	metrics    []Metric
	recorder   Recorder
}

func New(population float64, grid dynamo.Grid, initial epidemic.Compartments, integ dynamo.Integrator, opts ...Option) (*Simulator, error) {
	if math.IsNaN(population) || math.IsInf(population, 0) || population <= 0 {
		return nil, fmt.Errorf("%w: population must be positive, got %g", ErrInvalidInput, population)
	}
	if grid.Len() == 0 {
		return nil, fmt.Errorf("%w: empty time grid", ErrInvalidInput)
	}
	if integ == nil {
		return nil, fmt.Errorf("%w: nil integrator", ErrInvalidInput)
	}
	if err := initial.Validate(population); err != nil {
		return nil, fmt.Errorf("%w: initial state: %v", ErrInvalidInput, err)
	}

	s := &Simulator{
		population: population,
		grid:       grid,
		initial:    initial,
		integrator: integ,
		system:     epidemic.NewSIRD(population, epidemic.FormPublished),
		metrics:    make([]Metric, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromState is New with the initial state given as a raw vector, which
// must hold exactly one entry per compartment.
func NewFromState(population float64, grid dynamo.Grid, y0 []float64, integ dynamo.Integrator, opts ...Option) (*Simulator, error) {
	c, err := epidemic.CompartmentsFromState(y0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return New(population, grid, c, integ, opts...)
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

func (s *Simulator) Population() float64            { return s.population }
func (s *Simulator) Grid() dynamo.Grid              { return s.grid }
func (s *Simulator) Initial() epidemic.Compartments { return s.initial }
func (s *Simulator) Form() epidemic.Form            { return s.system.Form }
func (s *Simulator) Integrator() dynamo.Integrator  { return s.integrator }

// Simulate integrates the model under p and returns a fresh trajectory with
// any registered metrics evaluated over it.
func (s *Simulator) Simulate(ctx context.Context, p epidemic.Params) (*epidemic.Trajectory, error) {
	states, err := s.integrate(ctx, p)
	if err != nil {
		return nil, err
	}

	tr, err := epidemic.NewTrajectory(s.grid, states)
	if err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
		for k := 0; k < tr.Len(); k++ {
			m.Observe(tr.At(k), tr.Times[k])
		}
		tr.Metrics[m.Name()] = m.Value()
	}

	return tr, nil
}

// Dead writes the cumulative deaths series under p into dst, which must
// have one slot per grid point. It skips trajectory assembly and metrics.
func (s *Simulator) Dead(ctx context.Context, p epidemic.Params, dst []float64) error {
	if len(dst) != s.grid.Len() {
		return fmt.Errorf("%w: destination has %d slots for %d grid points", ErrInvalidInput, len(dst), s.grid.Len())
	}
	states, err := s.integrate(ctx, p)
	if err != nil {
		return err
	}
	for k, x := range states {
		dst[k] = x[3]
	}
	return nil
}

// DeadSeries is Dead into a freshly allocated slice.
func (s *Simulator) DeadSeries(ctx context.Context, p epidemic.Params) ([]float64, error) {
	dst := make([]float64, s.grid.Len())
	if err := s.Dead(ctx, p, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ValidateObserved checks an observed series against the grid before any
// integration is attempted.
func (s *Simulator) ValidateObserved(observed []float64) error {
	if len(observed) != s.grid.Len() {
		return fmt.Errorf("%w: observed series has %d points, time grid has %d", ErrInvalidInput, len(observed), s.grid.Len())
	}
	for i, v := range observed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: observed value %d is not finite", ErrInvalidInput, i)
		}
		if v < 0 {
			return fmt.Errorf("%w: observed value %d is negative (%g)", ErrInvalidInput, i, v)
		}
	}
	return nil
}

func (s *Simulator) integrate(ctx context.Context, p epidemic.Params) ([]dynamo.State, error) {
	if s.strict {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	states, err := s.integrator.Integrate(ctx, s.system, s.initial.State(), s.grid, p.Vector())
	if s.recorder != nil {
		s.recorder.ObserveSimulation(time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("integrate: %w", err)
	}
	return states, nil
}
