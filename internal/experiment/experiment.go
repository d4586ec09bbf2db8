// Package experiment assembles a runnable scenario from a Config: the
// simulator, its held parameters, the observed series, and the calibration
// stages.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dataset"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/metrics"
	"github.com/san-kum/episim/internal/observability"
	"github.com/san-kum/episim/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	log       logging.Logger
	collector *observability.Collector

	Model     *sim.Model
	Observed  []float64
	Calibrate *calibrate.Calibrator
	Optimize  *calibrate.InterventionOptimizer
}

type Option func(*Experiment)

func WithLogger(l logging.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithCollector(c *observability.Collector) Option {
	return func(e *Experiment) { e.collector = c }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// New validates cfg and wires every component. The observed series is
// taken from cfg.Observed or cfg.ObservedFile; either may be absent for
// commands that only simulate.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	e := &Experiment{cfg: cfg, log: logging.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	form, err := cfg.ParsedForm()
	if err != nil {
		return nil, err
	}
	objective, err := cfg.ParsedObjective()
	if err != nil {
		return nil, err
	}
	integ, err := e.registry.GetIntegrator(cfg.Integrator, cfg)
	if err != nil {
		return nil, err
	}
	solver, err := e.registry.GetSolver(cfg.Solver, cfg)
	if err != nil {
		return nil, err
	}
	grid, err := cfg.TimeGrid()
	if err != nil {
		return nil, err
	}

	simOpts := []sim.Option{sim.WithForm(form)}
	if cfg.Strict {
		simOpts = append(simOpts, sim.WithStrictParams())
	}
	if e.collector != nil {
		simOpts = append(simOpts, sim.WithRecorder(e.collector))
	}
	s, err := sim.New(cfg.Population, grid, cfg.InitialState(), integ, simOpts...)
	if err != nil {
		return nil, err
	}

	e.Observed = cfg.Observed
	if cfg.ObservedFile != "" {
		if e.Observed, err = dataset.Load(cfg.ObservedFile); err != nil {
			return nil, err
		}
		if len(e.Observed) != cfg.Days {
			return nil, fmt.Errorf("%s: %d observed values for %d days", cfg.ObservedFile, len(e.Observed), cfg.Days)
		}
	}

	for _, m := range metrics.Standard(cfg.Population, e.Observed) {
		s.AddMetric(m)
	}

	e.Model = sim.NewModel(s, cfg.Params)
	e.Calibrate = &calibrate.Calibrator{
		Sim:     s,
		Solver:  solver,
		Log:     e.log,
		Metrics: e.collector,
		Clamp:   cfg.Clamp,
	}
	e.Optimize = &calibrate.InterventionOptimizer{
		Sim:       s,
		Solver:    solver,
		Objective: objective,
		Log:       e.log,
		Metrics:   e.collector,
	}

	e.log.Debug(context.Background(), "experiment ready",
		logging.Float("population", cfg.Population),
		logging.Int("days", cfg.Days),
		logging.String("integrator", cfg.Integrator),
		logging.String("solver", cfg.Solver),
		logging.String("form", form.String()),
		logging.Int("observed", len(e.Observed)),
	)
	return e, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Simulator() *sim.Simulator { return e.Model.Simulator() }

// RequireObserved reports an error when no observed series was configured.
func (e *Experiment) RequireObserved() error {
	if len(e.Observed) == 0 {
		return fmt.Errorf("no observed series: set observed or observed_file, or pass --observed")
	}
	return nil
}
