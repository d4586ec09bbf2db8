package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
)

const (
	DefaultPopulation = 1000.0
	DefaultDays       = 50
	DefaultIntegrator = "rk45"
	DefaultSolver     = "lm"
	DefaultRelTol     = 1e-8
	DefaultAbsTol     = 1e-8
	DefaultMaxSteps   = 100000
	DefaultMaxIter    = 200
	DefaultBetaK      = 0.4
	DefaultGamma      = 0.1
	DefaultRho        = 0.02
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Population   float64               `yaml:"population"`
	Days         int                   `yaml:"days"`
	Initial      epidemic.Compartments `yaml:"initial"`
	Params       epidemic.Params       `yaml:"params"`
	Observed     []float64             `yaml:"observed,omitempty"`
	ObservedFile string                `yaml:"observed_file,omitempty"`
	Integrator   string                `yaml:"integrator"`
	Solver       string                `yaml:"solver"`
	Form         string                `yaml:"form"`
	Grid         string                `yaml:"grid"`
	Strict       bool                  `yaml:"strict"`
	Clamp        bool                  `yaml:"clamp"`
	Tolerance    ToleranceConfig       `yaml:"tolerance"`
	Fit          FitConfig             `yaml:"fit"`
	Intervention InterventionConfig    `yaml:"intervention"`
	Synth        SynthConfig           `yaml:"synth"`
}

type ToleranceConfig struct {
	RelTol   float64 `yaml:"rel_tol"`
	AbsTol   float64 `yaml:"abs_tol"`
	MaxSteps int     `yaml:"max_steps"`
}

type FitConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type InterventionConfig struct {
	Objective string `yaml:"objective"`
}

// SynthConfig drives generation of synthetic observed series.
type SynthConfig struct {
	Noise float64 `yaml:"noise"`
	Seed  int64   `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Population: DefaultPopulation,
		Days:       DefaultDays,
		Params: epidemic.Params{
			BetaK: DefaultBetaK,
			Gamma: DefaultGamma,
			Rho:   DefaultRho,
		},
		Integrator: DefaultIntegrator,
		Solver:     DefaultSolver,
		Form:       epidemic.FormPublished.String(),
		Grid:       GridDaily,
		Tolerance: ToleranceConfig{
			RelTol:   DefaultRelTol,
			AbsTol:   DefaultAbsTol,
			MaxSteps: DefaultMaxSteps,
		},
		Fit:          FitConfig{MaxIterations: DefaultMaxIter},
		Intervention: InterventionConfig{Objective: calibrate.ObjectiveFinal.String()},
		Synth:        SynthConfig{Noise: 0.05, Seed: 1},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto applies the file at path on top of cfg. Keys absent from the
// file keep their current values.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// InitialState returns the configured initial compartments, or a single
// infected individual in an otherwise susceptible population when none are
// set.
func (c *Config) InitialState() epidemic.Compartments {
	if c.Initial == (epidemic.Compartments{}) {
		return epidemic.Compartments{S: c.Population - 1, I: 1}
	}
	return c.Initial
}

// Time grid layouts. GridDaily samples 0..days-1; GridLinspace spreads days
// points evenly over [0, days].
const (
	GridDaily    = "daily"
	GridLinspace = "linspace"
)

func (c *Config) TimeGrid() (dynamo.Grid, error) {
	switch c.Grid {
	case "", GridDaily:
		return dynamo.DailyGrid(c.Days)
	case GridLinspace:
		return dynamo.Linspace(0, float64(c.Days), c.Days)
	default:
		return dynamo.Grid{}, fmt.Errorf("%w: unknown grid %q", ErrInvalidConfig, c.Grid)
	}
}

func (c *Config) ParsedForm() (epidemic.Form, error) {
	f, ok := epidemic.ParseForm(c.Form)
	if !ok {
		return f, fmt.Errorf("%w: unknown form %q", ErrInvalidConfig, c.Form)
	}
	return f, nil
}

func (c *Config) ParsedObjective() (calibrate.Objective, error) {
	o, ok := calibrate.ParseObjective(c.Intervention.Objective)
	if !ok {
		return o, fmt.Errorf("%w: unknown objective %q", ErrInvalidConfig, c.Intervention.Objective)
	}
	return o, nil
}

// Validate checks values that do not depend on a registry. Integrator and
// solver names are resolved later by the experiment registry.
func (c *Config) Validate() error {
	if c.Population <= 0 {
		return fmt.Errorf("%w: population must be positive, got %g", ErrInvalidConfig, c.Population)
	}
	if c.Days < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidConfig, c.Days)
	}
	if err := c.InitialState().Validate(c.Population); err != nil {
		return fmt.Errorf("%w: initial: %v", ErrInvalidConfig, err)
	}
	if len(c.Observed) > 0 && c.ObservedFile != "" {
		return fmt.Errorf("%w: observed and observed_file are mutually exclusive", ErrInvalidConfig)
	}
	if len(c.Observed) > 0 && len(c.Observed) != c.Days {
		return fmt.Errorf("%w: %d observed values for %d days", ErrInvalidConfig, len(c.Observed), c.Days)
	}
	if c.Tolerance.RelTol < 0 || c.Tolerance.AbsTol < 0 || c.Tolerance.MaxSteps < 0 {
		return fmt.Errorf("%w: tolerances must be non-negative", ErrInvalidConfig)
	}
	if c.Fit.MaxIterations < 0 {
		return fmt.Errorf("%w: fit.max_iterations must be non-negative", ErrInvalidConfig)
	}
	if c.Synth.Noise < 0 {
		return fmt.Errorf("%w: synth.noise must be non-negative", ErrInvalidConfig)
	}
	if _, err := c.ParsedForm(); err != nil {
		return err
	}
	if c.Grid != "" && c.Grid != GridDaily && c.Grid != GridLinspace {
		return fmt.Errorf("%w: unknown grid %q", ErrInvalidConfig, c.Grid)
	}
	if _, err := c.ParsedObjective(); err != nil {
		return err
	}
	return nil
}
