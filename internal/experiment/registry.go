package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/lsq"
)

// Registry maps configuration names to integrator and solver factories.
type Registry struct {
	integrators map[string]func(*config.Config) dynamo.Integrator
	solvers     map[string]func(*config.Config) lsq.Solver
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func(*config.Config) dynamo.Integrator),
		solvers:     make(map[string]func(*config.Config) lsq.Solver),
	}

	r.integrators["euler"] = func(*config.Config) dynamo.Integrator { return integrators.NewEuler(100) }
	r.integrators["rk4"] = func(*config.Config) dynamo.Integrator { return integrators.NewRK4(10) }
	r.integrators["rk45"] = func(cfg *config.Config) dynamo.Integrator {
		in := integrators.NewRK45()
		if cfg.Tolerance.RelTol > 0 {
			in.RelTol = cfg.Tolerance.RelTol
		}
		if cfg.Tolerance.AbsTol > 0 {
			in.AbsTol = cfg.Tolerance.AbsTol
		}
		if cfg.Tolerance.MaxSteps > 0 {
			in.MaxSteps = cfg.Tolerance.MaxSteps
		}
		return in
	}

	r.solvers["lm"] = func(cfg *config.Config) lsq.Solver {
		s := lsq.NewLevenbergMarquardt()
		if cfg.Fit.MaxIterations > 0 {
			s.MaxIterations = cfg.Fit.MaxIterations
		}
		return s
	}
	r.solvers["nelder-mead"] = func(cfg *config.Config) lsq.Solver {
		s := lsq.NewNelderMead()
		if cfg.Fit.MaxIterations > 0 {
			s.MaxIterations = cfg.Fit.MaxIterations
		}
		return s
	}

	return r
}

func (r *Registry) GetIntegrator(name string, cfg *config.Config) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) GetSolver(name string, cfg *config.Config) (lsq.Solver, error) {
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }

func (r *Registry) ListSolvers() []string { return sortedKeys(r.solvers) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
