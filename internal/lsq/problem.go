package lsq

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoData     = errors.New("lsq: no data points")
	ErrBadProblem = errors.New("lsq: malformed problem")
	ErrModel      = errors.New("lsq: model evaluation failed")
)

// ModelFunc evaluates the model at params and writes one value per target
// point into out.
type ModelFunc func(params, out []float64) error

// Problem describes a least-squares fit. Lower and Upper are optional; a nil
// slice leaves every parameter unbounded on that side, and infinite entries
// leave single parameters unbounded.
type Problem struct {
	Names   []string
	Initial []float64
	Lower   []float64
	Upper   []float64
	Target  []float64
	Model   ModelFunc
}

type Result struct {
	Params []float64
	Report *Report
}

type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

func (p *Problem) NumParams() int { return len(p.Initial) }

func (p *Problem) NumData() int { return len(p.Target) }

func (p *Problem) Validate() error {
	n := len(p.Initial)
	switch {
	case p.Model == nil:
		return fmt.Errorf("%w: nil model", ErrBadProblem)
	case n == 0:
		return fmt.Errorf("%w: no free parameters", ErrBadProblem)
	case len(p.Target) == 0:
		return ErrNoData
	case len(p.Names) != 0 && len(p.Names) != n:
		return fmt.Errorf("%w: %d names for %d parameters", ErrBadProblem, len(p.Names), n)
	case p.Lower != nil && len(p.Lower) != n:
		return fmt.Errorf("%w: %d lower bounds for %d parameters", ErrBadProblem, len(p.Lower), n)
	case p.Upper != nil && len(p.Upper) != n:
		return fmt.Errorf("%w: %d upper bounds for %d parameters", ErrBadProblem, len(p.Upper), n)
	}
	for i, v := range p.Target {
		if !finite(v) {
			return fmt.Errorf("%w: target %d is not finite", ErrBadProblem, i)
		}
	}
	for i := 0; i < n; i++ {
		if !finite(p.Initial[i]) {
			return fmt.Errorf("%w: initial value of %s is not finite", ErrBadProblem, p.name(i))
		}
		lo, hi := p.lower(i), p.upper(i)
		if math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi {
			return fmt.Errorf("%w: empty bounds [%g, %g] for %s", ErrBadProblem, lo, hi, p.name(i))
		}
	}
	return nil
}

func (p *Problem) name(i int) string {
	if i < len(p.Names) {
		return p.Names[i]
	}
	return fmt.Sprintf("p%d", i)
}

func (p *Problem) names() []string {
	out := make([]string, p.NumParams())
	for i := range out {
		out[i] = p.name(i)
	}
	return out
}

func (p *Problem) lower(i int) float64 {
	if p.Lower == nil {
		return math.Inf(-1)
	}
	return p.Lower[i]
}

func (p *Problem) upper(i int) float64 {
	if p.Upper == nil {
		return math.Inf(1)
	}
	return p.Upper[i]
}

// project clamps x into the bounds in place.
func (p *Problem) project(x []float64) {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], p.lower(i)), p.upper(i))
	}
}

// residuals writes model(x) - target into r. A model error or a non-finite
// residual is reported as ErrModel.
func (p *Problem) residuals(x, r []float64) error {
	if err := p.Model(x, r); err != nil {
		return fmt.Errorf("%w: %w", ErrModel, err)
	}
	for i := range r {
		r[i] -= p.Target[i]
		if !finite(r[i]) {
			return fmt.Errorf("%w: residual %d is not finite", ErrModel, i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
