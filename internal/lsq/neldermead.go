package lsq

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	DefaultSimplexIterations = 2000
	DefaultSimplexEvals      = 10000
)

// NelderMead minimises the sum of squares with the downhill simplex method.
// It needs no derivatives, so it tolerates models whose output is only
// piecewise smooth in the parameters. No standard errors are reported.
type NelderMead struct {
	MaxIterations  int
	MaxEvaluations int
	FTol           float64
	SimplexSize    float64
}

func NewNelderMead() *NelderMead {
	return &NelderMead{
		MaxIterations:  DefaultSimplexIterations,
		MaxEvaluations: DefaultSimplexEvals,
		FTol:           DefaultFTol,
	}
}

func (nm *NelderMead) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m, n := p.NumData(), p.NumParams()
	x0 := append([]float64(nil), p.Initial...)
	p.project(x0)

	r := make([]float64, m)
	x := make([]float64, n)
	evals := 1
	if err := p.residuals(x0, r); err != nil {
		return nil, fmt.Errorf("initial guess: %w", err)
	}

	u0 := make([]float64, n)
	p.toInternal(x0, u0)

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			evals++
			p.fromInternal(u, x)
			if err := p.residuals(x, r); err != nil {
				return math.Inf(1)
			}
			return floats.Dot(r, r)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations: nm.MaxIterations,
		FuncEvaluations: nm.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-20,
			Relative:   nm.FTol,
			Iterations: 5 * n,
		},
	}

	res, err := optimize.Minimize(problem, u0, settings, &optimize.NelderMead{SimplexSize: nm.SimplexSize})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, fmt.Errorf("nelder-mead: %w", err)
	}

	best := make([]float64, n)
	p.fromInternal(res.X, best)
	p.project(best)

	report := newReport("nelder-mead", p)
	report.Iterations = res.MajorIterations
	report.Converged = res.Status == optimize.FunctionConvergence || res.Status == optimize.MethodConverge
	report.Message = res.Status.String()
	if err != nil {
		report.Message = err.Error()
	}

	evals++
	if err := p.residuals(best, r); err != nil {
		return nil, fmt.Errorf("final point: %w", err)
	}
	report.finish(p, best, floats.Dot(r, r))
	report.Evaluations = evals

	return &Result{Params: best, Report: report}, nil
}
