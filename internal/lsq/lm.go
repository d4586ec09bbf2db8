package lsq

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxIterations = 200
	DefaultFTol          = 1.5e-8
	DefaultXTol          = 1.5e-8
	DefaultGTol          = 1e-10
	DefaultJacobianStep  = 1e-6

	lambdaInit = 1e-3
	lambdaUp   = 10.0
	lambdaDown = 0.1
	lambdaMin  = 1e-12
	lambdaMax  = 1e16
)

// LevenbergMarquardt is a damped Gauss-Newton solver. The Jacobian is a
// forward difference taken in relative steps, so parameters of very
// different magnitudes share one step size. Bounded parameters are
// projected back into their box after every step.
type LevenbergMarquardt struct {
	MaxIterations int
	FTol          float64
	XTol          float64
	GTol          float64
	JacobianStep  float64
}

func NewLevenbergMarquardt() *LevenbergMarquardt {
	return &LevenbergMarquardt{
		MaxIterations: DefaultMaxIterations,
		FTol:          DefaultFTol,
		XTol:          DefaultXTol,
		GTol:          DefaultGTol,
		JacobianStep:  DefaultJacobianStep,
	}
}

type lmState struct {
	prob  *Problem
	m, n  int
	evals int

	x, r     []float64
	cost     float64
	scale    []float64
	scratch  []float64
	modelErr error
}

func (s *lmState) eval(x, r []float64) (float64, error) {
	s.evals++
	if err := s.prob.residuals(x, r); err != nil {
		return math.Inf(1), err
	}
	return floats.Dot(r, r), nil
}

// jacobian fills jac with d r / d x at the current point.
func (s *lmState) jacobian(jac *mat.Dense, step float64) error {
	for j, v := range s.x {
		s.scale[j] = math.Abs(v)
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	s.modelErr = nil
	f := func(y, u []float64) {
		for j := range u {
			s.scratch[j] = u[j] * s.scale[j]
		}
		if _, err := s.eval(s.scratch, y); err != nil && s.modelErr == nil {
			s.modelErr = err
		}
	}
	u := make([]float64, s.n)
	for j := range u {
		u[j] = s.x[j] / s.scale[j]
	}
	fd.Jacobian(jac, f, u, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: s.r,
		Step:        step,
	})
	if s.modelErr != nil {
		return s.modelErr
	}
	for j := 0; j < s.n; j++ {
		for i := 0; i < s.m; i++ {
			jac.Set(i, j, jac.At(i, j)/s.scale[j])
		}
	}
	return nil
}

func (lm *LevenbergMarquardt) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m, n := p.NumData(), p.NumParams()
	s := &lmState{
		prob:    p,
		m:       m,
		n:       n,
		x:       append([]float64(nil), p.Initial...),
		r:       make([]float64, m),
		scale:   make([]float64, n),
		scratch: make([]float64, n),
	}
	p.project(s.x)

	report := newReport("levenberg-marquardt", p)

	var err error
	if s.cost, err = s.eval(s.x, s.r); err != nil {
		return nil, fmt.Errorf("initial guess: %w", err)
	}

	jac := mat.NewDense(m, n, nil)
	jtj := mat.NewSymDense(n, nil)
	damped := mat.NewSymDense(n, nil)
	var grad, negGrad, delta mat.VecDense
	var chol mat.Cholesky

	xNew := make([]float64, n)
	rNew := make([]float64, m)
	lambda := lambdaInit
	step := lm.JacobianStep
	if step <= 0 {
		step = DefaultJacobianStep
	}

	converged := false
	message := "maximum iterations reached"

iterations:
	for report.Iterations < lm.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Iterations++

		if err := s.jacobian(jac, step); err != nil {
			message = "jacobian evaluation failed: " + err.Error()
			break
		}
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, s.r))

		if gradientConverged(jac, &grad, s.r, lm.GTol) {
			converged = true
			message = "gradient below tolerance"
			break
		}

		negGrad.ScaleVec(-1, &grad)
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			damped.CopySym(jtj)
			maxDiag := 0.0
			for i := 0; i < n; i++ {
				maxDiag = math.Max(maxDiag, jtj.At(i, i))
			}
			floor := math.Max(maxDiag*1e-12, 1e-300)
			for i := 0; i < n; i++ {
				d := math.Max(jtj.At(i, i), floor)
				damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}

			if ok := chol.Factorize(damped); !ok {
				if lambda *= lambdaUp; lambda > lambdaMax {
					message = "normal equations are singular"
					break iterations
				}
				continue
			}
			if err := chol.SolveVecTo(&delta, &negGrad); err != nil {
				if lambda *= lambdaUp; lambda > lambdaMax {
					message = "normal equations are singular"
					break iterations
				}
				continue
			}

			for j := 0; j < n; j++ {
				xNew[j] = s.x[j] + delta.AtVec(j)
			}
			p.project(xNew)

			costNew, err := s.eval(xNew, rNew)
			if err != nil || costNew >= s.cost {
				if lambda *= lambdaUp; lambda > lambdaMax {
					// Even a vanishing gradient step fails: x is a
					// local minimum to working precision.
					converged = true
					message = "no further reduction in sum of squares"
					break iterations
				}
				continue
			}

			stepNorm := floats.Distance(xNew, s.x, 2)
			reduction := s.cost - costNew

			copy(s.x, xNew)
			copy(s.r, rNew)
			prev := s.cost
			s.cost = costNew
			lambda = math.Max(lambda*lambdaDown, lambdaMin)

			if reduction <= lm.FTol*prev {
				converged = true
				message = "relative reduction in sum of squares below tolerance"
				break iterations
			}
			if stepNorm <= lm.XTol*(floats.Norm(s.x, 2)+lm.XTol) {
				converged = true
				message = "relative step size below tolerance"
				break iterations
			}
			break
		}
	}

	report.Converged = converged
	report.Message = message
	report.finish(p, s.x, s.cost)
	lm.stderr(s, jac, report)
	report.Evaluations = s.evals

	return &Result{Params: append([]float64(nil), s.x...), Report: report}, nil
}

// stderr fills the standard errors from the covariance estimate
// redchi * (J^T J)^-1 at the final point. They are left NaN when the
// problem has no residual degrees of freedom or the matrix is singular.
func (lm *LevenbergMarquardt) stderr(s *lmState, jac *mat.Dense, report *Report) {
	if s.m <= s.n || !finite(report.RedChi) {
		return
	}
	step := lm.JacobianStep
	if step <= 0 {
		step = DefaultJacobianStep
	}
	if err := s.jacobian(jac, step); err != nil {
		return
	}
	jtj := mat.NewSymDense(s.n, nil)
	jtj.SymOuterK(1, jac.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(jtj); !ok {
		return
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return
	}
	for i := 0; i < s.n; i++ {
		if v := cov.At(i, i) * report.RedChi; v >= 0 {
			report.Stderr[i] = math.Sqrt(v)
		}
	}
}

// gradientConverged reports whether every column of the Jacobian is
// orthogonal to the residual vector to within gtol.
func gradientConverged(jac *mat.Dense, grad *mat.VecDense, r []float64, gtol float64) bool {
	rNorm := floats.Norm(r, 2)
	if rNorm == 0 {
		return true
	}
	_, n := jac.Dims()
	for j := 0; j < n; j++ {
		colNorm := mat.Norm(jac.ColView(j), 2)
		if colNorm == 0 {
			continue
		}
		if math.Abs(grad.AtVec(j))/(colNorm*rNorm) > gtol {
			return false
		}
	}
	return true
}
