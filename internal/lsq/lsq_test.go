package lsq

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// expDecay fits y = a * exp(-b * t) on t = 0..n-1.
func expDecay(a, b float64, n int) *Problem {
	target := make([]float64, n)
	for i := range target {
		target[i] = a * math.Exp(-b*float64(i))
	}
	return &Problem{
		Names:   []string{"a", "b"},
		Initial: []float64{1, 0.5},
		Target:  target,
		Model: func(p, out []float64) error {
			for i := range out {
				out[i] = p[0] * math.Exp(-p[1]*float64(i))
			}
			return nil
		},
	}
}

func solvers() map[string]Solver {
	return map[string]Solver{
		"lm":          NewLevenbergMarquardt(),
		"nelder-mead": NewNelderMead(),
	}
}

func TestSolversRecoverExactParameters(t *testing.T) {
	for name, solver := range solvers() {
		t.Run(name, func(t *testing.T) {
			res, err := solver.Solve(context.Background(), expDecay(3, 0.2, 30))
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if math.Abs(res.Params[0]-3) > 1e-3 || math.Abs(res.Params[1]-0.2) > 1e-4 {
				t.Errorf("got %v, want [3 0.2]", res.Params)
			}
			if !res.Report.Converged {
				t.Errorf("expected convergence: %s", res.Report.Message)
			}
			if res.Report.ChiSquare > 1e-6 {
				t.Errorf("chi-square %g too large", res.Report.ChiSquare)
			}
		})
	}
}

func TestLevenbergMarquardtStandardErrors(t *testing.T) {
	p := expDecay(3, 0.2, 30)
	for i := range p.Target {
		if i%2 == 0 {
			p.Target[i] += 0.01
		} else {
			p.Target[i] -= 0.01
		}
	}

	res, err := NewLevenbergMarquardt().Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	for i, se := range res.Report.Stderr {
		if math.IsNaN(se) || se <= 0 {
			t.Errorf("stderr[%d] = %v, want positive", i, se)
		}
	}
	if math.IsNaN(res.Report.RedChi) {
		t.Error("reduced chi-square should be defined with 28 degrees of freedom")
	}
}

func TestSolversRespectBounds(t *testing.T) {
	// Inside the box the model stays below the target everywhere, so the
	// optimum sits at a = 1, b = 0.2.
	for name, solver := range solvers() {
		t.Run(name, func(t *testing.T) {
			p := expDecay(3, 0.2, 20)
			p.Initial = []float64{0.2, 0.5}
			p.Lower = []float64{0, 0.2}
			p.Upper = []float64{1, 1}

			res, err := solver.Solve(context.Background(), p)
			if err != nil {
				t.Fatal(err)
			}
			a, b := res.Params[0], res.Params[1]
			if a < 0 || a > 1 || b < 0.2 || b > 1 {
				t.Errorf("params %v escaped the box", res.Params)
			}
			if math.Abs(a-1) > 1e-3 || math.Abs(b-0.2) > 1e-3 {
				t.Errorf("expected (1, 0.2), got %v", res.Params)
			}
		})
	}
}

func TestSolverNeverWorseThanInitial(t *testing.T) {
	for name, solver := range solvers() {
		t.Run(name, func(t *testing.T) {
			p := expDecay(2, 0.1, 25)
			p.Initial = []float64{5, 1}

			r := make([]float64, p.NumData())
			if err := p.residuals(p.Initial, r); err != nil {
				t.Fatal(err)
			}
			initial := 0.0
			for _, v := range r {
				initial += v * v
			}

			res, err := solver.Solve(context.Background(), p)
			if err != nil {
				t.Fatal(err)
			}
			if res.Report.ChiSquare > initial {
				t.Errorf("chi-square rose from %g to %g", initial, res.Report.ChiSquare)
			}
		})
	}
}

func TestSolveRejectsBadProblems(t *testing.T) {
	model := func(p, out []float64) error { return nil }

	tests := []struct {
		name string
		prob *Problem
		want error
	}{
		{"no data", &Problem{Initial: []float64{1}, Model: model}, ErrNoData},
		{"no params", &Problem{Target: []float64{1}, Model: model}, ErrBadProblem},
		{"nil model", &Problem{Initial: []float64{1}, Target: []float64{1}}, ErrBadProblem},
		{"name count", &Problem{Names: []string{"a", "b"}, Initial: []float64{1}, Target: []float64{1}, Model: model}, ErrBadProblem},
		{"bound count", &Problem{Initial: []float64{1}, Lower: []float64{0, 0}, Target: []float64{1}, Model: model}, ErrBadProblem},
		{"empty box", &Problem{Initial: []float64{1}, Lower: []float64{2}, Upper: []float64{1}, Target: []float64{1}, Model: model}, ErrBadProblem},
		{"nan target", &Problem{Initial: []float64{1}, Target: []float64{math.NaN()}, Model: model}, ErrBadProblem},
	}

	for _, tt := range tests {
		for name, solver := range solvers() {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				_, err := solver.Solve(context.Background(), tt.prob)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	}
}

func TestSolveFailsOnInvalidInitialModel(t *testing.T) {
	boom := errors.New("boom")
	for name, solver := range solvers() {
		t.Run(name, func(t *testing.T) {
			p := &Problem{
				Initial: []float64{1},
				Target:  []float64{1, 2},
				Model:   func(_, _ []float64) error { return boom },
			}
			_, err := solver.Solve(context.Background(), p)
			if !errors.Is(err, ErrModel) || !errors.Is(err, boom) {
				t.Errorf("expected ErrModel wrapping the model error, got %v", err)
			}
		})
	}
}

func TestLevenbergMarquardtRejectsFailingSteps(t *testing.T) {
	// The model is undefined for negative b; LM must back off instead of
	// accepting the NaN step.
	p := expDecay(3, 0.05, 30)
	p.Initial = []float64{1, 0.3}
	inner := p.Model
	p.Model = func(x, out []float64) error {
		if x[1] < 0 {
			for i := range out {
				out[i] = math.NaN()
			}
			return nil
		}
		return inner(x, out)
	}

	res, err := NewLevenbergMarquardt().Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Params[1] < 0 || math.IsNaN(res.Report.ChiSquare) {
		t.Errorf("accepted an invalid step: %v", res.Params)
	}
}

func TestSolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, solver := range solvers() {
		t.Run(name, func(t *testing.T) {
			_, err := solver.Solve(ctx, expDecay(3, 0.2, 10))
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	}
}

func TestBoundTransformRoundTrip(t *testing.T) {
	inf := math.Inf(1)
	p := &Problem{
		Initial: make([]float64, 4),
		Lower:   []float64{0, -2, -inf, -inf},
		Upper:   []float64{1, inf, 5, inf},
	}
	x := []float64{0.3, 4, -1, 7}
	u := make([]float64, 4)
	back := make([]float64, 4)

	p.toInternal(x, u)
	p.fromInternal(u, back)
	for i := range x {
		if math.Abs(back[i]-x[i]) > 1e-12 {
			t.Errorf("param %d: %v -> %v -> %v", i, x[i], u[i], back[i])
		}
	}

	for _, v := range []float64{-100, -1, 0, 2.5, 1e6} {
		p.fromInternal([]float64{v, v, v, v}, back)
		if back[0] < 0 || back[0] > 1 || back[1] < -2 || back[2] > 5 {
			t.Errorf("internal %v mapped outside the box: %v", v, back)
		}
	}
}

func TestReportString(t *testing.T) {
	p := expDecay(3, 0.2, 20)
	p.Lower = []float64{0, 0.2}
	p.Upper = []float64{1, 1}
	p.Initial = []float64{0.2, 0.5}

	res, err := NewLevenbergMarquardt().Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	out := res.Report.String()
	for _, want := range []string{
		"[[Fit Statistics]]",
		"levenberg-marquardt",
		"# data points      = 20",
		"# variables        = 2",
		"[[Variables]]",
		"a:",
		"(init = 0.2)",
		"at upper bound",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	if v, ok := res.Report.Value("b"); !ok || v != res.Params[1] {
		t.Errorf("Value(b) = %v, %v", v, ok)
	}
	if _, ok := res.Report.Value("missing"); ok {
		t.Error("Value should miss unknown names")
	}
}
