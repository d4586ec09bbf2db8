package lsq

import (
	"fmt"
	"math"
	"strings"
)

// Report summarises a finished fit.
type Report struct {
	Method      string
	Names       []string
	Initial     []float64
	Values      []float64
	Stderr      []float64
	AtLower     []bool
	AtUpper     []bool
	Evaluations int
	Iterations  int
	NData       int
	NVarys      int
	ChiSquare   float64
	RedChi      float64
	Converged   bool
	Message     string
}

func newReport(method string, p *Problem) *Report {
	n := p.NumParams()
	r := &Report{
		Method:  method,
		Names:   p.names(),
		Initial: append([]float64(nil), p.Initial...),
		Values:  make([]float64, n),
		Stderr:  make([]float64, n),
		AtLower: make([]bool, n),
		AtUpper: make([]bool, n),
		NData:   p.NumData(),
		NVarys:  n,
		RedChi:  math.NaN(),
	}
	for i := range r.Stderr {
		r.Stderr[i] = math.NaN()
	}
	return r
}

// finish records the final point and its sum of squared residuals.
func (r *Report) finish(p *Problem, x []float64, chiSquare float64) {
	copy(r.Values, x)
	r.ChiSquare = chiSquare
	if dof := r.NData - r.NVarys; dof > 0 {
		r.RedChi = chiSquare / float64(dof)
	}
	for i, v := range x {
		r.AtLower[i] = v <= p.lower(i)
		r.AtUpper[i] = v >= p.upper(i)
	}
}

// Value returns the fitted value of a named parameter.
func (r *Report) Value(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

func (r *Report) String() string {
	var b strings.Builder

	b.WriteString("[[Fit Statistics]]\n")
	fmt.Fprintf(&b, "    # fitting method   = %s\n", r.Method)
	fmt.Fprintf(&b, "    # function evals   = %d\n", r.Evaluations)
	fmt.Fprintf(&b, "    # iterations       = %d\n", r.Iterations)
	fmt.Fprintf(&b, "    # data points      = %d\n", r.NData)
	fmt.Fprintf(&b, "    # variables        = %d\n", r.NVarys)
	fmt.Fprintf(&b, "    chi-square         = %.6g\n", r.ChiSquare)
	fmt.Fprintf(&b, "    reduced chi-square = %.6g\n", r.RedChi)
	fmt.Fprintf(&b, "    converged          = %t\n", r.Converged)
	if r.Message != "" {
		fmt.Fprintf(&b, "    message            = %s\n", r.Message)
	}

	b.WriteString("[[Variables]]\n")
	width := 0
	for _, n := range r.Names {
		width = max(width, len(n))
	}
	for i, name := range r.Names {
		fmt.Fprintf(&b, "    %-*s %.8g", width+1, name+":", r.Values[i])
		if se := r.Stderr[i]; finite(se) {
			fmt.Fprintf(&b, " +/- %.4g", se)
			if r.Values[i] != 0 {
				fmt.Fprintf(&b, " (%.2f%%)", 100*math.Abs(se/r.Values[i]))
			}
		}
		fmt.Fprintf(&b, " (init = %g)", r.Initial[i])
		switch {
		case r.AtLower[i]:
			b.WriteString(" at lower bound")
		case r.AtUpper[i]:
			b.WriteString(" at upper bound")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
