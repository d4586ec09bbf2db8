package dynamo

import (
	"context"
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// System is an ODE right-hand side. Derive writes dX/dt into dx, which has
// the same length as x. args carries the model parameters so one System can
// be integrated under many parameter vectors without being rebuilt.
type System interface {
	Derive(dx, x State, args []float64, t float64)
	StateDim() int
}

// Integrator drives a System across every point of a Grid and returns one
// state per grid point; the first is a copy of x0.
type Integrator interface {
	Integrate(ctx context.Context, sys System, x0 State, grid Grid, args []float64) ([]State, error)
}

// Grid is an immutable, strictly increasing sequence of sample times.
type Grid struct {
	points []float64
}

func NewGrid(points []float64) (Grid, error) {
	if len(points) == 0 {
		return Grid{}, fmt.Errorf("%w: no points", ErrInvalidGrid)
	}
	for i, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Grid{}, fmt.Errorf("%w: point %d is not finite", ErrInvalidGrid, i)
		}
		if i > 0 && p <= points[i-1] {
			return Grid{}, fmt.Errorf("%w: point %d (%g) does not follow %g", ErrInvalidGrid, i, p, points[i-1])
		}
	}
	c := make([]float64, len(points))
	copy(c, points)
	return Grid{points: c}, nil
}

// DailyGrid returns 0, 1, ..., days-1.
func DailyGrid(days int) (Grid, error) {
	if days < 1 {
		return Grid{}, fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidGrid, days)
	}
	points := make([]float64, days)
	for i := range points {
		points[i] = float64(i)
	}
	return Grid{points: points}, nil
}

// Linspace returns n evenly spaced points over [start, stop], both ends
// included.
func Linspace(start, stop float64, n int) (Grid, error) {
	if n < 1 {
		return Grid{}, fmt.Errorf("%w: need at least one point, got %d", ErrInvalidGrid, n)
	}
	if n == 1 {
		return NewGrid([]float64{start})
	}
	points := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range points {
		points[i] = start + float64(i)*step
	}
	points[n-1] = stop
	return NewGrid(points)
}

func (g Grid) Len() int { return len(g.points) }

func (g Grid) At(i int) float64 { return g.points[i] }

// Points returns a copy of the sample times.
func (g Grid) Points() []float64 {
	c := make([]float64, len(g.points))
	copy(c, g.points)
	return c
}

func (g Grid) Span() float64 {
	if len(g.points) == 0 {
		return 0
	}
	return g.points[len(g.points)-1] - g.points[0]
}
