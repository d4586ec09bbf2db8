package calibrate

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/sim"
)

// GridSearch evaluates a score over the cartesian product of value ranges
// for the named parameters, leaving all others at their base values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d names for %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := epidemic.Index(name); !ok {
			return nil, fmt.Errorf("grid search: unknown param: %s", name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %s", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// ScoreFunc evaluates one candidate. Failed candidates are skipped.
type ScoreFunc func(ctx context.Context, p epidemic.Params) (float64, error)

// GridPoint is one evaluated candidate.
type GridPoint struct {
	Params epidemic.Params
	Score  float64
}

// Search visits every grid point in order and returns them together with
// the index of the lowest score, or -1 when every candidate failed.
func (g *GridSearch) Search(ctx context.Context, base epidemic.Params, score ScoreFunc) ([]GridPoint, int, error) {
	var points []GridPoint
	best := -1
	bestScore := math.Inf(1)

	err := g.searchRecursive(ctx, 0, base, func(p epidemic.Params) {
		v, err := score(ctx, p)
		if err != nil || math.IsNaN(v) {
			return
		}
		points = append(points, GridPoint{Params: p, Score: v})
		if v < bestScore {
			bestScore = v
			best = len(points) - 1
		}
	})
	if err != nil {
		return nil, -1, err
	}
	return points, best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current epidemic.Params, visit func(epidemic.Params)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next, err := current.With(name, val)
		if err != nil {
			return err
		}
		if err := g.searchRecursive(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

// Scan holds final deaths over a lockdown_a x lockdown_b grid. Final[i][j]
// is the count for A[i], B[j]; failed cells are NaN.
type Scan struct {
	A, B  []float64
	Final [][]float64
}

// ScanIntervention tabulates final deaths over the given lockdown values.
// Under ObjectiveFinal every cell whose count equals the observed total is
// an equally good answer; the table makes that ridge visible.
func ScanIntervention(ctx context.Context, s *sim.Simulator, current epidemic.Params, as, bs []float64) (*Scan, error) {
	gs, err := NewGridSearch(interventionParams, [][]float64{as, bs})
	if err != nil {
		return nil, err
	}

	scan := &Scan{
		A:     append([]float64(nil), as...),
		B:     append([]float64(nil), bs...),
		Final: make([][]float64, len(as)),
	}
	for i := range scan.Final {
		scan.Final[i] = make([]float64, len(bs))
		for j := range scan.Final[i] {
			scan.Final[i][j] = math.NaN()
		}
	}

	dead := make([]float64, s.Grid().Len())
	cell := 0
	_, _, err = gs.Search(ctx, current, func(ctx context.Context, p epidemic.Params) (float64, error) {
		i, j := cell/len(bs), cell%len(bs)
		cell++
		if err := s.Dead(ctx, p, dead); err != nil {
			return 0, err
		}
		final := dead[len(dead)-1]
		scan.Final[i][j] = final
		return final, nil
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// Closest returns the grid cell whose final deaths are nearest to target.
func (s *Scan) Closest(target float64) (a, b, final float64, ok bool) {
	bestDiff := math.Inf(1)
	for i := range s.Final {
		for j, v := range s.Final[i] {
			if math.IsNaN(v) {
				continue
			}
			if d := math.Abs(v - target); d < bestDiff {
				bestDiff = d
				a, b, final, ok = s.A[i], s.B[j], v, true
			}
		}
	}
	return a, b, final, ok
}
