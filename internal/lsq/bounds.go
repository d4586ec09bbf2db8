package lsq

import "math"

// Bounded parameters are searched in an unbounded internal space. Two-sided
// bounds use a sine map; one-sided bounds use a shifted square root. Both
// are smooth and map the whole real line into the box.

func (p *Problem) toInternal(x, u []float64) {
	for i, v := range x {
		lo, hi := p.lower(i), p.upper(i)
		switch {
		case !math.IsInf(lo, -1) && !math.IsInf(hi, 1):
			u[i] = math.Asin(2*(v-lo)/(hi-lo) - 1)
		case !math.IsInf(lo, -1):
			u[i] = math.Sqrt((v-lo+1)*(v-lo+1) - 1)
		case !math.IsInf(hi, 1):
			u[i] = math.Sqrt((hi-v+1)*(hi-v+1) - 1)
		default:
			u[i] = v
		}
	}
}

func (p *Problem) fromInternal(u, x []float64) {
	for i, v := range u {
		lo, hi := p.lower(i), p.upper(i)
		switch {
		case !math.IsInf(lo, -1) && !math.IsInf(hi, 1):
			x[i] = lo + (math.Sin(v)+1)*(hi-lo)/2
		case !math.IsInf(lo, -1):
			x[i] = lo - 1 + math.Sqrt(v*v+1)
		case !math.IsInf(hi, 1):
			x[i] = hi + 1 - math.Sqrt(v*v+1)
		default:
			x[i] = v
		}
	}
}
