package integrators

import (
	"context"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const (
	DefaultRelTol   = 1e-8
	DefaultAbsTol   = 1e-8
	DefaultMaxSteps = 100000
	DefaultMinStep  = 1e-12
)

// RK45 is an adaptive Dormand-Prince integrator. Steps are clipped so that
// every grid point is hit exactly; the error norm is the RMS of the local
// error scaled by AbsTol + RelTol*|x|.
type RK45 struct {
	RelTol   float64
	AbsTol   float64
	MaxSteps int
	MinStep  float64

	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
		MinStep:  DefaultMinStep,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

type dopriWorkspace struct {
	k1, k2, k3, k4, k5, k6, k7 dynamo.State
	tmp                        dynamo.State
}

func newDopriWorkspace(n int) *dopriWorkspace {
	mk := func() dynamo.State { return make(dynamo.State, n) }
	return &dopriWorkspace{
		k1: mk(), k2: mk(), k3: mk(), k4: mk(), k5: mk(), k6: mk(), k7: mk(),
		tmp: mk(),
	}
}

// step writes the fifth-order solution into out and returns the scaled
// error norm of the embedded fourth-order estimate.
func (r *RK45) step(w *dopriWorkspace, sys dynamo.System, x dynamo.State, args []float64, t, dt float64, out dynamo.State) float64 {
	n := len(x)

	sys.Derive(w.k1, x, args, t)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + dt*b21*w.k1[i]
	}
	sys.Derive(w.k2, w.tmp, args, t+a2*dt)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + dt*(b31*w.k1[i]+b32*w.k2[i])
	}
	sys.Derive(w.k3, w.tmp, args, t+a3*dt)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + dt*(b41*w.k1[i]+b42*w.k2[i]+b43*w.k3[i])
	}
	sys.Derive(w.k4, w.tmp, args, t+a4*dt)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + dt*(b51*w.k1[i]+b52*w.k2[i]+b53*w.k3[i]+b54*w.k4[i])
	}
	sys.Derive(w.k5, w.tmp, args, t+a5*dt)

	for i := 0; i < n; i++ {
		w.tmp[i] = x[i] + dt*(b61*w.k1[i]+b62*w.k2[i]+b63*w.k3[i]+b64*w.k4[i]+b65*w.k5[i])
	}
	sys.Derive(w.k6, w.tmp, args, t+dt)

	for i := 0; i < n; i++ {
		out[i] = x[i] + dt*(c1*w.k1[i]+c3*w.k3[i]+c4*w.k4[i]+c5*w.k5[i]+c6*w.k6[i])
	}

	sys.Derive(w.k7, out, args, t+dt)

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*w.k1[i] + dc3*w.k3[i] + dc4*w.k4[i] + dc5*w.k5[i] + dc6*w.k6[i] + dc7*w.k7[i])
		scale := r.AbsTol + r.RelTol*math.Max(math.Abs(x[i]), math.Abs(out[i]))
		e := errEst / scale
		sum += e * e
	}
	return math.Sqrt(sum / float64(n))
}

func (r *RK45) nextStep(dt, errNorm float64) float64 {
	if errNorm > 1 {
		return dt * math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.25))
	}
	if errNorm == 0 {
		return dt * r.maxScale
	}
	return dt * math.Min(r.maxScale, r.safety*math.Pow(errNorm, -0.2))
}

func (r *RK45) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, args []float64) ([]dynamo.State, error) {
	if err := checkInputs(sys, x0, grid); err != nil {
		return nil, err
	}

	n := len(x0)
	w := newDopriWorkspace(n)
	out := make([]dynamo.State, grid.Len())
	out[0] = x0.Clone()

	x := x0.Clone()
	xNew := make(dynamo.State, n)
	t := grid.At(0)

	dt := 0.01
	if grid.Len() > 1 {
		dt = math.Min(0.1*(grid.At(1)-grid.At(0)), 0.01*grid.Span())
	}

	steps := 0
	for i := 1; i < grid.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, dynamo.Canceled(ctx.Err())
		default:
		}

		tEnd := grid.At(i)
		for {
			remaining := tEnd - t
			if remaining <= 1e-12*math.Max(1, math.Abs(tEnd)) {
				t = tEnd
				break
			}
			if steps >= r.MaxSteps {
				return nil, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrUnstable}
			}

			h := math.Min(dt, remaining)
			last := h == remaining

			errNorm := r.step(w, sys, x, args, t, h, xNew)
			steps++

			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !xNew.IsValid() {
				dt = h * r.minScale
				if dt < r.MinStep {
					return nil, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: dynamo.Diverged(dynamo.ErrInvalidState)}
				}
				continue
			}

			if errNorm > 1 {
				dt = r.nextStep(h, errNorm)
				if dt < r.MinStep {
					return nil, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: dynamo.Diverged(dynamo.ErrStepTooSmall)}
				}
				continue
			}

			if last {
				t = tEnd
			} else {
				t += h
			}
			x, xNew = xNew, x

			next := r.nextStep(h, errNorm)
			if last {
				// clipped steps don't shrink the running step size
				next = math.Max(dt, next)
			}
			dt = next
			if dt < r.MinStep {
				return nil, &dynamo.SimulationError{Step: steps, Time: t, State: x.Clone(), Wrapped: dynamo.Diverged(dynamo.ErrStepTooSmall)}
			}
		}

		out[i] = x.Clone()
	}

	return out, nil
}
