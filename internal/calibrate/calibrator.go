package calibrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/lsq"
	"github.com/san-kum/episim/internal/observability"
	"github.com/san-kum/episim/internal/sim"
)

// ErrFitFailed wraps solver failures, such as a model that cannot be
// evaluated at the initial guess.
var ErrFitFailed = errors.New("calibrate: fit failed")

const stageFit = "fit"

// Calibrator fits every model parameter to observed cumulative deaths by
// least squares. Solver defaults to Levenberg-Marquardt and Log to a no-op
// logger; Metrics may be nil.
type Calibrator struct {
	Sim     *sim.Simulator
	Solver  lsq.Solver
	Log     logging.Logger
	Metrics *observability.Collector

	// Clamp projects the fitted parameters onto their physical domain
	// before they are returned.
	Clamp bool
}

func NewCalibrator(s *sim.Simulator, solver lsq.Solver) *Calibrator {
	return &Calibrator{Sim: s, Solver: solver}
}

// Fit starts from current and returns the best-fit parameters together with
// the solver report. A fit that stops short of its tolerances is not an
// error; check Report.Converged.
func (c *Calibrator) Fit(ctx context.Context, current epidemic.Params, observed []float64) (epidemic.Params, *lsq.Report, error) {
	if err := c.Sim.ValidateObserved(observed); err != nil {
		return current, nil, err
	}

	ctx, span := observability.StartSpan(ctx, "calibrate.Fit",
		attribute.Int("points", len(observed)),
		attribute.String("form", c.Sim.Form().String()),
	)
	defer span.End()

	prob := &lsq.Problem{
		Names:   epidemic.Names(),
		Initial: current.Vector(),
		Target:  observed,
		Model: func(v, out []float64) error {
			p, err := epidemic.ParamsFromVector(v)
			if err != nil {
				return err
			}
			return c.Sim.Dead(ctx, p, out)
		},
	}

	res, err := solve(ctx, span, stageFit, solverOrDefault(c.Solver), prob, logging.OrNoop(c.Log), c.Metrics)
	if err != nil {
		return current, nil, err
	}

	fitted, err := epidemic.ParamsFromVector(res.Params)
	if err != nil {
		return current, nil, fmt.Errorf("%w: %w", ErrFitFailed, err)
	}
	if c.Clamp {
		fitted = fitted.Clamp()
	}
	return fitted, res.Report, nil
}

func solverOrDefault(s lsq.Solver) lsq.Solver {
	if s == nil {
		return lsq.NewLevenbergMarquardt()
	}
	return s
}

// solve runs one calibration stage with logging, metrics and span status.
func solve(ctx context.Context, span trace.Span, stage string, solver lsq.Solver, prob *lsq.Problem, log logging.Logger, metrics *observability.Collector) (*lsq.Result, error) {
	log = log.With(logging.String("stage", stage))
	log.Debug(ctx, "calibration started",
		logging.Int("params", prob.NumParams()),
		logging.Int("points", prob.NumData()),
	)

	start := time.Now()
	res, err := solver.Solve(ctx, prob)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "calibration failed", logging.Err(err), logging.Duration("elapsed", elapsed))
		return nil, fmt.Errorf("%w: %w", ErrFitFailed, err)
	}

	rep := res.Report
	metrics.ObserveFit(stage, elapsed, rep.Evaluations, rep.Converged, rep.ChiSquare)
	span.SetAttributes(
		attribute.Int("evaluations", rep.Evaluations),
		attribute.Bool("converged", rep.Converged),
		attribute.Float64("chi_square", rep.ChiSquare),
	)

	fields := []logging.Field{
		logging.Int("evaluations", rep.Evaluations),
		logging.Bool("converged", rep.Converged),
		logging.Float("chi_square", rep.ChiSquare),
		logging.Duration("elapsed", elapsed),
	}
	if rep.Converged {
		log.Info(ctx, "calibration finished", fields...)
	} else {
		log.Warn(ctx, "calibration stopped before converging", append(fields, logging.String("reason", rep.Message))...)
	}
	log.Info(ctx, "calibration report", logging.String("report", rep.String()))

	return res, nil
}
