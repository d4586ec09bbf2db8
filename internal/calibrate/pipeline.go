package calibrate

import (
	"context"
	"fmt"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/lsq"
	"github.com/san-kum/episim/internal/sim"
)

// PipelineResult carries everything a renderer needs to show the three
// stages side by side: the model before fitting, after the full fit, and
// after the intervention refit.
type PipelineResult struct {
	Observed []float64

	Initial   epidemic.Params
	Fitted    epidemic.Params
	Optimized epidemic.Params

	Before        *epidemic.Trajectory
	AfterFit      *epidemic.Trajectory
	AfterOptimize *epidemic.Trajectory

	FitReport      *lsq.Report
	OptimizeReport *lsq.Report
}

// RunPipeline simulates under the model's held parameters, fits them to
// observed, commits the fit, refits the intervention curve and commits that
// too. On error the model keeps whatever was committed last.
func RunPipeline(ctx context.Context, model *sim.Model, cal *Calibrator, opt *InterventionOptimizer, observed []float64) (*PipelineResult, error) {
	res := &PipelineResult{
		Observed: append([]float64(nil), observed...),
		Initial:  model.Params(),
	}

	var err error
	if res.Before, err = model.Predict(ctx); err != nil {
		return nil, fmt.Errorf("initial simulation: %w", err)
	}

	res.Fitted, res.FitReport, err = cal.Fit(ctx, model.Params(), observed)
	if err != nil {
		return nil, err
	}
	model.Commit(res.Fitted)
	if res.AfterFit, err = model.Predict(ctx); err != nil {
		return nil, fmt.Errorf("fitted simulation: %w", err)
	}

	res.Optimized, res.OptimizeReport, err = opt.Optimize(ctx, model.Params(), observed)
	if err != nil {
		return nil, err
	}
	model.Commit(res.Optimized)
	if res.AfterOptimize, err = model.Predict(ctx); err != nil {
		return nil, fmt.Errorf("optimized simulation: %w", err)
	}

	return res, nil
}
