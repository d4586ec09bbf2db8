package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dataset"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/viz"
)

func runSimulate(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	start := time.Now()
	tr, err := exp.Model.Predict(ctx)
	if err != nil {
		return err
	}
	rt.log.Info(ctx, "simulation finished", logging.Duration("elapsed", time.Since(start)))

	if csvOut {
		return dataset.WriteTrajectory(os.Stdout, tr)
	}

	fmt.Println(viz.Compartments(tr, "compartments"))
	fmt.Println()
	if err := viz.MetricsTable(os.Stdout, tr.Metrics); err != nil {
		return err
	}

	if svgOut != "" {
		return writeSVG(svgOut, tr.Times, export.TrajectorySeries(tr))
	}
	return nil
}

func runFit(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	if err := exp.RequireObserved(); err != nil {
		return err
	}

	initial := exp.Model.Params()
	fitted, report, err := exp.Calibrate.Fit(ctx, initial, exp.Observed)
	if err != nil {
		return err
	}
	exp.Model.Commit(fitted)

	tr, err := exp.Model.Predict(ctx)
	if err != nil {
		return err
	}

	fmt.Println(viz.Report("fit", report))
	if err := viz.ParamTable(os.Stdout, []string{"initial", "fitted"}, initial, fitted); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.Deaths(tr, exp.Observed, "cumulative deaths after fit"))

	if svgOut != "" {
		return writeSVG(svgOut, tr.Times, export.DeathSeries(tr, exp.Observed))
	}
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	if err := exp.RequireObserved(); err != nil {
		return err
	}

	initial := exp.Model.Params()
	optimized, report, err := exp.Optimize.Optimize(ctx, initial, exp.Observed)
	if err != nil {
		return err
	}
	exp.Model.Commit(optimized)

	tr, err := exp.Model.Predict(ctx)
	if err != nil {
		return err
	}

	fmt.Println(viz.Report("intervention fit ("+exp.Optimize.Objective.String()+")", report))
	if err := viz.ParamTable(os.Stdout, []string{"initial", "optimized"}, initial, optimized); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.Deaths(tr, exp.Observed, "cumulative deaths after intervention fit"))

	if svgOut != "" {
		return writeSVG(svgOut, tr.Times, export.DeathSeries(tr, exp.Observed))
	}
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	if err := exp.RequireObserved(); err != nil {
		return err
	}

	res, err := calibrate.RunPipeline(ctx, exp.Model, exp.Calibrate, exp.Optimize, exp.Observed)
	if err != nil {
		return err
	}

	fmt.Println(viz.Pipeline(res))
	fmt.Println(viz.Report("fit", res.FitReport))
	fmt.Println(viz.Report("intervention fit ("+exp.Optimize.Objective.String()+")", res.OptimizeReport))
	if err := viz.ParamTable(os.Stdout, []string{"initial", "fitted", "optimized"}, res.Initial, res.Fitted, res.Optimized); err != nil {
		return err
	}

	if svgOut != "" {
		series := export.StageDeaths(
			[]string{"before", "after fit", "after optimize"},
			[]*epidemic.Trajectory{res.Before, res.AfterFit, res.AfterOptimize},
			res.Observed,
		)
		return writeSVG(svgOut, res.Before.Times, series)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	scan, err := calibrate.ScanIntervention(ctx, exp.Simulator(), exp.Model.Params(), aValues, bValues)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header("final deaths over lockdown_a x lockdown_b"))
	fmt.Println()
	fmt.Print(viz.ScanGrid(scan))

	if len(exp.Observed) > 0 {
		target := exp.Observed[len(exp.Observed)-1]
		if a, b, final, ok := scan.Closest(target); ok {
			fmt.Println(viz.Metric("closest to observed", fmt.Sprintf("a=%.3g b=%.3g final=%.2f (observed %.2f)", a, b, final, target)))
		}
	}
	return nil
}

func runSynth(cmd *cobra.Command, args []string) error {
	exp, rt, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	tr, err := exp.Model.Predict(cmd.Context())
	if err != nil {
		return err
	}
	cfg := exp.Config()
	series, err := dataset.Synthesize(tr, cfg.Synth.Noise, cfg.Synth.Seed)
	if err != nil {
		return err
	}

	if outFile == "" {
		return dataset.Write(os.Stdout, series)
	}
	if err := dataset.Save(outFile, series); err != nil {
		return err
	}
	rt.log.Info(cmd.Context(), "synthetic series written",
		logging.String("path", outFile),
		logging.Int("days", len(series)),
		logging.Float("noise", cfg.Synth.Noise),
	)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOPULATION\tDAYS\tBETA_K\tGAMMA\tRHO")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.0f\t%d\t%.3g\t%.3g\t%.3g\n",
			name, p.Population, p.Days, p.Params.BetaK, p.Params.Gamma, p.Params.Rho)
	}
	return w.Flush()
}

func listComponents(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	objectives := []string{
		calibrate.ObjectiveFinal.String(),
		calibrate.ObjectiveCurve.String(),
		calibrate.ObjectiveBroadcast.String(),
	}
	forms := []string{epidemic.FormPublished.String(), epidemic.FormBalanced.String()}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAMES")
	fmt.Fprintf(w, "integrator\t%s\n", strings.Join(reg.ListIntegrators(), ", "))
	fmt.Fprintf(w, "solver\t%s\n", strings.Join(reg.ListSolvers(), ", "))
	fmt.Fprintf(w, "objective\t%s\n", strings.Join(objectives, ", "))
	fmt.Fprintf(w, "form\t%s\n", strings.Join(forms, ", "))
	fmt.Fprintf(w, "grid\t%s, %s\n", config.GridDaily, config.GridLinspace)
	return w.Flush()
}

func writeSVG(path string, times []float64, series []export.Series) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteSVG(f, times, series, 800, 400); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(viz.Metric("svg", path))
	return nil
}
