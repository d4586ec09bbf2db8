package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	configFile  string
	preset      string
	logLevel    string
	logFormat   string
	metricsAddr string
	traceExp    string

	population   float64
	days         int
	integrator   string
	solver       string
	form         string
	objective    string
	observedFile string
	strict       bool
	clamp        bool
	gridLayout   string
	maxIter      int

	csvOut bool
	svgOut string

	noise   float64
	seed    int64
	outFile string

	aValues []float64
	bValues []float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "episim",
		Short:         "SIRD epidemic simulation and calibration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a named preset")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from EPISIM_LOG_LEVEL)")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json (default from EPISIM_LOG_FORMAT)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	pf.StringVar(&traceExp, "trace", "", "trace exporter: stdout or otlp")

	pf.Float64Var(&population, "population", 0, "population size")
	pf.IntVar(&days, "days", 0, "number of simulated days")
	pf.StringVar(&integrator, "integrator", "", "integrator: euler, rk4, rk45")
	pf.StringVar(&solver, "solver", "", "least-squares solver: lm, nelder-mead")
	pf.StringVar(&form, "form", "", "derivative form: published or balanced")
	pf.StringVar(&objective, "objective", "", "intervention objective: final, curve or broadcast")
	pf.StringVar(&observedFile, "observed", "", "observed cumulative deaths (csv)")
	pf.BoolVar(&strict, "strict", false, "reject out-of-domain parameters")
	pf.BoolVar(&clamp, "clamp", false, "project fitted parameters onto their domain")
	pf.StringVar(&gridLayout, "grid", "", "time grid: daily (0..days-1) or linspace (days points over [0, days])")
	pf.IntVar(&maxIter, "max-iter", 0, "solver iteration limit")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulate the configured parameters",
		Args:  cobra.NoArgs,
		RunE:  runSimulate,
	}
	simulateCmd.Flags().BoolVar(&csvOut, "csv", false, "write the trajectory as csv to stdout")
	simulateCmd.Flags().StringVar(&svgOut, "svg", "", "also draw the compartments to this svg file")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "fit all parameters to the observed deaths",
		Args:  cobra.NoArgs,
		RunE:  runFit,
	}
	fitCmd.Flags().StringVar(&svgOut, "svg", "", "also draw fitted deaths against the observed series to this svg file")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "refit the lockdown curve to the observed deaths",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().StringVar(&svgOut, "svg", "", "also draw optimized deaths against the observed series to this svg file")

	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "simulate, fit, then refit the lockdown curve",
		Args:  cobra.NoArgs,
		RunE:  runPipeline,
	}
	pipelineCmd.Flags().StringVar(&svgOut, "svg", "", "also draw deaths per stage against the observed series to this svg file")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "tabulate final deaths over a grid of lockdown parameters",
		Args:  cobra.NoArgs,
		RunE:  runScan,
	}
	scanCmd.Flags().Float64SliceVar(&aValues, "a", []float64{0, 0.25, 0.5, 0.75, 1}, "lockdown_a values")
	scanCmd.Flags().Float64SliceVar(&bValues, "b", []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}, "lockdown_b values")

	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "write a noisy observed series generated from the configured parameters",
		Args:  cobra.NoArgs,
		RunE:  runSynth,
	}
	synthCmd.Flags().Float64Var(&noise, "noise", 0, "relative noise level")
	synthCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	synthCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list integrators, solvers, objectives and forms",
		Args:  cobra.NoArgs,
		RunE:  listComponents,
	}

	rootCmd.AddCommand(simulateCmd, fitCmd, optimizeCmd, pipelineCmd, scanCmd, synthCmd, presetsCmd, listCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
