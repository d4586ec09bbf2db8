package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/observability"
)

// loadConfig layers defaults, preset, config file and changed flags, in
// that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("population") {
		cfg.Population = population
		if cfg.Initial.Total() != population {
			cfg.Initial = epidemic.Compartments{}
		}
	}
	if flags.Changed("days") {
		cfg.Days = days
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("solver") {
		cfg.Solver = solver
	}
	if flags.Changed("form") {
		cfg.Form = form
	}
	if flags.Changed("objective") {
		cfg.Intervention.Objective = objective
	}
	if flags.Changed("observed") {
		cfg.ObservedFile = observedFile
		cfg.Observed = nil
	}
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("clamp") {
		cfg.Clamp = clamp
	}
	if flags.Changed("grid") {
		cfg.Grid = gridLayout
	}
	if flags.Changed("max-iter") {
		cfg.Fit.MaxIterations = maxIter
	}
	if flags.Lookup("noise") != nil && flags.Changed("noise") {
		cfg.Synth.Noise = noise
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Synth.Seed = seed
	}

	return cfg, nil
}

// runtime holds the ambient services of one command invocation.
type runtime struct {
	log       logging.Logger
	collector *observability.Collector
	shutdown  []func(context.Context)
}

var initTracing = observability.InitTracing

// startRuntime builds the logger and tracer, and when --metrics-addr is set
// registers the collector on reg and serves it.
func startRuntime(ctx context.Context, reg *prometheus.Registry) (*runtime, error) {
	logCfg := logging.ConfigFromEnv()
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logFormat != "" {
		logCfg.Format = logFormat
	}
	rt := &runtime{log: logging.New(logCfg)}

	tp, err := initTracing(ctx, observability.TracingConfigFromEnv(traceExp), rt.log)
	if err != nil {
		return nil, err
	}
	rt.shutdown = append(rt.shutdown, func(ctx context.Context) {
		observability.ShutdownWithTimeout(ctx, tp, rt.log)
	})

	if metricsAddr != "" {
		if rt.collector, err = observability.NewCollector(reg); err != nil {
			rt.close()
			return nil, err
		}
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           rt.collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error(ctx, "metrics server failed", logging.Err(err))
			}
		}()
		rt.log.Info(ctx, "serving metrics", logging.String("addr", metricsAddr))
		rt.shutdown = append(rt.shutdown, func(ctx context.Context) {
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		})
	}

	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		rt.shutdown[i](context.Background())
	}
}

// prepare loads the config and builds the experiment with the runtime's
// logger and collector attached.
func prepare(cmd *cobra.Command) (*experiment.Experiment, *runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	rt, err := startRuntime(cmd.Context(), prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg,
		experiment.WithLogger(rt.log),
		experiment.WithCollector(rt.collector),
	)
	if err != nil {
		rt.close()
		return nil, nil, err
	}
	return exp, rt, nil
}
