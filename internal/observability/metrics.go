package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the simulation and
// calibration pipeline. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Simulations        *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	SolverEvaluations  *prometheus.CounterVec
	FitDuration        *prometheus.HistogramVec
	FitConverged       *prometheus.GaugeVec
	FitChiSquare       *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "episim_simulations_total",
			Help: "Number of model integrations, labeled by outcome.",
		}, []string{"outcome"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "episim_simulation_duration_seconds",
			Help:    "Wall time of a single model integration.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		SolverEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "episim_solver_evaluations_total",
			Help: "Model evaluations requested by the least-squares solver, labeled by stage.",
		}, []string{"stage"}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "episim_fit_duration_seconds",
			Help:    "Wall time of a calibration stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		FitConverged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "episim_fit_converged",
			Help: "1 when the last run of a calibration stage met its tolerance, 0 otherwise.",
		}, []string{"stage"}),
		FitChiSquare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "episim_fit_chi_square",
			Help: "Sum of squared residuals at the end of the last calibration stage run.",
		}, []string{"stage"}),
	}

	var err error
	if c.Simulations, err = register(reg, c.Simulations); err != nil {
		return nil, err
	}
	if c.SimulationDuration, err = register(reg, c.SimulationDuration); err != nil {
		return nil, err
	}
	if c.SolverEvaluations, err = register(reg, c.SolverEvaluations); err != nil {
		return nil, err
	}
	if c.FitDuration, err = register(reg, c.FitDuration); err != nil {
		return nil, err
	}
	if c.FitConverged, err = register(reg, c.FitConverged); err != nil {
		return nil, err
	}
	if c.FitChiSquare, err = register(reg, c.FitChiSquare); err != nil {
		return nil, err
	}

	return c, nil
}

// register adds col to reg, reusing an identical collector that is already
// registered.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveSimulation records one integration.
func (c *Collector) ObserveSimulation(elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Simulations.WithLabelValues(outcome).Inc()
	c.SimulationDuration.Observe(elapsed.Seconds())
}

// ObserveFit records the end of a calibration stage.
func (c *Collector) ObserveFit(stage string, elapsed time.Duration, evaluations int, converged bool, chiSquare float64) {
	if c == nil {
		return
	}
	c.SolverEvaluations.WithLabelValues(stage).Add(float64(evaluations))
	c.FitDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	conv := 0.0
	if converged {
		conv = 1
	}
	c.FitConverged.WithLabelValues(stage).Set(conv)
	c.FitChiSquare.WithLabelValues(stage).Set(chiSquare)
}

// Handler exposes the registered metrics over HTTP.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
