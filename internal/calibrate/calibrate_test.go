package calibrate_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/logging"
	"github.com/san-kum/episim/internal/lsq"
	"github.com/san-kum/episim/internal/sim"
)

var truth = epidemic.Params{
	BetaA:       -0.5,
	BetaB:       0.02,
	BetaK:       0.45,
	Slipthrough: 0.1,
	LockdownA:   0.6,
	LockdownB:   0.3,
	Gamma:       0.1,
	Rho:         0.02,
}

type countingRecorder struct{ calls int }

func (c *countingRecorder) ObserveSimulation(time.Duration, error) { c.calls++ }

func newSimulator(days int, opts ...sim.Option) *sim.Simulator {
	grid, err := dynamo.DailyGrid(days)
	Expect(err).NotTo(HaveOccurred())
	s, err := sim.New(1000, grid, epidemic.Compartments{S: 999, I: 1}, integrators.NewRK45(), opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

// noisy returns the deaths series under p with multiplicative noise, kept
// non-negative.
func noisy(s *sim.Simulator, p epidemic.Params, level float64, seed int64) []float64 {
	dead, err := s.DeadSeries(context.Background(), p)
	Expect(err).NotTo(HaveOccurred())
	rng := rand.New(rand.NewSource(seed))
	for i := range dead {
		dead[i] = math.Max(0, dead[i]*(1+level*rng.NormFloat64()))
	}
	return dead
}

func sse(s *sim.Simulator, p epidemic.Params, observed []float64) float64 {
	dead, err := s.DeadSeries(context.Background(), p)
	Expect(err).NotTo(HaveOccurred())
	total := 0.0
	for i := range dead {
		d := dead[i] - observed[i]
		total += d * d
	}
	return total
}

// fixedSolver returns the same point whatever the problem.
type fixedSolver struct{ values []float64 }

func (f fixedSolver) Solve(_ context.Context, prob *lsq.Problem) (*lsq.Result, error) {
	n := len(f.values)
	rep := &lsq.Report{
		Method:    "fixed",
		Names:     prob.Names,
		Initial:   prob.Initial,
		Values:    f.values,
		Stderr:    make([]float64, n),
		AtLower:   make([]bool, n),
		AtUpper:   make([]bool, n),
		NData:     len(prob.Target),
		NVarys:    n,
		Converged: true,
	}
	return &lsq.Result{Params: append([]float64(nil), f.values...), Report: rep}, nil
}

var _ = Describe("Calibrator", func() {
	var (
		s        *sim.Simulator
		observed []float64
		guess    epidemic.Params
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newSimulator(60)
		observed = noisy(s, truth, 0.05, 42)
		guess = truth
		guess.BetaK = 0.3
		guess.Gamma = 0.15
		guess.Rho = 0.03
	})

	DescribeTable("never ends worse than its starting point",
		func(solver lsq.Solver) {
			cal := calibrate.NewCalibrator(s, solver)
			fitted, report, err := cal.Fit(ctx, guess, observed)
			Expect(err).NotTo(HaveOccurred())
			Expect(report).NotTo(BeNil())
			Expect(report.NData).To(Equal(60))
			Expect(report.NVarys).To(Equal(epidemic.NumParams))
			Expect(sse(s, fitted, observed)).To(BeNumerically("<=", sse(s, guess, observed)))
		},
		Entry("levenberg-marquardt", lsq.NewLevenbergMarquardt()),
		Entry("nelder-mead", lsq.NewNelderMead()),
	)

	It("reports the fitted values under their parameter names", func() {
		fitted, report, err := calibrate.NewCalibrator(s, nil).Fit(ctx, guess, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Names).To(Equal(epidemic.Names()))
		gamma, ok := report.Value(epidemic.NameGamma)
		Expect(ok).To(BeTrue())
		Expect(gamma).To(Equal(fitted.Gamma))
		Expect(report.String()).To(ContainSubstring("beta_k:"))
	})

	It("rejects an observed series of the wrong length before integrating", func() {
		rec := &countingRecorder{}
		s = newSimulator(60, sim.WithRecorder(rec))

		current := guess
		got, report, err := calibrate.NewCalibrator(s, nil).Fit(ctx, current, observed[:10])
		Expect(errors.Is(err, sim.ErrInvalidInput)).To(BeTrue())
		Expect(report).To(BeNil())
		Expect(got).To(Equal(current))
		Expect(rec.calls).To(BeZero())
	})

	It("rejects non-finite observations", func() {
		observed[5] = math.NaN()
		_, _, err := calibrate.NewCalibrator(s, nil).Fit(ctx, guess, observed)
		Expect(errors.Is(err, sim.ErrInvalidInput)).To(BeTrue())
	})

	It("wraps a model failure at the initial guess in ErrFitFailed", func() {
		strict := newSimulator(60, sim.WithStrictParams())
		bad := guess
		bad.Rho = 2

		_, _, err := calibrate.NewCalibrator(strict, nil).Fit(ctx, bad, observed)
		Expect(errors.Is(err, calibrate.ErrFitFailed)).To(BeTrue())
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("projects the fit onto the parameter domain when Clamp is set", func() {
		wild := []float64{-0.5, 0.02, -0.3, 1.4, 0.6, 0.3, -0.1, 1.2}
		cal := calibrate.NewCalibrator(s, fixedSolver{values: wild})

		raw, _, err := cal.Fit(ctx, guess, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw.Validate()).To(MatchError(dynamo.ErrParameterBounds))

		cal.Clamp = true
		clamped, _, err := cal.Fit(ctx, guess, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(clamped.Validate()).To(Succeed())
		Expect(clamped).To(Equal(raw.Clamp()))
		Expect(clamped.BetaK).To(Equal(0.0))
		Expect(clamped.Slipthrough).To(Equal(1.0))
		Expect(clamped.Gamma).To(Equal(0.0))
		Expect(clamped.Rho).To(Equal(1.0))
	})

	It("logs the solver report at info level", func() {
		var buf bytes.Buffer
		cal := calibrate.NewCalibrator(s, fixedSolver{values: truth.Vector()})
		cal.Log = logging.New(logging.Config{Level: "info", Format: "json", Writer: &buf})

		_, _, err := cal.Fit(ctx, guess, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring(`"msg":"calibration report"`))
		Expect(buf.String()).To(ContainSubstring("[[Fit Statistics]]"))
	})

	It("stops when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := calibrate.NewCalibrator(s, nil).Fit(cctx, guess, observed)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("InterventionOptimizer", func() {
	var (
		s   *sim.Simulator
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newSimulator(50)
	})

	It("matches the final observed death count", func() {
		observed, err := s.DeadSeries(ctx, truth)
		Expect(err).NotTo(HaveOccurred())

		current := truth
		current.LockdownA = 0.9
		current.LockdownB = 0.9

		opt := calibrate.NewInterventionOptimizer(s, nil)
		got, report, err := opt.Optimize(ctx, current, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.NData).To(Equal(1))
		Expect(report.Initial).To(Equal([]float64{calibrate.DefaultInterventionGuess, calibrate.DefaultInterventionGuess}))

		dead, err := s.DeadSeries(ctx, got)
		Expect(err).NotTo(HaveOccurred())
		final := observed[len(observed)-1]
		Expect(math.Abs(dead[len(dead)-1]-final) / final).To(BeNumerically("<", 1e-3))
	})

	It("puts the final count at the observed mean under the broadcast objective", func() {
		truthDead, err := s.DeadSeries(ctx, truth)
		Expect(err).NotTo(HaveOccurred())
		reachable := truthDead[len(truthDead)-1]

		// A straight ramp from 0 to twice the reachable total has that total
		// as its mean while ending far above it.
		observed := make([]float64, len(truthDead))
		for i := range observed {
			observed[i] = 2 * reachable * float64(i) / float64(len(observed)-1)
		}
		mean := 0.0
		for _, v := range observed {
			mean += v
		}
		mean /= float64(len(observed))

		opt := calibrate.NewInterventionOptimizer(s, nil)
		opt.Objective = calibrate.ObjectiveBroadcast
		got, report, err := opt.Optimize(ctx, truth, observed)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.NData).To(Equal(len(observed)))

		dead, err := s.DeadSeries(ctx, got)
		Expect(err).NotTo(HaveOccurred())
		Expect(math.Abs(dead[len(dead)-1]-mean) / mean).To(BeNumerically("<", 1e-3))
	})

	It("applies the fitted values rather than the starting guess", func() {
		observed, err := s.DeadSeries(ctx, truth)
		Expect(err).NotTo(HaveOccurred())

		got, report, err := calibrate.NewInterventionOptimizer(s, nil).Optimize(ctx, truth, observed)
		Expect(err).NotTo(HaveOccurred())
		a, _ := report.Value(epidemic.NameLockdownA)
		b, _ := report.Value(epidemic.NameLockdownB)
		Expect(got.LockdownA).To(Equal(a))
		Expect(got.LockdownB).To(Equal(b))
	})

	DescribeTable("keeps lockdown parameters in [0, 1] and leaves the rest alone",
		func(objective calibrate.Objective, solver lsq.Solver, seed int64) {
			rng := rand.New(rand.NewSource(seed))
			current := epidemic.Params{
				BetaA:       rng.Float64()*4 - 2,
				BetaB:       rng.Float64()*0.2 - 0.1,
				BetaK:       rng.Float64() * 1.2,
				Slipthrough: rng.Float64(),
				LockdownA:   rng.Float64()*10 - 5,
				LockdownB:   rng.Float64()*10 - 5,
				Gamma:       rng.Float64() * 0.4,
				Rho:         rng.Float64() * 0.1,
			}
			// The balanced form stays bounded for any of these draws; the
			// published one can blow up when slipthrough exceeds lockdown.
			balanced := newSimulator(50, sim.WithForm(epidemic.FormBalanced))
			observed := noisy(balanced, truth, 0.1, seed)

			opt := calibrate.NewInterventionOptimizer(balanced, solver)
			opt.Objective = objective
			got, _, err := opt.Optimize(ctx, current, observed)
			Expect(err).NotTo(HaveOccurred())

			Expect(got.LockdownA).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
			Expect(got.LockdownB).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))

			rest := got
			rest.LockdownA, rest.LockdownB = current.LockdownA, current.LockdownB
			Expect(rest).To(Equal(current))
		},
		Entry("final, lm, seed 1", calibrate.ObjectiveFinal, lsq.NewLevenbergMarquardt(), int64(1)),
		Entry("final, lm, seed 2", calibrate.ObjectiveFinal, lsq.NewLevenbergMarquardt(), int64(2)),
		Entry("final, lm, seed 3", calibrate.ObjectiveFinal, lsq.NewLevenbergMarquardt(), int64(3)),
		Entry("curve, lm, seed 4", calibrate.ObjectiveCurve, lsq.NewLevenbergMarquardt(), int64(4)),
		Entry("final, nelder-mead, seed 5", calibrate.ObjectiveFinal, lsq.NewNelderMead(), int64(5)),
		Entry("curve, nelder-mead, seed 6", calibrate.ObjectiveCurve, lsq.NewNelderMead(), int64(6)),
		Entry("broadcast, lm, seed 7", calibrate.ObjectiveBroadcast, lsq.NewLevenbergMarquardt(), int64(7)),
	)

	It("parses objective names", func() {
		o, ok := calibrate.ParseObjective("curve")
		Expect(ok).To(BeTrue())
		Expect(o).To(Equal(calibrate.ObjectiveCurve))
		o, ok = calibrate.ParseObjective("")
		Expect(ok).To(BeTrue())
		Expect(o).To(Equal(calibrate.ObjectiveFinal))
		o, ok = calibrate.ParseObjective("broadcast")
		Expect(ok).To(BeTrue())
		Expect(o).To(Equal(calibrate.ObjectiveBroadcast))
		Expect(o.String()).To(Equal("broadcast"))
		_, ok = calibrate.ParseObjective("mean")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ScanIntervention", func() {
	It("tabulates final deaths and finds the cell nearest a target", func() {
		ctx := context.Background()
		s := newSimulator(40)
		as := []float64{0, 0.5, 1}
		bs := []float64{0, 0.25, 0.5, 1}

		scan, err := calibrate.ScanIntervention(ctx, s, truth, as, bs)
		Expect(err).NotTo(HaveOccurred())
		Expect(scan.Final).To(HaveLen(3))
		for i := range scan.Final {
			Expect(scan.Final[i]).To(HaveLen(4))
		}

		p := truth
		p.LockdownA, p.LockdownB = 0.5, 0.25
		dead, err := s.DeadSeries(ctx, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(scan.Final[1][1]).To(Equal(dead[len(dead)-1]))

		a, b, final, ok := scan.Closest(dead[len(dead)-1])
		Expect(ok).To(BeTrue())
		Expect(final).To(Equal(dead[len(dead)-1]))
		Expect([]float64{a, b}).To(Equal([]float64{0.5, 0.25}))
	})

	It("rejects unknown parameter names", func() {
		_, err := calibrate.NewGridSearch([]string{"lockdown_c"}, [][]float64{{0}})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RunPipeline", func() {
	It("returns all three stages and commits the final parameters", func() {
		ctx := context.Background()
		s := newSimulator(50)
		observed := noisy(s, truth, 0.05, 7)

		start := truth
		start.BetaK = 0.35
		model := sim.NewModel(s, start)

		res, err := calibrate.RunPipeline(ctx, model,
			calibrate.NewCalibrator(s, nil),
			calibrate.NewInterventionOptimizer(s, nil),
			observed,
		)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Initial).To(Equal(start))
		Expect(res.Before.Len()).To(Equal(50))
		Expect(res.AfterFit.Len()).To(Equal(50))
		Expect(res.AfterOptimize.Len()).To(Equal(50))
		Expect(res.FitReport).NotTo(BeNil())
		Expect(res.OptimizeReport).NotTo(BeNil())
		Expect(model.Params()).To(Equal(res.Optimized))

		Expect(res.Optimized.BetaK).To(Equal(res.Fitted.BetaK))
		Expect(res.Optimized.LockdownA).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
	})
})
