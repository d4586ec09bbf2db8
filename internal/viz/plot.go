package viz

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/lsq"
)

const (
	plotWidth  = 80
	plotHeight = 12
)

// Compartments charts S, I, R and D on one set of axes.
func Compartments(tr *epidemic.Trajectory, caption string) string {
	if tr == nil || tr.Len() == 0 {
		return Subtle.Render("(empty trajectory)")
	}
	return asciigraph.PlotMany([][]float64{tr.S, tr.I, tr.R, tr.D},
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Default),
		asciigraph.SeriesLegends("S", "I", "R", "D"),
	)
}

// Deaths charts simulated cumulative deaths against the observed series.
func Deaths(tr *epidemic.Trajectory, observed []float64, caption string) string {
	if tr == nil || tr.Len() == 0 {
		return Subtle.Render("(empty trajectory)")
	}
	series := [][]float64{tr.D}
	legends := []string{"model"}
	colors := []asciigraph.AnsiColor{asciigraph.Red}
	if len(observed) > 0 {
		series = append(series, observed)
		legends = append(legends, "observed")
		colors = append(colors, asciigraph.Default)
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
	)
}

// Pipeline renders the three stages of a calibration run one under the
// other, each with its deaths chart.
func Pipeline(res *calibrate.PipelineResult) string {
	var b strings.Builder
	stages := []struct {
		title string
		tr    *epidemic.Trajectory
	}{
		{"before fit", res.Before},
		{"after fit", res.AfterFit},
		{"after intervention fit", res.AfterOptimize},
	}
	for i, st := range stages {
		if i > 0 {
			b.WriteString("\n" + Separator(plotWidth) + "\n\n")
		}
		b.WriteString(Header(st.title) + "\n\n")
		b.WriteString(Deaths(st.tr, res.Observed, "cumulative deaths: "+st.title) + "\n")
		if st.tr != nil && st.tr.Len() > 0 && len(res.Observed) > 0 {
			last := st.tr.Len() - 1
			b.WriteString(Metric("final deaths", fmt.Sprintf("%.2f", st.tr.D[last])))
			b.WriteString("   ")
			b.WriteString(Metric("observed", fmt.Sprintf("%.2f", res.Observed[len(res.Observed)-1])) + "\n")
		}
	}
	return b.String()
}

// ParamTable writes one row per parameter and one column per named set.
func ParamTable(w io.Writer, headers []string, sets ...epidemic.Params) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PARAM\t%s\n", strings.ToUpper(strings.Join(headers, "\t")))

	vectors := make([][]float64, len(sets))
	for i, p := range sets {
		vectors[i] = p.Vector()
	}
	for j, name := range epidemic.Names() {
		fmt.Fprint(tw, name)
		for _, v := range vectors {
			fmt.Fprintf(tw, "\t%.6g", v[j])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// MetricsTable writes trajectory metrics in a stable order.
func MetricsTable(w io.Writer, metrics map[string]float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, name := range sortedNames(metrics) {
		fmt.Fprintf(tw, "%s\t%.6g\n", name, metrics[name])
	}
	return tw.Flush()
}

// Report renders a solver report under a styled header.
func Report(title string, rep *lsq.Report) string {
	if rep == nil {
		return ""
	}
	return Header(title) + "  " + Status(rep.Converged) + "\n\n" + rep.String()
}

// ScanGrid renders final deaths over the lockdown grid, one sparkline row
// per lockdown_a value, with the numeric range underneath.
func ScanGrid(scan *calibrate.Scan) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range scan.Final {
		for _, v := range row {
			if !math.IsNaN(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	if math.IsInf(lo, 1) {
		return Subtle.Render("(no successful cells)")
	}

	var b strings.Builder
	b.WriteString(Subtle.Render(fmt.Sprintf("lockdown_b: %.3g .. %.3g →", scan.B[0], scan.B[len(scan.B)-1])) + "\n")
	for i, a := range scan.A {
		fmt.Fprintf(&b, "a=%-8.3g %s\n", a, SparklineChart(scan.Final[i], lo, hi))
	}
	b.WriteString(Metric("final deaths", fmt.Sprintf("%.2f .. %.2f", lo, hi)) + "\n")
	return b.String()
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
