// Package export renders trajectories to standalone SVG documents.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/episim/internal/epidemic"
)

var ErrEmpty = errors.New("export: fewer than two points to draw")

// Series is one named polyline over a shared x axis.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

// CompartmentColors are the stroke colors for S, I, R and D.
var CompartmentColors = [4]string{"#4ea1ff", "#ff5f5f", "#5fd75f", "#d7d7d7"}

// TrajectorySeries splits tr into one series per compartment.
func TrajectorySeries(tr *epidemic.Trajectory) []Series {
	return []Series{
		{Name: "S", Color: CompartmentColors[0], Values: tr.S},
		{Name: "I", Color: CompartmentColors[1], Values: tr.I},
		{Name: "R", Color: CompartmentColors[2], Values: tr.R},
		{Name: "D", Color: CompartmentColors[3], Values: tr.D},
	}
}

// DeathSeries pairs the simulated deaths of tr with an observed series.
// observed may be nil.
func DeathSeries(tr *epidemic.Trajectory, observed []float64) []Series {
	out := []Series{{Name: "D", Color: CompartmentColors[3], Values: tr.D}}
	if len(observed) > 0 {
		out = append(out, Series{Name: "observed", Color: "#ffaf00", Values: observed})
	}
	return out
}

var stagePalette = []string{"#8a8a8a", "#4ea1ff", "#ff5f5f", "#5fd75f", "#d787ff"}

// StageDeaths draws the deaths of each named trajectory, then observed.
// names and trs must have equal length.
func StageDeaths(names []string, trs []*epidemic.Trajectory, observed []float64) []Series {
	out := make([]Series, 0, len(trs)+1)
	for i, tr := range trs {
		out = append(out, Series{
			Name:   names[i],
			Color:  stagePalette[i%len(stagePalette)],
			Values: tr.D,
		})
	}
	if len(observed) > 0 {
		out = append(out, Series{Name: "observed", Color: "#ffaf00", Values: observed})
	}
	return out
}

// WriteSVG draws every series against times on a width x height canvas with
// a legend in the top left corner.
func WriteSVG(w io.Writer, times []float64, series []Series, width, height int) error {
	if len(times) < 2 {
		return ErrEmpty
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		minY = math.Min(minY, floats.Min(s.Values))
		maxY = math.Max(maxY, floats.Max(s.Values))
	}
	if math.IsInf(minY, 0) {
		return ErrEmpty
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	// 5% headroom above and below.
	minY -= rangeY * 0.05
	rangeY *= 1.1

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for _, s := range series {
		n := min(len(s.Values), len(times))
		if n < 2 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, s.Color)
		for i := 0; i < n; i++ {
			x := (times[i] - minX) / rangeX * float64(width)
			y := float64(height) - (s.Values[i]-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}

	for i, s := range series {
		y := 16 + i*14
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, y, s.Color, s.Name)
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
