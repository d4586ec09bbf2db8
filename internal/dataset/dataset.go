// Package dataset reads and writes observed cumulative-deaths series and
// generates synthetic ones from a simulated trajectory.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/episim/internal/epidemic"
)

var ErrInvalidSeries = errors.New("dataset: invalid series")

// deathColumns are the header names accepted for the deaths column, in
// order of preference.
var deathColumns = []string{"deaths", "dead", "d"}

// Load reads an observed series from a CSV file. See Read.
func Load(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	series, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// Read parses a single-column series or a day,deaths table. A header row is
// optional; when present, the deaths column is found by name, otherwise the
// last column is used.
func Read(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidSeries)
	}

	col := -1
	if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][len(records[0])-1]), 64); err != nil {
		col = headerColumn(records[0])
		if col < 0 {
			return nil, fmt.Errorf("%w: no deaths column in header %v", ErrInvalidSeries, records[0])
		}
		records = records[1:]
	}

	series := make([]float64, 0, len(records))
	for i, rec := range records {
		c := col
		if c < 0 {
			c = len(rec) - 1
		}
		if c >= len(rec) {
			return nil, fmt.Errorf("%w: row %d has %d fields", ErrInvalidSeries, i+1, len(rec))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidSeries, i+1, err)
		}
		series = append(series, v)
	}

	if err := Validate(series); err != nil {
		return nil, err
	}
	return series, nil
}

func headerColumn(header []string) int {
	for _, want := range deathColumns {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

// Validate rejects empty series and negative or non-finite values.
func Validate(series []float64) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSeries)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is not finite", ErrInvalidSeries, i)
		}
		if v < 0 {
			return fmt.Errorf("%w: value %d is negative (%g)", ErrInvalidSeries, i, v)
		}
	}
	return nil
}

// Write emits a day,deaths table.
func Write(w io.Writer, series []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "deaths"}); err != nil {
		return err
	}
	for day, v := range series {
		if err := cw.Write([]string{strconv.Itoa(day), strconv.FormatFloat(v, 'f', 6, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func Save(path string, series []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTrajectory emits every compartment of tr, one row per sample.
func WriteTrajectory(w io.Writer, tr *epidemic.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "s", "i", "r", "d"}); err != nil {
		return err
	}
	for k := 0; k < tr.Len(); k++ {
		row := []string{
			strconv.FormatFloat(tr.Times[k], 'f', 6, 64),
			strconv.FormatFloat(tr.S[k], 'f', 6, 64),
			strconv.FormatFloat(tr.I[k], 'f', 6, 64),
			strconv.FormatFloat(tr.R[k], 'f', 6, 64),
			strconv.FormatFloat(tr.D[k], 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Synthesize perturbs the deaths of tr with multiplicative Gaussian noise of
// relative size noise. The result is clamped at zero and made
// non-decreasing, as a reported cumulative count would be.
func Synthesize(tr *epidemic.Trajectory, noise float64, seed int64) ([]float64, error) {
	if noise < 0 || math.IsNaN(noise) {
		return nil, fmt.Errorf("%w: noise must be non-negative, got %g", ErrInvalidSeries, noise)
	}
	factor := distuv.Normal{Mu: 1, Sigma: noise, Src: rand.NewPCG(uint64(seed), 0)}

	out := make([]float64, tr.Len())
	running := 0.0
	for k, d := range tr.D {
		v := math.Max(0, d*factor.Rand())
		running = math.Max(running, v)
		out[k] = running
	}
	return out, nil
}
