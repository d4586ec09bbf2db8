package epidemic

import (
	"math"
	"testing"
)

func TestInterventionIntensityLimits(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		t    float64
		want float64
	}{
		{"far past", 0.3, 0.5, -1e6, 1},
		{"far future", 0.3, 0.5, 1e6, 0},
		{"midpoint", 0, 1, 0, 0.5},
		{"flat", 0, 0, 42, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterventionIntensity(tt.a, tt.b, tt.t)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterventionIntensityMonotone(t *testing.T) {
	prev := InterventionIntensity(0.1, 0.2, -100)
	for x := -99.0; x <= 100; x++ {
		cur := InterventionIntensity(0.1, 0.2, x)
		if cur > prev {
			t.Fatalf("intensity increased at t=%v: %v > %v", x, cur, prev)
		}
		prev = cur
	}
}

func TestTransmissionRateBounded(t *testing.T) {
	params := []struct{ a, b, k float64 }{
		{0, 0, 0.4},
		{-3, 0.2, 1.5},
		{5, -0.7, 0.9},
		{800, 10, 2},
		{-800, -10, 2},
	}

	for _, p := range params {
		for x := -1000.0; x <= 1000; x += 7.5 {
			got := TransmissionRate(p.a, p.b, p.k, x)
			if math.IsNaN(got) || got < 0 || got > p.k {
				t.Fatalf("TransmissionRate(%v, %v, %v, %v) = %v out of [0, %v]", p.a, p.b, p.k, x, got, p.k)
			}
		}
	}
}

func TestRatesNoOverflow(t *testing.T) {
	huge := []float64{math.MaxFloat64, -math.MaxFloat64, 1e308, -1e308, 710, -710}
	for _, z := range huge {
		if v := TransmissionRate(z, 0, 1, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("TransmissionRate overflowed for exponent %v: %v", z, v)
		}
		if v := InterventionIntensity(z, 0, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("InterventionIntensity overflowed for exponent %v: %v", z, v)
		}
	}
}

func TestTransmissionRateMatchesDirectForm(t *testing.T) {
	for x := 0.0; x < 50; x++ {
		direct := 0.4 / (1 + math.Exp(-1+0.05*x))
		if got := TransmissionRate(-1, 0.05, 0.4, x); math.Abs(got-direct) > 1e-15 {
			t.Fatalf("t=%v: got %v, want %v", x, got, direct)
		}
	}
}
