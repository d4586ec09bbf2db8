package metrics

import (
	"math"

	"github.com/san-kum/episim/internal/epidemic"
)

type PeakInfected struct {
	name string
	peak float64
}

func NewPeakInfected() *PeakInfected {
	return &PeakInfected{name: "peak_infected", peak: math.Inf(-1)}
}

func (p *PeakInfected) Name() string { return p.name }

func (p *PeakInfected) Observe(x epidemic.Compartments, t float64) {
	p.peak = math.Max(p.peak, x.I)
}

func (p *PeakInfected) Value() float64 {
	if math.IsInf(p.peak, -1) {
		return 0
	}
	return p.peak
}

func (p *PeakInfected) Reset() {
	p.peak = math.Inf(-1)
}

// PeakDay is the time at which infections peak. Ties keep the earliest.
type PeakDay struct {
	name string
	peak float64
	at   float64
}

func NewPeakDay() *PeakDay {
	return &PeakDay{name: "peak_day", peak: math.Inf(-1)}
}

func (p *PeakDay) Name() string { return p.name }

func (p *PeakDay) Observe(x epidemic.Compartments, t float64) {
	if x.I > p.peak {
		p.peak = x.I
		p.at = t
	}
}

func (p *PeakDay) Value() float64 { return p.at }

func (p *PeakDay) Reset() {
	p.peak = math.Inf(-1)
	p.at = 0
}

type FinalDeaths struct {
	name string
	last float64
}

func NewFinalDeaths() *FinalDeaths {
	return &FinalDeaths{name: "final_deaths"}
}

func (f *FinalDeaths) Name() string { return f.name }

func (f *FinalDeaths) Observe(x epidemic.Compartments, t float64) {
	f.last = x.D
}

func (f *FinalDeaths) Value() float64 { return f.last }

func (f *FinalDeaths) Reset() { f.last = 0 }
