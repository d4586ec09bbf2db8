package sim

import (
	"errors"

	"github.com/san-kum/episim/internal/epidemic"
)

// ErrInvalidInput is returned when simulator inputs have the wrong shape or
// values, before any integration runs.
var ErrInvalidInput = errors.New("sim: invalid input")

// Metric summarises a trajectory one sample at a time.
type Metric interface {
	Name() string
	Observe(c epidemic.Compartments, t float64)
	Value() float64
	Reset()
}

type Option func(*Simulator)

// WithStrictParams rejects out-of-domain parameter sets before integrating.
func WithStrictParams() Option {
	return func(s *Simulator) { s.strict = true }
}

// WithForm selects the susceptible-outflow form of the derivative.
func WithForm(form epidemic.Form) Option {
	return func(s *Simulator) { s.system.Form = form }
}

// WithRecorder records every integration on rec.
func WithRecorder(rec Recorder) Option {
	return func(s *Simulator) { s.recorder = rec }
}
