package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrUnstable indicates the integration became numerically unstable.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched state/system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrInvalidGrid indicates an empty or non-increasing time grid.
	ErrInvalidGrid = errors.New("dynamo: invalid time grid")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// Canceled joins ErrContextCanceled with the context's own error so callers
// can match either.
func Canceled(err error) error {
	return errors.Join(ErrContextCanceled, err)
}

// Diverged marks cause as a numerical instability: the result matches both
// ErrUnstable and cause.
func Diverged(cause error) error {
	return &divergedError{cause: cause}
}

type divergedError struct {
	cause error
}

func (e *divergedError) Error() string { return e.cause.Error() }

func (e *divergedError) Unwrap() error { return e.cause }

func (e *divergedError) Is(target error) bool { return target == ErrUnstable }
