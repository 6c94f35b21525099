package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfig indicates a configuration violation detected before a run starts.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrStagnation indicates the adaptive controller could not make progress.
	ErrStagnation = errors.New("dynamo: adaptive step stagnated")

	// ErrField indicates the external field function failed or returned non-finite values.
	ErrField = errors.New("dynamo: field evaluation failed")

	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Regime  string
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	if e.Regime == "" {
		return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
	}
	return fmt.Sprintf("step %d (t=%.6g, %s): %v", e.Step, e.Time, e.Regime, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// Configf returns an error wrapping ErrConfig.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
