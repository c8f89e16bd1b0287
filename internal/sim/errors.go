package sim

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidInput indicates an individual or intake parameter outside its valid domain.
	ErrInvalidInput = errors.New("childsim: invalid input")

	// ErrInvalidConfiguration indicates an unusable step size or horizon.
	ErrInvalidConfiguration = errors.New("childsim: invalid configuration")

	// ErrNumericDegeneracy indicates a division by zero or a non-finite intermediate value.
	ErrNumericDegeneracy = errors.New("childsim: numeric degeneracy")

	// ErrIndexOutOfRange indicates a tabulated intake lookup past the end of the table.
	ErrIndexOutOfRange = errors.New("childsim: intake index out of range")

	// ErrInvalidState indicates a state vector containing NaN or Inf after a step.
	ErrInvalidState = errors.New("childsim: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched cohort and vector sizes.
	ErrDimensionMismatch = errors.New("childsim: dimension mismatch")
)

// SimulationError wraps an error with the step at which it happened.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
