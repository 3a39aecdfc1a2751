package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)
	ErrStudySetNotFound = fmt.Errorf("%w: study set", ErrNotFound)

	// Validation errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidSE        = errors.New("standard error must be positive")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrNotEstimable     = errors.New("estimate not computable")

	// Iteration errors
	ErrNoConvergence = errors.New("trim-and-fill did not converge")
	ErrBadSide       = errors.New("unknown funnel side")
	ErrBadEstimator  = errors.New("unknown missing-count estimator")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewInsufficientDataError(k, needed int) error {
	return fmt.Errorf("%w: have %d studies, need at least %d", ErrInsufficientData, k, needed)
}

func NewConvergenceError(iterations int) error {
	return fmt.Errorf("%w after %d iterations", ErrNoConvergence, iterations)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidSE) ||
		errors.Is(err, ErrBadSide) ||
		errors.Is(err, ErrBadEstimator)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsNotEstimable(err error) bool {
	return errors.Is(err, ErrNotEstimable)
}

func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrNoConvergence)
}
