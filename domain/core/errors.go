package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Training input errors
	ErrInvalidThreshold    = errors.New("confidence threshold must be in (0, 1]")
	ErrInvalidTestFraction = errors.New("test fraction must be in (0, 1)")
	ErrInvalidIterations   = errors.New("max iterations must be >= 0")
	ErrEmptyDataset        = errors.New("dataset has no samples")
	ErrDegenerateSplit     = errors.New("split produced an empty pool")
	ErrSingleClass         = errors.New("target column needs at least 2 distinct labels")
	ErrSchemaMismatch      = errors.New("feature table does not match schema")
	ErrUnknownAlgorithm    = errors.New("unknown classifier algorithm")

	// Evaluation errors
	ErrLabelMismatch = errors.New("predicted and true label sequences differ in length")

	// Classifier errors
	ErrClassifierFailure = errors.New("classifier failure")
	ErrNotFitted         = errors.New("classifier has not been fitted")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewClassifierError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrClassifierFailure, op, err)
}

func NewSchemaError(column string, reason string) error {
	return fmt.Errorf("%w: column %q %s", ErrSchemaMismatch, column, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err was caused by caller-supplied training input
// rather than by the classifier or the environment.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrInvalidTestFraction) ||
		errors.Is(err, ErrInvalidIterations) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrDegenerateSplit) ||
		errors.Is(err, ErrSingleClass) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrUnknownAlgorithm) ||
		errors.Is(err, ErrLabelMismatch)
}

func IsClassifierError(err error) bool {
	return errors.Is(err, ErrClassifierFailure) || errors.Is(err, ErrNotFitted)
}
