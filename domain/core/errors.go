package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrRunNotFound      = fmt.Errorf("%w: run", ErrNotFound)
	ErrSubjectNotFound  = fmt.Errorf("%w: subject", ErrNotFound)
	ErrManifestNotFound = fmt.Errorf("%w: manifest", ErrNotFound)

	// Distance-rule errors
	ErrConfiguration = errors.New("invalid configuration")
	ErrBounds        = errors.New("bin range out of bounds")
	ErrFit           = errors.New("exponential fit failed")
	ErrShapeMismatch = errors.New("matrix shape mismatch")
	ErrNonFinite     = errors.New("non-finite value in input")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewConfigurationError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrConfiguration, field, reason)
}

func NewBoundsError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBounds, fmt.Sprintf(format, args...))
}

func NewFitError(reason string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrFit, reason, cause)
	}
	return fmt.Errorf("%w: %s", ErrFit, reason)
}

func NewShapeError(what string, wantR, wantC, gotR, gotC int) error {
	return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, what, gotR, gotC, wantR, wantC)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCallerError reports errors caused by bad arguments rather than by the data.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrBounds) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrNonFinite)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrFit)
}
