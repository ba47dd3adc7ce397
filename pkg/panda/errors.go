package panda

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported PANDA format version")
	ErrMalformedFile      = errors.New("malformed PANDA file")
	ErrMissingField       = errors.New("missing PANDA field")
	ErrInvalidField       = errors.New("invalid PANDA field")
	ErrMalformedSpectrum  = errors.New("malformed harmonic spectrum")
	ErrEmptySpectrum      = errors.New("harmonic spectrum has no non-zero entries")
	ErrSpectrumOrder      = errors.New("harmonic orders must be non-negative, unique and increasing")
	ErrSpectrumLength     = errors.New("harmonic orders, magnitudes and phases must have equal length")
)

// ValidationError describes a single field that violates the PANDA format rules
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidField, e.Err}
	}
	return []error{ErrInvalidField}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
