package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error signals shared by every simulation engine. Callers match them with
// errors.Is; the typed errors below carry the offending inputs.
var (
	// ErrInvalidParameter indicates a parameter bundle failed validation
	// before any simulation step ran.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrComputation indicates a deterministic numerical domain error
	// (log of a non-positive argument, division by zero, non-finite result).
	ErrComputation = errors.New("computation error")

	// ErrInsufficientData indicates an observed series too short, or never
	// crossing the onset threshold, to calibrate a forecast.
	ErrInsufficientData = errors.New("insufficient data")
)

// ParameterError reports a single invalid parameter.
type ParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// NewParameterError builds a ParameterError.
func NewParameterError(field string, value any, reason string) error {
	return &ParameterError{Field: field, Value: value, Reason: reason}
}

// ComputationError reports a numerical failure together with the inputs
// that produced it.
type ComputationError struct {
	Op     string
	Inputs map[string]float64
	Reason string
}

func (e *ComputationError) Error() string {
	keys := make([]string, 0, len(e.Inputs))
	for k := range e.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, e.Inputs[k]))
	}
	return fmt.Sprintf("computation error in %s: %s (%s)", e.Op, e.Reason, strings.Join(parts, ", "))
}

func (e *ComputationError) Unwrap() error {
	return ErrComputation
}

// InsufficientDataError reports that a group's observed series cannot
// support calibration.
type InsufficientDataError struct {
	Group  string
	Have   int
	Need   int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for group %q: %s (have %d, need %d)", e.Group, e.Reason, e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}
