// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInsufficientAccounts is returned when fewer than two eligible accounts
	// are available for generation.
	ErrInsufficientAccounts = errors.New("at least two active accounts are required")

	// ErrCapacityExhausted is returned when no calendar day with spare
	// capacity could be found inside the search horizon.
	ErrCapacityExhausted = errors.New("daily capacity exhausted")

	// ErrIllegalTransition is returned when a lifecycle operation targets a
	// task whose status does not allow it.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrImmutablePolicy is returned on any attempt to change or delete a
	// system strategy.
	ErrImmutablePolicy = errors.New("system strategy cannot be modified")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError describes a single field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel so errors.Is(err, ErrValidation) holds.
func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidation
	}
	return e.Err
}

// NewValidationError creates a ValidationError for field. When err is nil the
// error wraps ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// TransitionError records the status pair of a rejected lifecycle change.
type TransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move task from %s to %s", e.From, e.To)
}

// Unwrap ties every TransitionError to ErrIllegalTransition.
func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// CapacityError reports where the capacity search gave up.
type CapacityError struct {
	StartDate string
	Horizon   int
	Limit     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"no day with fewer than %d tasks within %d days of %s",
		e.Limit,
		e.Horizon,
		e.StartDate,
	)
}

// Unwrap ties every CapacityError to ErrCapacityExhausted.
func (e *CapacityError) Unwrap() error {
	return ErrCapacityExhausted
}
