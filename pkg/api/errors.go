package api

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is matched by every *ValidationError via errors.Is.
var ErrInvalidParams = errors.New("invalid task parameters")

// ValidationError reports malformed or out-of-range task parameters.
// It is returned synchronously by Supervisor.Start; no worker is created.
type ValidationError struct {
	// Field names the offending parameter, e.g. "min" or "maxValue".
	Field string
	// Input is the raw text supplied, if any.
	Input string
	// Reason is a short human readable explanation.
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, input, reason string) *ValidationError {
	return &ValidationError{Field: field, Input: input, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParams
}

// ProducerError wraps an unexpected fault raised inside a producer step.
// It is delivered as the error of a StatusFailed terminal notification.
type ProducerError struct {
	Task string
	Err  error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer %s failed: %v", e.Task, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}

// ObserverError reports a panic raised by an Observer callback. The worker
// that made the call fails with it; the producer is not at fault.
type ObserverError struct {
	Task string
	// Callback is the Observer method that panicked, e.g. "OnValue".
	Callback string
	Err      error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %s of %s panicked: %v", e.Callback, e.Task, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
