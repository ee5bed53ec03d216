// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrUndefinedValue   = errors.New("value undefined")
	ErrModelFit         = errors.New("model fit failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrCacheMiss        = errors.New("cache miss")
	ErrTickerInvalid    = errors.New("invalid ticker")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// DataError represents missing or malformed price data for a ticker.
type DataError struct {
	Ticker  string
	Stage   string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Stage, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Stage, e.Ticker, e.Message)
}

// Unwrap always includes ErrDataUnavailable so errors.Is matches the
// sentinel whatever the cause.
func (e *DataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataUnavailable}
	}
	return []error{ErrDataUnavailable, e.Err}
}

// NewDataError creates a new DataError.
func NewDataError(ticker, stage, message string, err error) *DataError {
	return &DataError{
		Ticker:  ticker,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// ModelError represents a regressor that failed to fit or predict.
type ModelError struct {
	Model     string
	Operation string
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error [%s] %s: %v", e.Model, e.Operation, e.Err)
}

func (e *ModelError) Unwrap() []error {
	return []error{ErrModelFit, e.Err}
}

// NewModelError creates a new ModelError.
func NewModelError(model, operation string, err error) *ModelError {
	return &ModelError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents an invalid parameter.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
