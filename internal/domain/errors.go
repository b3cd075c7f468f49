package domain

import "fmt"

// UnknownTypeError indicates a request named a query type absent from the
// catalog. Soft error: batch execution reports it per item, never panics.
type UnknownTypeError struct {
	Message string
}

func (e *UnknownTypeError) Error() string { return e.Message }

// ForbiddenFilterError indicates a filter field outside a config's
// whitelist. Hard compile-time error.
type ForbiddenFilterError struct {
	Message string
}

func (e *ForbiddenFilterError) Error() string { return e.Message }

// ValidationError indicates invalid input, including a custom generator
// missing a required filter value.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrUnknownType creates an UnknownTypeError with a formatted message.
func ErrUnknownType(format string, args ...interface{}) *UnknownTypeError {
	return &UnknownTypeError{Message: fmt.Sprintf(format, args...)}
}

// ErrForbiddenFilter creates a ForbiddenFilterError with a formatted message.
func ErrForbiddenFilter(format string, args ...interface{}) *ForbiddenFilterError {
	return &ForbiddenFilterError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
