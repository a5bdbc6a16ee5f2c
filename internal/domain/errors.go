// Package domain defines core types, interfaces, and errors for the metric query engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UnknownFieldError indicates a selection, filter, or sort references a field
// that is not part of the explore, its additional metrics, or its table calculations.
type UnknownFieldError struct {
	FieldID string
	Message string
}

func (e *UnknownFieldError) Error() string { return e.Message }

// MissingJoinError indicates a referenced table cannot be reached from the base table.
type MissingJoinError struct {
	Table   string
	Message string
}

func (e *MissingJoinError) Error() string { return e.Message }

// UnsupportedOperatorError indicates a filter operator has no SQL translation
// for the field type or dialect it was applied to.
type UnsupportedOperatorError struct {
	Operator ConditionalOperator
	Message  string
}

func (e *UnsupportedOperatorError) Error() string { return e.Message }

// UnsupportedDialectError indicates no SQL dialect is registered for a warehouse type.
type UnsupportedDialectError struct {
	Dialect string
	Message string
}

func (e *UnsupportedDialectError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownField creates an UnknownFieldError for the given field id.
func ErrUnknownField(fieldID string) *UnknownFieldError {
	return &UnknownFieldError{
		FieldID: fieldID,
		Message: fmt.Sprintf("field %q does not exist in explore", fieldID),
	}
}

// ErrMissingJoin creates a MissingJoinError with a formatted message.
func ErrMissingJoin(table, format string, args ...interface{}) *MissingJoinError {
	return &MissingJoinError{Table: table, Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedOperator creates an UnsupportedOperatorError with a formatted message.
func ErrUnsupportedOperator(op ConditionalOperator, format string, args ...interface{}) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Operator: op, Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedDialect creates an UnsupportedDialectError for the given dialect name.
func ErrUnsupportedDialect(name string) *UnsupportedDialectError {
	return &UnsupportedDialectError{
		Dialect: name,
		Message: fmt.Sprintf("unsupported warehouse dialect %q", name),
	}
}
