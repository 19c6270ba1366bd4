// Package domain defines the semantic model, query types, ports, and errors
// shared by the cube compiler and the services around it.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SchemaValidationError indicates an authored schema is structurally invalid:
// duplicate hierarchy names, a missing primary key or primary-key table,
// or secondary tables without join fields.
type SchemaValidationError struct {
	Message string
}

func (e *SchemaValidationError) Error() string { return e.Message }

// ResolutionError indicates a name in a query or formula could not be
// resolved against the entity type.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string { return e.Message }

// CompilationError indicates a query that resolves but cannot be compiled,
// such as two hierarchies bound to one dimension slot.
type CompilationError struct {
	Message string
}

func (e *CompilationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchemaValidation creates a SchemaValidationError with a formatted message.
func ErrSchemaValidation(format string, args ...interface{}) *SchemaValidationError {
	return &SchemaValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrResolution creates a ResolutionError with a formatted message.
func ErrResolution(format string, args ...interface{}) *ResolutionError {
	return &ResolutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrCompilation creates a CompilationError with a formatted message.
func ErrCompilation(format string, args ...interface{}) *CompilationError {
	return &CompilationError{Message: fmt.Sprintf(format, args...)}
}
