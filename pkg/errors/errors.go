// Package errors provides custom error types for undrdg.
// These errors enable programmatic error checking with errors.Is and
// errors.As across parsers, dataset writers and the CLI.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Join is an alias for the standard library errors.Join.
var Join = errors.Join

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors
var (
	// ErrNotFound indicates that a requested file, directory or entry was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a name was already registered
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorrupted indicates that stored or decoded data is inconsistent
	ErrCorrupted = errors.New("corrupted")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrClosed indicates use of a file or debouncer after Close
	ErrClosed = errors.New("already closed")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// AlreadyExistsError is returned when a file or directory name is added
// twice to the same index during one session.
type AlreadyExistsError struct {
	Name  string
	Index string
}

// Error implements the error interface
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("attempted to add the file or directory %q twice in %s", e.Name, e.Index)
}

// Is implements errors.Is support
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(name, index string) *AlreadyExistsError {
	return &AlreadyExistsError{Name: name, Index: index}
}

// DuplicateError is returned when a loaded index lists the same name twice.
type DuplicateError struct {
	Name  string
	Index string
}

// Error implements the error interface
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate file or directory %q in %s", e.Name, e.Index)
}

// Is implements errors.Is support
func (e *DuplicateError) Is(target error) bool {
	return target == ErrCorrupted
}

// NewDuplicateError creates a new DuplicateError
func NewDuplicateError(name, index string) *DuplicateError {
	return &DuplicateError{Name: name, Index: index}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ParseError represents an error when decoding a file format
type ParseError struct {
	Format  string // "aerdat1", "aerdat2", "nmnist", "json", "yaml"
	File    string
	Offset  int64
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Offset > 0 {
		return fmt.Sprintf("parse error in %s file %s at byte %d: %s", e.Format, e.File, e.Offset, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "rename", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ConversionError wraps a failure while converting one source file.
type ConversionError struct {
	Source string
	Target string
	Err    error
}

// Error implements the error interface
func (e *ConversionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("conversion of %s to %s failed: %v", e.Source, e.Target, e.Err)
	}
	return fmt.Sprintf("conversion of %s failed: %v", e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewConversionError creates a new ConversionError
func NewConversionError(source, target string, err error) *ConversionError {
	return &ConversionError{Source: source, Target: target, Err: err}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "load", "save", "close"
	Resource  string // "directory", "file", "index", "recipe"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCorrupted checks if an error reports inconsistent data
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorrupted)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapConversion wraps an error as a ConversionError
func WrapConversion(source, target string, err error) error {
	if err == nil {
		return nil
	}
	return NewConversionError(source, target, err)
}
