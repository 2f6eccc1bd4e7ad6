package errors

import (
	"fmt"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LoadError reports a checker file that could not be loaded as an isolated
// unit (syntax error, failing top-level statement). Position, when known,
// points at the offending line inside the file.
type LoadError struct {
	Path     string
	Position string
	Err      error
}

// NewLoadError constructs a LoadError.
func NewLoadError(path, position string, err error) error {
	return &LoadError{Path: path, Position: position, Err: err}
}

func (e *LoadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Position != "" {
		return fmt.Sprintf("load error: %s: %s: %v", e.Path, e.Position, e.Err)
	}
	return fmt.Sprintf("load error: %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvocationError reports a checker function that failed while running
// against a fixture model.
type InvocationError struct {
	Function string
	File     string
	Fixture  string
	Err      error
}

// NewInvocationError constructs an InvocationError.
func NewInvocationError(function, file, fixture string, err error) error {
	return &InvocationError{Function: function, File: file, Fixture: fixture, Err: err}
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invocation error: %s (%s) on fixture %q: %v", e.Function, e.File, e.Fixture, e.Err)
}

// Unwrap exposes the underlying error.
func (e *InvocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StoreError wraps failures from the run-history store.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError constructs a StoreError.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("history store error during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
