package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType categorizes failures raised by the distributed index builder.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeProtocol      ErrorType = "protocol"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeComputation   ErrorType = "computation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeStorage       ErrorType = "storage"
)

// Sentinel errors shared across packages.
var (
	// ErrInvalidRank is returned for rank arguments outside [0, groupSize).
	ErrInvalidRank = errors.New("rank out of range")

	// ErrEnvelopeMismatch is returned when a received message envelope does
	// not carry the direction/offset the protocol step expects.
	ErrEnvelopeMismatch = errors.New("message envelope mismatch")
)

// StructuredError provides rich error context for protocol failures.
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Newf creates a new structured error with a formatted message
func Newf(errType ErrorType, operation, format string, args ...interface{}) *StructuredError {
	return New(errType, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsType reports whether err (or any error it wraps) is a StructuredError
// of the given type.
func IsType(err error, errType ErrorType) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Type == errType
	}
	return false
}

// Is delegates to the standard library for sentinel comparison.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func captureStack() []uintptr {
	stack := make([]uintptr, 32)
	n := runtime.Callers(3, stack)
	return stack[:n]
}
