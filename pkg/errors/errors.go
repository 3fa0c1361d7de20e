// Package errors provides structured error types for canopy.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP server and workers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes follow the failure taxonomy of the rendering pipeline:
//   - STREAM_ABSENT: no input stream was supplied (fatal, before any work)
//   - INVALID_RECORD: a single streamed record was malformed (logged, skipped)
//   - INVALID_FORMAT / UNSUPPORTED_VERSION: snapshot container rejected (fatal)
//   - SHADER_COMPILE: a draw program could not be created (fatal)
//   - NEWICK_SYNTAX: Newick text violates the grammar
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFormat, "bad magic %q", magic)
//	if errors.Is(err, errors.ErrCodeInvalidFormat) {
//	    // Handle container error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStreamAbsent, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidQuery  Code = "INVALID_QUERY"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeNewickSyntax  Code = "NEWICK_SYNTAX"

	// Streaming errors
	ErrCodeStreamAbsent  Code = "STREAM_ABSENT"
	ErrCodeInvalidRecord Code = "INVALID_RECORD"

	// Snapshot container errors
	ErrCodeInvalidFormat      Code = "INVALID_FORMAT"
	ErrCodeUnsupportedVersion Code = "UNSUPPORTED_VERSION"

	// Rendering errors
	ErrCodeShaderCompile Code = "SHADER_COMPILE"

	// Resource errors
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeNotReady    Code = "NOT_READY"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeUnavailable Code = "UNAVAILABLE" // remote cache backend unreachable

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
