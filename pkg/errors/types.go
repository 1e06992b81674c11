// Package errors provides the structured error taxonomy for the MCP
// server. Every failure the server can report carries a fixed JSON-RPC
// error code, a human-readable message, and optional structured data.
// The package also owns the bidirectional mapping between those codes
// and HTTP status codes, and the unified error shape rendered on both
// the JSON-RPC and REST surfaces.
package errors

import (
	"encoding/json"
	"fmt"
)

// Category classifies an error for logging and handling.
type Category string

const (
	CategoryProtocol   Category = "protocol"
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryAuth       Category = "auth"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// MCPError is the interface implemented by all protocol errors.
type MCPError interface {
	error

	// Code returns the JSON-RPC error code.
	Code() int

	// Message returns the human-readable error message. The message is
	// guidance only; the code carries the semantic category.
	Message() string

	// Data returns structured error data for programmatic handling.
	Data() interface{}

	// Category returns the error category for classification.
	Category() Category

	// Severity returns the error severity level.
	Severity() Severity

	// WithData returns a copy of the error with structured data attached.
	WithData(data interface{}) MCPError

	// Unwrap returns the underlying cause, if any.
	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	data     interface{}
	category Category
	severity Severity
	cause    error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithData(data interface{}) MCPError {
	clone := *e
	clone.data = data
	return &clone
}

// MarshalJSON serializes the error in the JSON-RPC error detail shape.
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":    e.code,
		"message": e.message,
	}
	if e.data != nil {
		out["data"] = e.data
	}
	return json.Marshal(out)
}

// New creates an MCPError with the given code and message. The category
// and severity are looked up from the code registry.
func New(code int, message string) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: CodeCategory(code),
		severity: CodeSeverity(code),
	}
}

// Newf creates an MCPError with a formatted message.
func Newf(code int, format string, args ...interface{}) MCPError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an MCPError that records err as its cause.
func Wrap(err error, code int, message string) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		cause:    err,
		category: CodeCategory(code),
		severity: CodeSeverity(code),
	}
}

// AsMCPError extracts an MCPError from err if it is one.
func AsMCPError(err error) (MCPError, bool) {
	if err == nil {
		return nil, false
	}
	mcpErr, ok := err.(MCPError)
	return mcpErr, ok
}

// IsCode reports whether err is an MCPError with the given code.
func IsCode(err error, code int) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Code() == code
	}
	return false
}

// Normalize converts any error into an MCPError. Errors that already
// carry a code pass through unchanged; anything else becomes an
// internal-failure with the original message retained for diagnostics.
func Normalize(err error) MCPError {
	if err == nil {
		return nil
	}
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr
	}
	return Wrap(err, CodeInternalError, "Internal error")
}
