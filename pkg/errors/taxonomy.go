package errors

import "fmt"

// ParameterViolation records one per-field validation failure. Invalid
// parameter errors always carry a list of these in their data payload.
type ParameterViolation struct {
	Field    string      `json:"field"`
	Reason   string      `json:"reason"`
	Value    interface{} `json:"value,omitempty"`
	Expected string      `json:"expected,omitempty"`
}

// InvalidRequest creates a malformed-envelope error.
func InvalidRequest(detail string) MCPError {
	message := "Invalid Request"
	if detail != "" {
		message = fmt.Sprintf("Invalid Request: %s", detail)
	}
	return New(CodeInvalidRequest, message)
}

// ParseError creates a parse-failure error.
func ParseError(detail string) MCPError {
	message := "Parse error"
	if detail != "" {
		message = fmt.Sprintf("Parse error: %s", detail)
	}
	return New(CodeParseError, message)
}

// MethodNotFound creates a method-not-found error for a top-level
// JSON-RPC method.
func MethodNotFound(method string) MCPError {
	return Newf(CodeMethodNotFound, "Method not found: %s", method)
}

// ToolNotFound creates a method-not-found error for a tool lookup.
// Tool lookup shares method-not-found semantics with method dispatch.
func ToolNotFound(name string) MCPError {
	return Newf(CodeMethodNotFound, "Tool not found: %s", name)
}

// InvalidParams creates an invalid-parameters error with the per-field
// violations attached as structured data.
func InvalidParams(message string, violations []ParameterViolation) MCPError {
	err := New(CodeInvalidParams, message)
	if len(violations) > 0 {
		err = err.WithData(map[string]interface{}{"errors": violations})
	}
	return err
}

// Internal wraps an unexpected failure as an internal-failure error.
// The cause's message is retained for diagnostics.
func Internal(cause error) MCPError {
	return Wrap(cause, CodeInternalError, "Internal error")
}

// ResourceNotFound creates a resource-not-found error.
func ResourceNotFound(uri string) MCPError {
	return Newf(CodeResourceNotFound, "Resource not found: %s", uri)
}

// AuthRequired creates an authentication-required error.
func AuthRequired(reason string) MCPError {
	message := "Authentication required"
	if reason != "" {
		message = fmt.Sprintf("Authentication required: %s", reason)
	}
	return New(CodeAuthRequired, message)
}

// Forbidden creates an authorization-denied error.
func Forbidden(requiredRole string) MCPError {
	message := "Insufficient permissions"
	if requiredRole != "" {
		message = fmt.Sprintf("Insufficient permissions. %s role required.", requiredRole)
	}
	return New(CodeForbidden, message)
}
