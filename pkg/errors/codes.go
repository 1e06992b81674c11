package errors

import "net/http"

// JSON-RPC 2.0 standard error codes.
const (
	// CodeParseError indicates the request body was not valid JSON or
	// had the wrong top-level shape.
	CodeParseError int = -32700

	// CodeInvalidRequest indicates a structurally invalid envelope
	// (wrong version tag, missing or non-string method, empty batch).
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method (or tool) does not exist.
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates schema validation of parameters failed.
	CodeInvalidParams int = -32602

	// CodeInternalError indicates an unexpected failure, including
	// handler panics and uncaught errors.
	CodeInternalError int = -32603
)

// Domain extension codes. These must stay stable for interoperability
// with existing clients.
const (
	// CodeAuthRequired indicates missing or invalid credentials.
	CodeAuthRequired int = -32000

	// CodeForbidden indicates the caller lacks the required role.
	CodeForbidden int = -32001

	// CodeResourceNotFound indicates a stored resource was not found.
	CodeResourceNotFound int = -32800
)

// CodeInfo describes a registered error code.
type CodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var codeRegistry = map[int]CodeInfo{
	CodeParseError:       {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest:   {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound:   {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:    {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:    {CodeInternalError, "InternalError", "Internal server error", CategoryInternal, SeverityCritical},
	CodeAuthRequired:     {CodeAuthRequired, "AuthRequired", "Authentication required", CategoryAuth, SeverityWarning},
	CodeForbidden:        {CodeForbidden, "Forbidden", "Insufficient permissions", CategoryAuth, SeverityWarning},
	CodeResourceNotFound: {CodeResourceNotFound, "ResourceNotFound", "Resource not found", CategoryNotFound, SeverityError},
}

// CodeName returns the registered name of a code, or "UnknownError".
func CodeName(code int) string {
	if info, ok := codeRegistry[code]; ok {
		return info.Name
	}
	return "UnknownError"
}

// CodeCategory returns the category of a code, defaulting to internal.
func CodeCategory(code int) Category {
	if info, ok := codeRegistry[code]; ok {
		return info.Category
	}
	return CategoryInternal
}

// CodeSeverity returns the severity of a code, defaulting to error.
func CodeSeverity(code int) Severity {
	if info, ok := codeRegistry[code]; ok {
		return info.Severity
	}
	return SeverityError
}

// httpToRPC and rpcToHTTP are the fixed translation tables between the
// two surfaces. They are deliberately static: the same failure must map
// identically in both directions on every request.
var httpToRPC = map[int]int{
	http.StatusBadRequest:          CodeInvalidRequest,
	http.StatusUnauthorized:        CodeAuthRequired,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeResourceNotFound,
	http.StatusUnprocessableEntity: CodeInvalidParams,
	http.StatusInternalServerError: CodeInternalError,
}

var rpcToHTTP = map[int]int{
	CodeParseError:       http.StatusBadRequest,
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeMethodNotFound:   http.StatusNotFound,
	CodeInvalidParams:    http.StatusUnprocessableEntity,
	CodeInternalError:    http.StatusInternalServerError,
	CodeAuthRequired:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeResourceNotFound: http.StatusNotFound,
}

// HTTPToRPC returns the best-matching JSON-RPC error code for an HTTP
// status. Unmapped statuses default to internal-failure.
func HTTPToRPC(status int) int {
	if code, ok := httpToRPC[status]; ok {
		return code
	}
	return CodeInternalError
}

// RPCToHTTP returns the best-matching HTTP status for a JSON-RPC error
// code. Unmapped codes default to 500.
func RPCToHTTP(code int) int {
	if status, ok := rpcToHTTP[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
