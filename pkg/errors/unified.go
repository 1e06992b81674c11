package errors

import (
	"encoding/json"
	"net/http"

	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
)

// Source identifies which surface a failure originated on.
type Source string

const (
	SourceHTTP    Source = "http"
	SourceJSONRPC Source = "jsonrpc"
)

// HTTPError is a transport-level failure carrying its own HTTP status
// and detail, analogous to an HTTP exception raised by a REST handler.
type HTTPError struct {
	Status int
	Detail interface{}
}

func (e *HTTPError) Error() string {
	if s, ok := e.Detail.(string); ok {
		return s
	}
	return http.StatusText(e.Status)
}

// NewHTTPError creates a transport-level error.
func NewHTTPError(status int, detail interface{}) *HTTPError {
	return &HTTPError{Status: status, Detail: detail}
}

// Unified is the canonical internal error shape. Every failure,
// regardless of origin, is normalized into this form before being
// rendered onto either surface.
type Unified struct {
	Status    int         `json:"status"`
	ErrorCode int         `json:"error_code"`
	Message   string      `json:"message"`
	Detail    interface{} `json:"detail,omitempty"`
	Source    Source      `json:"source"`
}

// UnifyMCPError converts a typed protocol error. The status comes from
// the fixed code table; the code passes through unchanged.
func UnifyMCPError(err MCPError) *Unified {
	return &Unified{
		Status:    RPCToHTTP(err.Code()),
		ErrorCode: err.Code(),
		Message:   err.Message(),
		Detail:    err.Data(),
		Source:    SourceJSONRPC,
	}
}

// UnifyHTTPError converts a transport-level error. The code comes from
// the status table. A non-string detail is preserved in the detail
// field and the message falls back to a generic label.
func UnifyHTTPError(err *HTTPError) *Unified {
	message := "HTTP Error"
	var detail interface{}
	if s, ok := err.Detail.(string); ok {
		message = s
	} else {
		detail = err.Detail
	}
	return &Unified{
		Status:    err.Status,
		ErrorCode: HTTPToRPC(err.Status),
		Message:   message,
		Detail:    detail,
		Source:    SourceHTTP,
	}
}

// Unify normalizes any error into the canonical shape. Typed protocol
// errors and transport errors keep their identity; everything else is
// reported as an unexpected internal failure.
func Unify(err error) *Unified {
	if mcpErr, ok := AsMCPError(err); ok {
		return UnifyMCPError(mcpErr)
	}
	if httpErr, ok := err.(*HTTPError); ok {
		return UnifyHTTPError(httpErr)
	}
	return &Unified{
		Status:    http.StatusInternalServerError,
		ErrorCode: CodeInternalError,
		Message:   "An unexpected error occurred",
		Detail:    map[string]interface{}{"error": err.Error()},
		Source:    SourceHTTP,
	}
}

// ToJSONRPC renders the unified error as a full JSON-RPC error envelope
// echoing the given request ID.
func (u *Unified) ToJSONRPC(id json.RawMessage) *protocol.Response {
	return protocol.NewErrorResponse(id, u.ErrorCode, u.Message, u.Detail)
}

// WriteHTTP renders the unified error as the HTTP response body using
// its own status as the transport status code.
func (u *Unified) WriteHTTP(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(u.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error_code": u.ErrorCode,
		"message":    u.Message,
		"detail":     u.Detail,
	})
}

// WriteJSONRPC renders the unified error as a JSON-RPC error envelope.
// The transport status is always 200; the protocol-level error code is
// the true signal.
func (u *Unified) WriteJSONRPC(w http.ResponseWriter, id json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(u.ToJSONRPC(id))
}
