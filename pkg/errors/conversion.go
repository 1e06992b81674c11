package errors

import (
	"encoding/json"

	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
)

// ToResponse converts any error into a JSON-RPC error response echoing
// the given request ID. Non-MCP errors are reported as internal
// failures with the original message retained in the error text.
func ToResponse(err error, id json.RawMessage) *protocol.Response {
	if mcpErr, ok := AsMCPError(err); ok {
		return protocol.NewErrorResponse(id, mcpErr.Code(), mcpErr.Message(), mcpErr.Data())
	}
	return protocol.NewErrorResponse(id, CodeInternalError, "Internal error: "+err.Error(), nil)
}

// ToErrorDetail converts any error into a bare JSON-RPC error object.
func ToErrorDetail(err error) *protocol.ErrorDetail {
	if err == nil {
		return nil
	}
	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.ErrorDetail{
			Code:    mcpErr.Code(),
			Message: mcpErr.Message(),
			Data:    mcpErr.Data(),
		}
	}
	return &protocol.ErrorDetail{
		Code:    CodeInternalError,
		Message: err.Error(),
	}
}
