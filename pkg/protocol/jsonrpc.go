// Package protocol defines the JSON-RPC 2.0 wire types used by the MCP
// server: request and response envelopes, error details, and the tool
// descriptor shapes exchanged over list_tools and execute_tool.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only supported JSON-RPC protocol version.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request or notification envelope.
// The ID is kept as raw JSON so that its type (string or integer) is
// echoed back exactly and so that an absent ID can be told apart from
// an explicit null.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no usable ID.
// Both an absent id field and an explicit null mark a notification.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || bytes.Equal(r.ID, []byte("null"))
}

// NewRequest builds a request envelope, marshaling params if present.
func NewRequest(id interface{}, method string, params interface{}) (*Request, error) {
	var rawID json.RawMessage
	if id != nil {
		b, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal id: %w", err)
		}
		rawID = b
	}

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		rawParams = b
	}

	return &Request{
		JSONRPC: Version,
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}, nil
}

// Response represents a JSON-RPC 2.0 response envelope. Exactly one of
// Result or Error is set. The id field is always emitted, even when null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the error member of a JSON-RPC response.
type ErrorDetail struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewResponse builds a success response echoing the given raw ID.
func NewResponse(id json.RawMessage, result interface{}) (*Response, error) {
	var rawResult json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		rawResult = b
	}

	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  rawResult,
	}, nil
}

// NewErrorResponse builds an error response echoing the given raw ID.
// A nil id renders as null, which is what the protocol requires for
// errors detected before the request ID could be read.
func NewErrorResponse(id json.RawMessage, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
