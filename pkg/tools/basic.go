// Package tools provides the built-in tool set shipped with the
// server. Tools are registered explicitly by the process entry point;
// nothing here runs as an import side effect.
package tools

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
	"github.com/lespauI/mcp-ios-agent/pkg/registry"
)

// RegisterBasic registers the built-in tools: echo, get_server_info,
// and random_number.
func RegisterBasic(reg *registry.Registry) error {
	defs := []registry.Definition{
		{
			Name:        "echo",
			Description: "Echo back the input message",
			Parameters: []protocol.ToolParameter{
				{
					Name:        "message",
					Type:        protocol.TypeString,
					Description: "Message to echo",
					Required:    true,
				},
			},
			Returns: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"message": map[string]interface{}{"type": "string"},
				},
			},
			Handler: echoHandler,
		},
		{
			Name:        "get_server_info",
			Description: "Get information about the server",
			Parameters:  nil,
			Returns: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"platform":   map[string]interface{}{"type": "string"},
					"go_version": map[string]interface{}{"type": "string"},
					"time":       map[string]interface{}{"type": "number"},
				},
			},
			Handler: serverInfoHandler,
		},
		{
			Name:        "random_number",
			Description: "Generate a random number within a range",
			Parameters: []protocol.ToolParameter{
				{
					Name:        "min",
					Type:        protocol.TypeInteger,
					Description: "Minimum value (inclusive)",
					Default:     int64(0),
				},
				{
					Name:        "max",
					Type:        protocol.TypeInteger,
					Description: "Maximum value (inclusive)",
					Default:     int64(100),
				},
			},
			Returns: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"number": map[string]interface{}{"type": "number"},
				},
			},
			Handler: randomNumberHandler,
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func echoHandler(_ context.Context, params map[string]interface{}) (interface{}, error) {
	message, ok := params["message"]
	if !ok {
		return nil, mcperrors.InvalidParams("Message parameter is required", nil)
	}
	return map[string]interface{}{"message": message}, nil
}

func serverInfoHandler(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		"go_version": runtime.Version(),
		"time":       float64(time.Now().UnixNano()) / float64(time.Second),
	}, nil
}

func randomNumberHandler(_ context.Context, params map[string]interface{}) (interface{}, error) {
	minVal := paramInt(params, "min", 0)
	maxVal := paramInt(params, "max", 100)
	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}
	return map[string]interface{}{
		"number": minVal + rand.Int63n(maxVal-minVal+1),
	}, nil
}

func paramInt(params map[string]interface{}, key string, fallback int64) int64 {
	switch n := params[key].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return fallback
}
