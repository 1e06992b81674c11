// Package registry owns the set of tool definitions and provides
// schema-validated execution. Definitions are registered once at
// startup and are never mutated or removed afterwards; the registry is
// read-mostly at runtime, so lookups take a shared lock.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
)

// Handler executes a tool with an already-validated parameter map.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Recorder receives tool execution outcomes for telemetry.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// Definition is the registration-time description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  []protocol.ToolParameter
	Returns     map[string]interface{}
	Handler     Handler
}

// Tool is a registered tool: its wire descriptor plus the owned handler.
type Tool struct {
	protocol.ToolInfo
	Handler Handler
}

// Registry holds tool definitions keyed by name.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*Tool
	logger   logging.Logger
	recorder Recorder
}

// New creates an empty registry.
func New(logger logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.WithFields(logging.String("component", "registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or replaces a definition under its name. Replacing
// is deliberate: the last registration for a name wins. The derived
// schema is computed here, not at call time.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	for _, p := range def.Parameters {
		if !p.Type.Valid() {
			return fmt.Errorf("tool %q parameter %q has unsupported type %q", def.Name, p.Name, p.Type)
		}
	}

	tool := &Tool{
		ToolInfo: protocol.ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
			Returns:     def.Returns,
			Schema:      deriveSchema(def.Parameters),
		},
		Handler: def.Handler,
	}

	r.mu.Lock()
	r.tools[def.Name] = tool
	r.mu.Unlock()

	r.logger.Info("Registered tool", logging.String("tool", def.Name))
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns descriptors for all registered tools. Iteration order is
// not guaranteed; callers must not depend on it.
func (r *Registry) List() []protocol.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]protocol.ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		infos = append(infos, tool.ToolInfo)
	}
	return infos
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates rawParams against the tool's parameter specs and
// invokes the handler with exactly the validated map. Unknown keys in
// rawParams are dropped: the handler sees a schema-shaped map, not a
// passthrough. Handler errors that already carry a code propagate
// unchanged; anything else surfaces as an internal failure.
func (r *Registry) Execute(ctx context.Context, name string, rawParams map[string]interface{}) (interface{}, error) {
	start := time.Now()

	tool, ok := r.Get(name)
	if !ok {
		r.record(ctx, name, "not_found", start)
		return nil, mcperrors.ToolNotFound(name)
	}

	validated, violations := validateParams(tool.Parameters, rawParams)
	if len(violations) > 0 {
		r.record(ctx, name, "invalid_params", start)
		return nil, mcperrors.InvalidParams(
			fmt.Sprintf("Invalid parameters for tool: %s", name), violations)
	}

	result, err := tool.Handler(ctx, validated)
	if err != nil {
		r.record(ctx, name, "error", start)
		if _, ok := mcperrors.AsMCPError(err); ok {
			return nil, err
		}
		r.logger.Error("Tool execution failed",
			logging.String("tool", name), logging.ErrorField(err))
		return nil, mcperrors.Internal(err)
	}
	r.record(ctx, name, "success", start)
	return result, nil
}

func (r *Registry) record(ctx context.Context, tool, status string, start time.Time) {
	if r.recorder != nil {
		r.recorder.RecordToolCall(ctx, tool, status, time.Since(start))
	}
}

// deriveSchema builds the object schema for a parameter list.
func deriveSchema(params []protocol.ToolParameter) *protocol.Schema {
	schema := &protocol.Schema{
		Type:       "object",
		Properties: make(map[string]protocol.PropertySchema, len(params)),
	}
	for _, p := range params {
		prop := protocol.PropertySchema{
			Type:        string(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Default != nil {
			prop.Default = p.Default
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
		schema.Properties[p.Name] = prop
	}
	return schema
}
