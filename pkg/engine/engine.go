// Package engine implements the JSON-RPC 2.0 request state machine:
// parse, shape check, notification detection, dispatch, and response
// assembly for single requests and batches. The engine is stateless
// across requests; the only shared structures are the method table and
// the tool registry, both fixed after startup.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
	"github.com/lespauI/mcp-ios-agent/pkg/registry"
)

// MethodHandler executes one registered JSON-RPC method.
type MethodHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Recorder receives dispatch outcomes for telemetry. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordBatch(ctx context.Context, size int, duration time.Duration)
}

// Tracer opens a span around one method dispatch. The returned finish
// func records the dispatch error, if any, and ends the span.
type Tracer interface {
	StartMethod(ctx context.Context, method string) (context.Context, func(err error))
}

// Reply is the three-way outcome of dispatching one envelope: a success
// response, an error response, or no response at all. Suppression is a
// first-class branch, not a dropped exception: notifications never
// produce a response, even when dispatch fails.
type Reply struct {
	Response *protocol.Response
}

// Suppressed reports whether the envelope produced no response.
func (r Reply) Suppressed() bool {
	return r.Response == nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithTracer attaches a per-method span tracer.
func WithTracer(tr Tracer) Option {
	return func(e *Engine) { e.tracer = tr }
}

// Engine dispatches JSON-RPC envelopes to registered method handlers.
type Engine struct {
	methods  map[string]MethodHandler
	registry *registry.Registry
	logger   logging.Logger
	recorder Recorder
	tracer   Tracer
}

// New creates an engine bound to a tool registry and registers the
// built-in methods: list_tools, execute_tool, and the diagnostic echo.
// Method registration is explicit; nothing registers itself as an
// import side effect.
func New(reg *registry.Registry, logger logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		methods:  make(map[string]MethodHandler),
		registry: reg,
		logger:   logger.WithFields(logging.String("component", "engine")),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.RegisterMethod("list_tools", e.handleListTools)
	e.RegisterMethod("execute_tool", e.handleExecuteTool)
	e.RegisterMethod("echo", e.handleEcho)
	return e
}

// RegisterMethod adds a method handler. Later registrations for the
// same name win, matching the registry's replacement policy.
func (e *Engine) RegisterMethod(name string, handler MethodHandler) {
	e.methods[name] = handler
}

// Process runs the full state machine over one wire-level payload and
// returns the marshaled response body, or nil when no body must be
// sent (all-notification input). Every failure is rendered into an
// error envelope; Process never returns malformed output.
func (e *Engine) Process(ctx context.Context, data []byte) json.RawMessage {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return marshalResponse(mcperrors.ToResponse(mcperrors.ParseError("empty request body"), nil))
	}

	switch trimmed[0] {
	case '[':
		return e.processBatch(ctx, trimmed)
	case '{':
		reply := e.processSingle(ctx, trimmed)
		if reply.Suppressed() {
			return nil
		}
		return marshalResponse(reply.Response)
	default:
		return marshalResponse(mcperrors.ToResponse(
			mcperrors.ParseError("request must be a JSON object or array"), nil))
	}
}

// processBatch dispatches each batch item independently. Items run
// concurrently; the response array preserves input order and contains
// entries only for non-notification items. One item's handler failure
// never affects its siblings.
func (e *Engine) processBatch(ctx context.Context, data []byte) json.RawMessage {
	start := time.Now()

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return marshalResponse(mcperrors.ToResponse(mcperrors.ParseError(err.Error()), nil))
	}
	if len(items) == 0 {
		return marshalResponse(mcperrors.ToResponse(
			mcperrors.InvalidRequest("empty batch"), nil))
	}

	replies := make([]Reply, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			replies[i] = e.processSingle(gctx, item)
			return nil
		})
	}
	// Workers never return errors; failures become error envelopes.
	_ = g.Wait()

	if e.recorder != nil {
		e.recorder.RecordBatch(ctx, len(items), time.Since(start))
	}

	responses := make([]*protocol.Response, 0, len(replies))
	for _, reply := range replies {
		if !reply.Suppressed() {
			responses = append(responses, reply.Response)
		}
	}
	if len(responses) == 0 {
		return nil
	}

	body, err := json.Marshal(responses)
	if err != nil {
		return marshalResponse(mcperrors.ToResponse(mcperrors.Internal(err), nil))
	}
	return body
}

// processSingle runs the per-envelope algorithm: shape check, method
// lookup, parameter decoding, and handler invocation.
func (e *Engine) processSingle(ctx context.Context, data []byte) Reply {
	var env struct {
		JSONRPC *string         `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  json.RawMessage `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Reply{Response: mcperrors.ToResponse(mcperrors.InvalidRequest(""), nil)}
	}
	if env.JSONRPC == nil || *env.JSONRPC != protocol.Version {
		return Reply{Response: mcperrors.ToResponse(mcperrors.InvalidRequest(""), nil)}
	}

	var method string
	if len(env.Method) == 0 || json.Unmarshal(env.Method, &method) != nil || method == "" {
		return Reply{Response: mcperrors.ToResponse(
			mcperrors.InvalidRequest("method must be a string"), env.ID)}
	}

	id := env.ID
	notification := len(id) == 0 || bytes.Equal(id, []byte("null"))
	start := time.Now()

	handler, ok := e.methods[method]
	if !ok {
		e.record(ctx, method, "method_not_found", start)
		if notification {
			e.logger.Debug("Dropping failed notification",
				logging.String("method", method), logging.String("reason", "method not found"))
			return Reply{}
		}
		return Reply{Response: mcperrors.ToResponse(mcperrors.MethodNotFound(method), id)}
	}

	params := map[string]interface{}{}
	if len(env.Params) > 0 && !bytes.Equal(env.Params, []byte("null")) {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			e.record(ctx, method, "invalid_params", start)
			if notification {
				return Reply{}
			}
			return Reply{Response: mcperrors.ToResponse(
				mcperrors.InvalidParams("Parameters must be an object", nil), id)}
		}
	}

	callCtx := ctx
	var finish func(error)
	if e.tracer != nil {
		callCtx, finish = e.tracer.StartMethod(ctx, method)
	}
	result, err := e.invoke(callCtx, handler, params)
	if finish != nil {
		finish(err)
	}
	if err != nil {
		e.record(ctx, method, "error", start)
		if notification {
			e.logger.Warn("Dropping failed notification",
				logging.String("method", method), logging.ErrorField(err))
			return Reply{}
		}
		return Reply{Response: mcperrors.ToResponse(err, id)}
	}

	e.record(ctx, method, "success", start)
	if notification {
		return Reply{}
	}

	resp, respErr := protocol.NewResponse(id, result)
	if respErr != nil {
		return Reply{Response: mcperrors.ToResponse(mcperrors.Internal(respErr), id)}
	}
	return Reply{Response: resp}
}

// invoke runs a handler, converting panics into internal failures so
// one envelope's fault never aborts its batch siblings.
func (e *Engine) invoke(ctx context.Context, handler MethodHandler, params map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Handler panicked", logging.Any("panic", r))
			err = mcperrors.Internal(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler(ctx, params)
}

func (e *Engine) record(ctx context.Context, method, status string, start time.Time) {
	if e.recorder != nil {
		e.recorder.RecordRequest(ctx, method, status, time.Since(start))
	}
}

func marshalResponse(resp *protocol.Response) json.RawMessage {
	body, err := json.Marshal(resp)
	if err != nil {
		// The response shape is fully under our control; this only
		// fires if an error data payload is unmarshalable.
		fallback := protocol.NewErrorResponse(nil, mcperrors.CodeInternalError, "Internal error", nil)
		body, _ = json.Marshal(fallback)
	}
	return body
}

// handleListTools serves the list_tools built-in.
func (e *Engine) handleListTools(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return e.registry.List(), nil
}

// handleExecuteTool serves the execute_tool built-in. Tool lookup has
// method-not-found semantics; parameter validation happens inside the
// registry.
func (e *Engine) handleExecuteTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return nil, mcperrors.InvalidParams("Tool name is required", nil)
	}

	toolParams := map[string]interface{}{}
	if raw, present := params["parameters"]; present && raw != nil {
		toolParams, ok = raw.(map[string]interface{})
		if !ok {
			return nil, mcperrors.InvalidParams("Tool parameters must be an object", nil)
		}
	}

	return e.registry.Execute(ctx, name, toolParams)
}

// handleEcho serves the diagnostic echo built-in.
func (e *Engine) handleEcho(_ context.Context, params map[string]interface{}) (interface{}, error) {
	message, ok := params["message"]
	if !ok {
		return nil, mcperrors.InvalidParams("Message parameter is required", nil)
	}
	return map[string]interface{}{"message": message}, nil
}
