package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/protocol"
)

func echoDef(name string) Definition {
	return Definition{
		Name:        name,
		Description: "echoes its input",
		Parameters: []protocol.ToolParameter{
			{Name: "message", Type: protocol.TypeString, Required: true},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			return params["message"], nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := New(nil)

	err := reg.Register(Definition{Handler: func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil }})
	assert.Error(t, err, "empty name must be rejected")

	err = reg.Register(Definition{Name: "no_handler"})
	assert.Error(t, err, "missing handler must be rejected")

	err = reg.Register(Definition{
		Name: "bad_type",
		Parameters: []protocol.ToolParameter{
			{Name: "x", Type: "decimal"},
		},
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil },
	})
	assert.Error(t, err, "unknown parameter type must be rejected")
}

func TestRegisterLastWins(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(echoDef("echo")))

	replacement := echoDef("echo")
	replacement.Description = "second registration"
	require.NoError(t, reg.Register(replacement))

	assert.Equal(t, 1, reg.Len())
	tool, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "second registration", tool.Description)
}

func TestDerivedSchema(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(Definition{
		Name: "report",
		Parameters: []protocol.ToolParameter{
			{Name: "format", Type: protocol.TypeString, Required: true, Enum: []interface{}{"json", "xml"}},
			{Name: "limit", Type: protocol.TypeInteger, Default: int64(10)},
		},
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil },
	}))

	tool, ok := reg.Get("report")
	require.True(t, ok)
	require.NotNil(t, tool.Schema)
	assert.Equal(t, "object", tool.Schema.Type)
	assert.Equal(t, []string{"format"}, tool.Schema.Required)
	assert.Equal(t, "string", tool.Schema.Properties["format"].Type)
	assert.Equal(t, int64(10), tool.Schema.Properties["limit"].Default)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := New(nil)

	_, err := reg.Execute(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeMethodNotFound))
}

func TestExecuteMissingRequired(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(echoDef("echo")))

	_, err := reg.Execute(context.Background(), "echo", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInvalidParams))

	mcpErr, ok := mcperrors.AsMCPError(err)
	require.True(t, ok)
	data, ok := mcpErr.Data().(map[string]interface{})
	require.True(t, ok, "violations must ride in error data")
	violations, ok := data["errors"].([]mcperrors.ParameterViolation)
	require.True(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "message", violations[0].Field)
}

func TestExecuteDropsUnknownKeys(t *testing.T) {
	reg := New(nil)
	var seen map[string]interface{}
	require.NoError(t, reg.Register(Definition{
		Name: "probe",
		Parameters: []protocol.ToolParameter{
			{Name: "message", Type: protocol.TypeString, Required: true},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			seen = params
			return nil, nil
		},
	}))

	_, err := reg.Execute(context.Background(), "probe", map[string]interface{}{
		"message": "hi",
		"extra":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "hi"}, seen)
}

func TestExecuteAppliesDefaults(t *testing.T) {
	reg := New(nil)
	var seen map[string]interface{}
	require.NoError(t, reg.Register(Definition{
		Name: "paged",
		Parameters: []protocol.ToolParameter{
			{Name: "limit", Type: protocol.TypeInteger, Default: int64(25)},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			seen = params
			return nil, nil
		},
	}))

	_, err := reg.Execute(context.Background(), "paged", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), seen["limit"])
}

func TestExecuteErrorPassthrough(t *testing.T) {
	reg := New(nil)
	domainErr := mcperrors.ResourceNotFound("resource://screenshot/abc")
	require.NoError(t, reg.Register(Definition{
		Name: "failing",
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
			return nil, domainErr
		},
	}))

	_, err := reg.Execute(context.Background(), "failing", nil)
	assert.True(t, errors.Is(err, domainErr) || err == domainErr)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeResourceNotFound))
}

func TestExecuteWrapsPlainErrors(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.Register(Definition{
		Name: "broken",
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("device unreachable")
		},
	}))

	_, err := reg.Execute(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInternalError))
}

func TestCoercion(t *testing.T) {
	cases := []struct {
		name    string
		param   protocol.ToolParameter
		input   interface{}
		want    interface{}
		invalid bool
	}{
		{name: "integral float to integer", param: protocol.ToolParameter{Name: "n", Type: protocol.TypeInteger}, input: float64(42), want: int64(42)},
		{name: "fractional float rejected for integer", param: protocol.ToolParameter{Name: "n", Type: protocol.TypeInteger}, input: 4.5, invalid: true},
		{name: "numeric string to integer", param: protocol.ToolParameter{Name: "n", Type: protocol.TypeInteger}, input: "17", want: int64(17)},
		{name: "numeric string to number", param: protocol.ToolParameter{Name: "x", Type: protocol.TypeNumber}, input: "2.5", want: 2.5},
		{name: "int to number", param: protocol.ToolParameter{Name: "x", Type: protocol.TypeNumber}, input: 3, want: float64(3)},
		{name: "bool string to boolean", param: protocol.ToolParameter{Name: "b", Type: protocol.TypeBoolean}, input: "true", want: true},
		{name: "arbitrary string rejected for boolean", param: protocol.ToolParameter{Name: "b", Type: protocol.TypeBoolean}, input: "yes", invalid: true},
		{name: "number rejected for string", param: protocol.ToolParameter{Name: "s", Type: protocol.TypeString}, input: 5, invalid: true},
		{name: "string passes through", param: protocol.ToolParameter{Name: "s", Type: protocol.TypeString}, input: "ok", want: "ok"},
		{name: "array passes through", param: protocol.ToolParameter{Name: "a", Type: protocol.TypeArray}, input: []interface{}{1, 2}, want: []interface{}{1, 2}},
		{name: "object passes through", param: protocol.ToolParameter{Name: "o", Type: protocol.TypeObject}, input: map[string]interface{}{"k": "v"}, want: map[string]interface{}{"k": "v"}},
		{name: "scalar rejected for object", param: protocol.ToolParameter{Name: "o", Type: protocol.TypeObject}, input: "nope", invalid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validated, violations := validateParams(
				[]protocol.ToolParameter{tc.param},
				map[string]interface{}{tc.param.Name: tc.input})
			if tc.invalid {
				require.NotEmpty(t, violations)
				return
			}
			require.Empty(t, violations)
			assert.Equal(t, tc.want, validated[tc.param.Name])
		})
	}
}

func TestEnumValidation(t *testing.T) {
	params := []protocol.ToolParameter{
		{Name: "mode", Type: protocol.TypeString, Required: true, Enum: []interface{}{"fast", "slow"}},
	}

	_, violations := validateParams(params, map[string]interface{}{"mode": "fast"})
	assert.Empty(t, violations)

	_, violations = validateParams(params, map[string]interface{}{"mode": "medium"})
	require.Len(t, violations, 1)
	assert.Equal(t, "mode", violations[0].Field)
}

type toolCallRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *toolCallRecorder) RecordToolCall(_ context.Context, tool, status string, _ time.Duration) {
	r.mu.Lock()
	r.calls = append(r.calls, tool+":"+status)
	r.mu.Unlock()
}

func TestExecuteRecordsToolCalls(t *testing.T) {
	rec := &toolCallRecorder{}
	reg := New(nil, WithRecorder(rec))
	require.NoError(t, reg.Register(echoDef("echo")))
	require.NoError(t, reg.Register(Definition{
		Name: "broken",
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		},
	}))

	ctx := context.Background()
	_, err := reg.Execute(ctx, "echo", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	_, err = reg.Execute(ctx, "echo", map[string]interface{}{})
	require.Error(t, err)
	_, err = reg.Execute(ctx, "broken", map[string]interface{}{})
	require.Error(t, err)
	_, err = reg.Execute(ctx, "missing", nil)
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{
		"echo:success",
		"echo:invalid_params",
		"broken:error",
		"missing:not_found",
	}, rec.calls)
}
