package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lespauI/mcp-ios-agent/pkg/registry"
)

func TestRegisterBasic(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBasic(reg))
	assert.Equal(t, 3, reg.Len())

	for _, name := range []string{"echo", "get_server_info", "random_number"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, name)
	}
}

func TestEchoTool(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBasic(reg))

	result, err := reg.Execute(context.Background(), "echo", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "hi"}, result)
}

func TestServerInfoTool(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBasic(reg))

	result, err := reg.Execute(context.Background(), "get_server_info", map[string]interface{}{})
	require.NoError(t, err)

	info, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, info["platform"])
	assert.NotEmpty(t, info["go_version"])
}

func TestRandomNumberTool(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBasic(reg))

	for i := 0; i < 20; i++ {
		result, err := reg.Execute(context.Background(), "random_number",
			map[string]interface{}{"min": 5, "max": 10})
		require.NoError(t, err)

		out, ok := result.(map[string]interface{})
		require.True(t, ok)
		n, ok := out["number"].(int64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, int64(5))
		assert.LessOrEqual(t, n, int64(10))
	}
}

func TestRandomNumberSwapsBounds(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, RegisterBasic(reg))

	result, err := reg.Execute(context.Background(), "random_number",
		map[string]interface{}{"min": 10, "max": 5})
	require.NoError(t, err)

	out := result.(map[string]interface{})
	n := out["number"].(int64)
	assert.GreaterOrEqual(t, n, int64(5))
	assert.LessOrEqual(t, n, int64(10))
}
