package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotification(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "absent id", raw: `{"jsonrpc":"2.0","method":"echo"}`, want: true},
		{name: "null id", raw: `{"jsonrpc":"2.0","id":null,"method":"echo"}`, want: true},
		{name: "numeric id", raw: `{"jsonrpc":"2.0","id":0,"method":"echo"}`, want: false},
		{name: "string id", raw: `{"jsonrpc":"2.0","id":"x","method":"echo"}`, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &req))
			assert.Equal(t, tc.want, req.IsNotification())
		})
	}
}

func TestResponseIDAlwaysPresent(t *testing.T) {
	resp := NewErrorResponse(nil, -32700, "Parse error", nil)
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":null`)

	resp, err = NewResponse(json.RawMessage(`"abc"`), map[string]interface{}{"ok": true})
	require.NoError(t, err)
	body, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"abc"`)
	assert.NotContains(t, string(body), `"error"`)
}

func TestParamTypeValid(t *testing.T) {
	for _, pt := range []ParamType{TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject} {
		assert.True(t, pt.Valid(), string(pt))
	}
	assert.False(t, ParamType("decimal").Valid())
	assert.False(t, ParamType("").Valid())
}
