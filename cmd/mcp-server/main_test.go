package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lespauI/mcp-ios-agent/pkg/config"
)

func TestNewLoggerAcceptsConfiguredLevels(t *testing.T) {
	tests := []struct {
		level  string
		format string
	}{
		{"debug", "text"},
		{"info", "json"},
		{"warn", "text"},
		{"error", "json"},
		{"nonsense", "text"},
	}
	for _, tt := range tests {
		logger := newLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})
		require.NotNil(t, logger, "level %q format %q", tt.level, tt.format)
	}
}

func TestRootCommandHasServe(t *testing.T) {
	root := newRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
	assert.NotNil(t, serve.Flags().Lookup("env-file"))
	assert.NotNil(t, serve.Flags().Lookup("host"))
	assert.NotNil(t, serve.Flags().Lookup("port"))
}
