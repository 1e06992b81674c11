package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "X-API-Key", cfg.APIKeyHeader)
	assert.False(t, cfg.AuthEnabled)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxResourceSizeBytes)
	assert.Equal(t, 1000, cfg.OperationHistorySize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SSE_RETRY_TIMEOUT", "5")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.SSERetryTimeout, "bare numbers are seconds")
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
}
