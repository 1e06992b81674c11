// Package config loads server configuration from the environment.
// Values come from process env vars, optionally seeded from a .env
// file (with an environment-specific override such as .env.dev), the
// same layering the deployment scripts expect.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings with their defaults applied.
type Config struct {
	// Application
	ProjectName string
	Environment string
	APIPrefix   string

	// Server
	Host  string
	Port  int
	Debug bool

	// Security
	AuthEnabled     bool
	APIKeyHeader    string
	APIKeyMinLength int

	// CORS
	CORSOrigins []string

	// SSE
	SSERetryTimeout time.Duration
	SSEQueueSize    int

	// Sessions
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration

	// Redis (optional session backend; empty addr selects in-memory)
	RedisAddr     string
	RedisDB       int
	RedisPassword string

	// Resources
	StoragePath             string
	MaxResourceSizeBytes    int64
	ResourceCleanupInterval time.Duration

	// Telemetry
	OperationHistorySize int
	EnableTracing        bool
	OTLPEndpoint         string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A non-empty envFile
// is loaded first; otherwise .env.<environment> then .env are tried.
// Missing files are not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		env := getString("ENVIRONMENT", "development")
		for _, candidate := range []string{".env." + env, ".env"} {
			if _, err := os.Stat(candidate); err == nil {
				_ = godotenv.Load(candidate)
				break
			}
		}
	}

	cfg := &Config{
		ProjectName: getString("PROJECT_NAME", "MCP Tool Server"),
		Environment: getString("ENVIRONMENT", "development"),
		APIPrefix:   getString("API_PREFIX", "/api/v1"),

		Host:  getString("HOST", "0.0.0.0"),
		Port:  getInt("PORT", 8000),
		Debug: getBool("DEBUG", false),

		AuthEnabled:     getBool("AUTH_ENABLED", false),
		APIKeyHeader:    getString("API_KEY_HEADER", "X-API-Key"),
		APIKeyMinLength: getInt("API_KEY_MIN_LENGTH", 32),

		CORSOrigins: []string{getString("CORS_ORIGINS", "*")},

		SSERetryTimeout: getDuration("SSE_RETRY_TIMEOUT", 3*time.Second),
		SSEQueueSize:    getInt("SSE_QUEUE_SIZE", 64),

		SessionTTL:             getDuration("SESSION_TTL", time.Hour),
		SessionCleanupInterval: getDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),

		RedisAddr:     getString("REDIS_ADDR", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisPassword: getString("REDIS_PASSWORD", ""),

		StoragePath:             getString("STORAGE_PATH", "storage"),
		MaxResourceSizeBytes:    getInt64("MAX_RESOURCE_SIZE_BYTES", 100*1024*1024),
		ResourceCleanupInterval: getDuration("RESOURCE_CLEANUP_INTERVAL", 5*time.Minute),

		OperationHistorySize: getInt("OPERATION_HISTORY_SIZE", 1000),
		EnableTracing:        getBool("ENABLE_TRACING", false),
		OTLPEndpoint:         getString("OTLP_ENDPOINT", "localhost:4317"),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "text"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getDuration reads a duration either as a Go duration string or as a
// bare number of seconds, which is how the legacy env files wrote it.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
