package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"AGENTMCP_HTTP_ADDR", "AGENTMCP_API_BASE_URL", "AGENTMCP_API_KEY", "AGENTMCP_TOKEN_SECRET",
	"AGENTMCP_TOKEN_TTL_MS", "AGENTMCP_POLL_INTERVAL_MS", "AGENTMCP_WAIT_TIMEOUT_MS",
	"AGENTMCP_MAX_WAIT_TIMEOUT_MS", "AGENTMCP_POLL_RETRIES", "AGENTMCP_RATE_LIMIT_PER_MINUTE",
	"AGENTMCP_LOG_LEVEL", "AGENTMCP_LOG_PRETTY", "AGENTMCP_TRACE_EXPORTER",
	"AGENTMCP_OTLP_ENDPOINT", "AGENTMCP_CORS_ORIGINS",
}

// isolate clears every variable and runs from an empty directory so no .env
// file is picked up.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.TokenSecret)
	assert.Equal(t, DefaultTokenTTL, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.WaitTimeout)
	assert.Equal(t, 30*time.Minute, cfg.MaxWaitTimeout)
	assert.Equal(t, 3, cfg.PollRetries)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Nil(t, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AGENTMCP_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("AGENTMCP_API_BASE_URL", "http://localhost:4000/")
	t.Setenv("AGENTMCP_API_KEY", "  key_configured_default_01 ")
	t.Setenv("AGENTMCP_TOKEN_SECRET", "s3cret")
	t.Setenv("AGENTMCP_TOKEN_TTL_MS", "-1")
	t.Setenv("AGENTMCP_POLL_INTERVAL_MS", "250")
	t.Setenv("AGENTMCP_LOG_LEVEL", "DEBUG")
	t.Setenv("AGENTMCP_LOG_PRETTY", "true")
	t.Setenv("AGENTMCP_TRACE_EXPORTER", "OTLP")
	t.Setenv("AGENTMCP_CORS_ORIGINS", "https://a.example, https://b.example,,https://a.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:4000", cfg.APIBaseURL)
	assert.Equal(t, "key_configured_default_01", cfg.APIKey)
	assert.Equal(t, "s3cret", cfg.TokenSecret)
	assert.Equal(t, -time.Millisecond, cfg.TokenTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "otlp", cfg.TraceExporter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadClamps(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "poll interval floor",
			env:  map[string]string{"AGENTMCP_POLL_INTERVAL_MS": "5"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
			},
		},
		{
			name: "retries bounded",
			env:  map[string]string{"AGENTMCP_POLL_RETRIES": "50"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 10, cfg.PollRetries)
			},
		},
		{
			name: "retries at least one",
			env:  map[string]string{"AGENTMCP_POLL_RETRIES": "0"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 1, cfg.PollRetries)
			},
		},
		{
			name: "rate limit at least one",
			env:  map[string]string{"AGENTMCP_RATE_LIMIT_PER_MINUTE": "-4"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 1, cfg.RateLimitPerMinute)
			},
		},
		{
			name: "max timeout never below default",
			env:  map[string]string{"AGENTMCP_WAIT_TIMEOUT_MS": "900000", "AGENTMCP_MAX_WAIT_TIMEOUT_MS": "60000"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 15*time.Minute, cfg.MaxWaitTimeout)
			},
		},
		{
			name: "unparsable falls back",
			env:  map[string]string{"AGENTMCP_POLL_INTERVAL_MS": "soon"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 5*time.Second, cfg.PollInterval)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	isolate(t)
	dir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENTMCP_HTTP_ADDR=:7070\n"), 0o600))
	// godotenv never overrides variables already set, even to "".
	require.NoError(t, os.Unsetenv("AGENTMCP_HTTP_ADDR"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	require.NoError(t, os.Unsetenv("AGENTMCP_HTTP_ADDR"))
}
