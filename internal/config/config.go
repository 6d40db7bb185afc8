package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL = "https://api.cursor.com"
	DefaultTokenTTL   = 30 * 24 * time.Hour

	// MinPollInterval bounds both the configured and the per-call poll interval.
	MinPollInterval = 100 * time.Millisecond
)

type Config struct {
	HTTPAddr   string
	APIBaseURL string
	// APIKey is the fallback credential used when a request carries none.
	APIKey string

	// TokenSecret keys the token codec. Empty means a process-local key, so
	// tokens do not survive a restart.
	TokenSecret string
	TokenTTL    time.Duration

	PollInterval   time.Duration
	WaitTimeout    time.Duration
	MaxWaitTimeout time.Duration
	PollRetries    int

	RateLimitPerMinute int
	CORSOrigins        []string

	LogLevel  string
	LogPretty bool

	TraceExporter string // "none" | "stdout" | "otlp"
	OTLPEndpoint  string
}

func Load() (Config, error) {
	// Optional: load local .env for development. Missing file is fine.
	_ = godotenv.Load()

	pollMs := getenvIntDefault("AGENTMCP_POLL_INTERVAL_MS", 5000)
	if minMs := int(MinPollInterval / time.Millisecond); pollMs < minMs {
		pollMs = minMs
	}

	waitMs := getenvIntDefault("AGENTMCP_WAIT_TIMEOUT_MS", 600000)
	if waitMs < 1 {
		waitMs = 600000
	}

	maxWaitMs := getenvIntDefault("AGENTMCP_MAX_WAIT_TIMEOUT_MS", 1800000)
	if maxWaitMs < waitMs {
		maxWaitMs = waitMs
	}

	retries := getenvIntDefault("AGENTMCP_POLL_RETRIES", 3)
	if retries < 1 {
		retries = 1
	}
	if retries > 10 {
		retries = 10
	}

	ratePerMinute := getenvIntDefault("AGENTMCP_RATE_LIMIT_PER_MINUTE", 120)
	if ratePerMinute < 1 {
		ratePerMinute = 1
	}

	// Non-positive TTLs are accepted; such tokens are expired on arrival.
	ttlMs := getenvIntDefault("AGENTMCP_TOKEN_TTL_MS", int(DefaultTokenTTL/time.Millisecond))

	cfg := Config{
		HTTPAddr:    getenvDefault("AGENTMCP_HTTP_ADDR", ":8080"),
		APIBaseURL:  strings.TrimRight(getenvDefault("AGENTMCP_API_BASE_URL", DefaultAPIBaseURL), "/"),
		APIKey:      strings.TrimSpace(os.Getenv("AGENTMCP_API_KEY")),
		TokenSecret: os.Getenv("AGENTMCP_TOKEN_SECRET"),
		TokenTTL:    time.Duration(ttlMs) * time.Millisecond,

		PollInterval:   time.Duration(pollMs) * time.Millisecond,
		WaitTimeout:    time.Duration(waitMs) * time.Millisecond,
		MaxWaitTimeout: time.Duration(maxWaitMs) * time.Millisecond,
		PollRetries:    retries,

		RateLimitPerMinute: ratePerMinute,
		CORSOrigins:        getenvCSV("AGENTMCP_CORS_ORIGINS"),

		LogLevel:  strings.ToLower(getenvDefault("AGENTMCP_LOG_LEVEL", "info")),
		LogPretty: getenvBool("AGENTMCP_LOG_PRETTY"),

		TraceExporter: strings.ToLower(getenvDefault("AGENTMCP_TRACE_EXPORTER", "none")),
		OTLPEndpoint:  getenvDefault("AGENTMCP_OTLP_ENDPOINT", "localhost:4317"),
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func getenvCSV(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
