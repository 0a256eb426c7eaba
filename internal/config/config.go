// Package config loads gateway configuration from the environment into a
// single read-only struct built once at startup. Unlike a cached settings
// singleton, Config is constructed in cmd/gateway/main.go and passed down
// explicitly so every component's dependencies are visible in its
// constructor signature.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TenantBootstrap is one entry in the startup tenant-seeding list.
type TenantBootstrap struct {
	ID            string
	Name          string
	TenantSecret  string
	WebhookSecret string
	RateLimitRPS  int
	Scopes        []string
}

// Config is the fully-resolved, immutable gateway configuration.
type Config struct {
	Env     string
	Debug   bool
	Sandbox bool

	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	EncryptionKey string

	OAuth2TokenTTL time.Duration

	RequestIDHeader string

	CollateralAPIURL     string
	CollateralAPIKey     string
	CollateralAPITimeout time.Duration

	LLMProvider string
	LLMAPIKey   string
	LLMTimeout  time.Duration

	MarketSearchMaxResults int

	TmpDir                string
	PDFDownloadTimeout    time.Duration
	PDFMaxBytes           int64

	WebhookTimeout      time.Duration
	WebhookMaxAttempts  int
	WebhookBackoffBase  time.Duration

	WorkerCount int
	QueuePollInterval time.Duration

	PrometheusPrefix string

	TenantsBootstrap []TenantBootstrap
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load builds Config from the process environment. It does not validate
// any field: main fatals on a missing ENCRYPTION_KEY explicitly so the
// failure reason is obvious at the call site, and falls back to in-memory
// stores when DATABASE_URL is empty.
func Load() Config {
	return Config{
		Env:     env("ENV", "local"),
		Debug:   envBool("DEBUG", false),
		Sandbox: envBool("SANDBOX_MODE", true),

		HTTPAddr: env("HTTP_ADDR", ":8080"),

		DatabaseURL: env("DATABASE_URL", ""),
		RedisURL:    env("REDIS_URL", ""),

		EncryptionKey: env("ENCRYPTION_KEY", ""),

		OAuth2TokenTTL: time.Duration(envInt("OAUTH2_TOKEN_TTL_SECONDS", 3600)) * time.Second,

		RequestIDHeader: env("REQUEST_ID_HEADER", "X-Request-Id"),

		CollateralAPIURL:     env("SOFTMAX_COLLATERAL_URL", "https://collateral.softmax.mn"),
		CollateralAPIKey:     env("COLLATERAL_API_KEY", ""),
		CollateralAPITimeout: time.Duration(envInt("COLLATERAL_API_TIMEOUT", 20)) * time.Second,

		LLMProvider: env("LLM_PROVIDER", "sandbox"),
		LLMAPIKey:   env("LLM_API_KEY", ""),
		LLMTimeout:  time.Duration(envInt("LLM_TIMEOUT_SECONDS", 90)) * time.Second,

		MarketSearchMaxResults: envInt("MARKET_SEARCH_MAX_RESULTS", 20),

		TmpDir:             env("TMPDIR", "/tmp"),
		PDFDownloadTimeout: time.Duration(envInt("PDF_DOWNLOAD_TIMEOUT_SECONDS", 30)) * time.Second,
		PDFMaxBytes:        int64(envInt("PDF_MAX_BYTES", 20*1024*1024)),

		WebhookTimeout:     time.Duration(envInt("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
		WebhookMaxAttempts: envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookBackoffBase: time.Duration(envInt("WEBHOOK_BACKOFF_SECONDS", 2)) * time.Second,

		WorkerCount:       envInt("WORKER_COUNT", 4),
		QueuePollInterval: time.Duration(envInt("QUEUE_POLL_INTERVAL_MS", 250)) * time.Millisecond,

		PrometheusPrefix: env("PROMETHEUS_PREFIX", "softmax_underwriting"),

		TenantsBootstrap: parseTenantsBootstrap(env("TENANTS_BOOTSTRAP", "")),
	}
}

// parseTenantsBootstrap parses a compact seed format so the gateway can be
// brought up without a database migration or admin API:
//
//	id:name:tenant_secret:webhook_secret:rate_limit_rps:scope1|scope2;...
//
// Entries are separated by ';'. This mirrors the original service's
// tenants_bootstrap list, which is sourced from a settings file rather than
// a runtime tenant-creation endpoint (no such endpoint exists in this repo).
func parseTenantsBootstrap(raw string) []TenantBootstrap {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []TenantBootstrap
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 5 {
			continue
		}
		rps, err := strconv.Atoi(parts[4])
		if err != nil {
			rps = 10
		}
		var scopes []string
		if len(parts) >= 6 && parts[5] != "" {
			scopes = strings.Split(parts[5], "|")
		}
		out = append(out, TenantBootstrap{
			ID:            parts[0],
			Name:          parts[1],
			TenantSecret:  parts[2],
			WebhookSecret: parts[3],
			RateLimitRPS:  rps,
			Scopes:        scopes,
		})
	}
	return out
}
