package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Transaction store
	APIURL           string
	TransactionsPath string
	ImportPath       string

	// CSRF: the cookie is read from the client's jar first, Token is the fallback.
	CSRFCookie string
	CSRFToken  string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience. Only list fetches are ever retried.
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability. An empty endpoint disables trace export.
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIURL:           getEnv("LEDGER_API_URL", "http://localhost:8000/api"),
		TransactionsPath: getEnv("LEDGER_TRANSACTIONS_PATH", "transactions/"),
		ImportPath:       getEnv("LEDGER_IMPORT_PATH", "fetch-external-transactions/"),

		CSRFCookie: getEnv("LEDGER_CSRF_COOKIE", "csrftoken"),
		CSRFToken:  getEnv("LEDGER_CSRF_TOKEN", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate reports configuration that would make every request fail.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LEDGER_API_URL %q is not an absolute URL", c.APIURL)
	}
	if strings.TrimSpace(c.TransactionsPath) == "" {
		return fmt.Errorf("LEDGER_TRANSACTIONS_PATH must not be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got %d", c.MaxRetries)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
