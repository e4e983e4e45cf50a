package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LEDGER_API_URL", "MAX_RETRIES", "HTTP_TIMEOUT", "OTEL_EXPORTER_OTLP_ENDPOINT", "LEDGER_CSRF_COOKIE"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.APIURL != "http://localhost:8000/api" {
		t.Errorf("unexpected API URL %q", cfg.APIURL)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.MaxRetries)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("expected tracing export disabled, got %q", cfg.OTLPEndpoint)
	}
	if cfg.CSRFCookie != "csrftoken" {
		t.Errorf("expected csrftoken cookie, got %q", cfg.CSRFCookie)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_API_URL", "https://ledger.example.com/api")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("PORT", "not-a-number")

	cfg := Load()

	if cfg.APIURL != "https://ledger.example.com/api" {
		t.Errorf("unexpected API URL %q", cfg.APIURL)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.MaxRetries)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.HTTPTimeout)
	}
	if cfg.Port != 8080 {
		t.Errorf("invalid PORT should fall back to 8080, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"relative url", func(c *Config) { c.APIURL = "/api" }},
		{"empty transactions path", func(c *Config) { c.TransactionsPath = " " }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{APIURL: "http://localhost:8000/api", TransactionsPath: "transactions/", HTTPTimeout: time.Second}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n" +
		"export LEDGER_TEST_A=alpha\n" +
		"LEDGER_TEST_B=\"quoted # kept\"\n" +
		"LEDGER_TEST_C=plain # trailing\n" +
		"LEDGER_TEST_D=from-file\n" +
		"garbage line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_TEST_D", "from-env")
	for _, k := range []string{"LEDGER_TEST_A", "LEDGER_TEST_B", "LEDGER_TEST_C"} {
		k := k
		os.Unsetenv(k)
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"LEDGER_TEST_A": "alpha",
		"LEDGER_TEST_B": "quoted # kept",
		"LEDGER_TEST_C": "plain",
		"LEDGER_TEST_D": "from-env",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}
