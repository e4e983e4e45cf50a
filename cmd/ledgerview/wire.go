package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/boddenberg/ledgerview/internal/config"
	"github.com/boddenberg/ledgerview/internal/infra/client"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/infra/resilience"
	"github.com/boddenberg/ledgerview/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is everything a command needs, built from the environment.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	ledger   *service.LedgerController
	shutdown func(context.Context) error
}

// loadConfig seeds the environment from the dotenv file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		_ = config.LoadDotEnv(envFile)
	}

	cfg := config.Load()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires config, observability, the store client and one controller.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	logger.Info("configuration loaded",
		zap.String("api_url", cfg.APIURL),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("tracing", cfg.OTLPEndpoint != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ledgerview")
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Client ---
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout, Jar: jar}

	tokens, err := client.NewCookieTokenSource(jar, cfg.APIURL, cfg.CSRFCookie, cfg.CSRFToken)
	if err != nil {
		return nil, err
	}

	store := client.NewLedgerClient(
		httpClient,
		cfg.APIURL,
		client.Paths{Transactions: cfg.TransactionsPath, Import: cfg.ImportPath},
		tokens,
		resilience.NewCircuitBreaker("transaction-store"),
		resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
		metrics,
		logger,
	)

	// --- Controller ---
	ledger := service.NewLedgerController(store, store, metrics, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		ledger:   ledger,
		shutdown: shutdown,
	}, nil
}

// Close tears down the controller and flushes traces.
func (a *app) Close() {
	a.ledger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
