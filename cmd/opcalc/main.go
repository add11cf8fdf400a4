// OP stack rollup profitability calculator.
// Serves the calculator page and JSON API backed by cached Dune query results.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gateway-fm/opcalc/internal/calculator"
	"github.com/gateway-fm/opcalc/internal/config"
	"github.com/gateway-fm/opcalc/internal/dune"
	"github.com/gateway-fm/opcalc/internal/l1"
	"github.com/gateway-fm/opcalc/internal/metrics"
	"github.com/gateway-fm/opcalc/internal/provider"
	"github.com/gateway-fm/opcalc/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("opcalc exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPrometheusMetrics(registry)

	// Upstream query service
	duneCfg := dune.DefaultClientConfig(cfg.DuneAPIKey)
	duneCfg.BaseURL = cfg.DuneAPIURL
	duneCfg.PollInterval = cfg.PollInterval
	duneCfg.RequestsPerMinute = cfg.DuneRPM
	duneCfg.Logger = logger
	duneClient := dune.NewClient(duneCfg)

	queries := provider.DefaultQueries(cfg.GasPriceQueryID)
	queries.Stats.ID = cfg.StatsQueryID

	opts := []provider.Option{
		provider.WithMetrics(m),
		provider.WithLogger(logger),
	}

	// Optional L1 gas price oracle
	if cfg.L1RPCURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		oracle, err := l1.Dial(dialCtx, cfg.L1RPCURL, l1.DefaultBlockWindow, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("dial L1 RPC: %w", err)
		}
		opts = append(opts, provider.WithGasOracle(oracle))
	}

	prov := provider.New(duneClient, provider.Config{
		Queries:      queries,
		CacheTTL:     cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
	}, opts...)

	calc, err := calculator.NewService(prov, cfg.Weights, m, logger)
	if err != nil {
		return err
	}

	logger.Info("calculator configured",
		"stats_query", cfg.StatsQueryID,
		"gas_price_source", prov.GasPriceSource(),
		"gas_price_query", cfg.GasPriceQueryID,
		"cache_ttl", cfg.CacheTTL,
		"weights", cfg.Weights.String(),
		"model", calc.ModelVersion(),
	)

	// Create HTTP server
	server := transport.NewServer(calc, transport.ServerConfig{
		CORSAllowedOrigins: cfg.AllowedOrigins(),
		DefaultDailyTxns:   cfg.DefaultDailyTxns,
		Gatherer:           registry,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
