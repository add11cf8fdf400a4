// Package config handles configuration loading and validation.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gateway-fm/opcalc/internal/dune"
	"github.com/gateway-fm/opcalc/internal/profit"
	"github.com/gateway-fm/opcalc/internal/provider"
)

// Config holds calculator configuration.
type Config struct {
	DuneAPIKey      string // secret, environment only
	DuneAPIURL      string
	StatsQueryID    int64
	GasPriceQueryID int64  // 0 = not configured; required unless L1RPCURL is set
	L1RPCURL        string // when set, the gas price comes from eth_feeHistory

	CacheTTL     time.Duration
	FetchTimeout time.Duration // bound on one upstream refresh
	PollInterval time.Duration // execution status poll interval
	DuneRPM      int           // upstream requests per minute, 0 = unlimited

	Weights          profit.Weights
	DefaultDailyTxns float64

	ListenAddr         string
	CORSAllowedOrigins string // Comma-separated list of allowed origins, or "*" for all (default: "*")
	LogLevel           string
}

// Defaults
const (
	DefaultDuneAPIURL         = dune.DefaultBaseURL
	DefaultStatsQueryID       = provider.DefaultStatsQueryID
	DefaultCacheTTL           = provider.DefaultCacheTTL
	DefaultFetchTimeout       = provider.DefaultFetchTimeout
	DefaultPollInterval       = 2 * time.Second
	DefaultDuneRPM            = dune.DefaultRequestsPerMinute
	DefaultDailyTxns          = 10000
	DefaultListenAddr         = ":3001"
	DefaultCORSAllowedOrigins = "*" // Allow all origins by default for dev
	DefaultLogLevel           = "info"
)

// Load reads configuration from environment variables and command-line flags.
// Command-line flags take precedence over environment variables.
func Load() (*Config, error) {
	return load(flag.CommandLine, os.Args[1:], os.Getenv)
}

func load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DuneAPIURL:         DefaultDuneAPIURL,
		StatsQueryID:       DefaultStatsQueryID,
		CacheTTL:           DefaultCacheTTL,
		FetchTimeout:       DefaultFetchTimeout,
		PollInterval:       DefaultPollInterval,
		DuneRPM:            DefaultDuneRPM,
		Weights:            profit.DefaultWeights(),
		DefaultDailyTxns:   DefaultDailyTxns,
		ListenAddr:         DefaultListenAddr,
		CORSAllowedOrigins: DefaultCORSAllowedOrigins,
		LogLevel:           DefaultLogLevel,
	}

	// Load from environment variables first
	cfg.DuneAPIKey = strings.TrimSpace(getenv("DUNE_API_KEY"))
	if v := getenv("DUNE_API_URL"); v != "" {
		cfg.DuneAPIURL = v
	}
	if v := getenv("L1_RPC_URL"); v != "" {
		cfg.L1RPCURL = v
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	var err error
	if v := getenv("DUNE_STATS_QUERY_ID"); v != "" {
		if cfg.StatsQueryID, err = parseInt64Env("DUNE_STATS_QUERY_ID", v); err != nil {
			return nil, err
		}
	}
	if v := getenv("DUNE_GAS_PRICE_QUERY_ID"); v != "" {
		if cfg.GasPriceQueryID, err = parseInt64Env("DUNE_GAS_PRICE_QUERY_ID", v); err != nil {
			return nil, err
		}
	}
	if v := getenv("CACHE_TTL"); v != "" {
		if cfg.CacheTTL, err = parseDurationEnv("CACHE_TTL", v); err != nil {
			return nil, err
		}
	}
	if v := getenv("FETCH_TIMEOUT"); v != "" {
		if cfg.FetchTimeout, err = parseDurationEnv("FETCH_TIMEOUT", v); err != nil {
			return nil, err
		}
	}
	if v := getenv("POLL_INTERVAL"); v != "" {
		if cfg.PollInterval, err = parseDurationEnv("POLL_INTERVAL", v); err != nil {
			return nil, err
		}
	}
	if v := getenv("DUNE_REQUESTS_PER_MINUTE"); v != "" {
		rpm, err := parseInt64Env("DUNE_REQUESTS_PER_MINUTE", v)
		if err != nil {
			return nil, err
		}
		cfg.DuneRPM = int(rpm)
	}
	if v := getenv("CATEGORY_WEIGHTS"); v != "" {
		if cfg.Weights, err = profit.ParseWeights(v); err != nil {
			return nil, fmt.Errorf("CATEGORY_WEIGHTS: %w", err)
		}
	}
	if v := getenv("DEFAULT_DAILY_TXNS"); v != "" {
		if cfg.DefaultDailyTxns, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_DAILY_TXNS %q: %w", v, err)
		}
	}

	// Define command-line flags
	var (
		duneURL      = fs.String("dune-url", cfg.DuneAPIURL, "Dune API base URL")
		statsQuery   = fs.Int64("stats-query", cfg.StatsQueryID, "Dune query ID for per-category transaction stats")
		gasQuery     = fs.Int64("gas-query", cfg.GasPriceQueryID, "Dune query ID for the median L1 gas price")
		l1RPC        = fs.String("l1-rpc", cfg.L1RPCURL, "L1 RPC URL; read the gas price from eth_feeHistory instead of Dune")
		cacheTTL     = fs.Duration("cache-ttl", cfg.CacheTTL, "How long fetched data is reused")
		fetchTimeout = fs.Duration("fetch-timeout", cfg.FetchTimeout, "Upper bound on one upstream refresh")
		pollInterval = fs.Duration("poll-interval", cfg.PollInterval, "Query execution status poll interval")
		duneRPM      = fs.Int("dune-rpm", cfg.DuneRPM, "Maximum Dune API requests per minute (0 = unlimited)")
		weights      = fs.String("weights", cfg.Weights.String(), "Category weights as category=share pairs")
		defaultTxns  = fs.Float64("default-txns", cfg.DefaultDailyTxns, "Daily transaction count shown on the page by default")
		listenAddr   = fs.String("listen", cfg.ListenAddr, "HTTP listen address")
		cors         = fs.String("cors", cfg.CORSAllowedOrigins, "Allowed CORS origins, comma-separated, or *")
		logLevel     = fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Apply flags to config
	cfg.DuneAPIURL = *duneURL
	cfg.StatsQueryID = *statsQuery
	cfg.GasPriceQueryID = *gasQuery
	cfg.L1RPCURL = *l1RPC
	cfg.CacheTTL = *cacheTTL
	cfg.FetchTimeout = *fetchTimeout
	cfg.PollInterval = *pollInterval
	cfg.DuneRPM = *duneRPM
	cfg.DefaultDailyTxns = *defaultTxns
	cfg.ListenAddr = *listenAddr
	cfg.CORSAllowedOrigins = *cors
	cfg.LogLevel = *logLevel

	if cfg.Weights, err = profit.ParseWeights(*weights); err != nil {
		return nil, fmt.Errorf("-weights: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DuneAPIKey == "" {
		return fmt.Errorf("DUNE_API_KEY is required")
	}
	if c.DuneAPIURL == "" {
		return fmt.Errorf("dune API URL is required")
	}
	if c.StatsQueryID <= 0 {
		return fmt.Errorf("stats query ID must be positive")
	}
	if c.GasPriceQueryID < 0 {
		return fmt.Errorf("gas price query ID cannot be negative")
	}
	if c.GasPriceQueryID == 0 && c.L1RPCURL == "" {
		return fmt.Errorf("either a gas price query ID or an L1 RPC URL is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.DuneRPM < 0 {
		return fmt.Errorf("dune requests per minute cannot be negative")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := profit.ValidateDailyTxns(c.DefaultDailyTxns); err != nil {
		return fmt.Errorf("default daily transactions: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// AllowedOrigins splits CORSAllowedOrigins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// parseInt64Env parses a string environment variable as an int64.
func parseInt64Env(name, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

// parseDurationEnv parses a string environment variable as a time.Duration.
func parseDurationEnv(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}
