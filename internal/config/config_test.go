package config

import (
	"flag"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gateway-fm/opcalc/pkg/types"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func loadWith(t *testing.T, env map[string]string, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("opcalc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return load(fs, args, envFrom(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(t, map[string]string{
		"DUNE_API_KEY":            "secret",
		"DUNE_GAS_PRICE_QUERY_ID": "4242",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DuneAPIURL != DefaultDuneAPIURL {
		t.Errorf("DuneAPIURL = %q", cfg.DuneAPIURL)
	}
	if cfg.StatsQueryID != 3036014 {
		t.Errorf("StatsQueryID = %d, want 3036014", cfg.StatsQueryID)
	}
	if cfg.GasPriceQueryID != 4242 {
		t.Errorf("GasPriceQueryID = %d, want 4242", cfg.GasPriceQueryID)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.DefaultDailyTxns != 10000 {
		t.Errorf("DefaultDailyTxns = %v, want 10000", cfg.DefaultDailyTxns)
	}
	if cfg.DuneRPM != 40 {
		t.Errorf("DuneRPM = %d, want 40", cfg.DuneRPM)
	}
	if cfg.ListenAddr != ":3001" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Weights[types.CategoryUniswapTrade] != 0.49 || len(cfg.Weights) != 4 {
		t.Errorf("Weights = %v", cfg.Weights)
	}
}

func TestLoad_EnvAndFlagPrecedence(t *testing.T) {
	env := map[string]string{
		"DUNE_API_KEY":            "secret",
		"DUNE_GAS_PRICE_QUERY_ID": "1",
		"CACHE_TTL":               "10m",
		"LISTEN_ADDR":             ":8080",
		"CATEGORY_WEIGHTS":        "eth_transfer=0.5,hop_bridge=0.5",
	}

	cfg, err := loadWith(t, env, "-listen", ":9090", "-gas-query", "77")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want env value 10m", cfg.CacheTTL)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want flag value :9090", cfg.ListenAddr)
	}
	if cfg.GasPriceQueryID != 77 {
		t.Errorf("GasPriceQueryID = %d, want flag value 77", cfg.GasPriceQueryID)
	}
	if len(cfg.Weights) != 2 || cfg.Weights[types.CategoryHopBridge] != 0.5 {
		t.Errorf("Weights = %v, want env weights", cfg.Weights)
	}
}

func TestLoad_L1RPCReplacesGasQuery(t *testing.T) {
	cfg, err := loadWith(t, map[string]string{
		"DUNE_API_KEY": "secret",
		"L1_RPC_URL":   "http://localhost:8545",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GasPriceQueryID != 0 || cfg.L1RPCURL == "" {
		t.Errorf("gas query = %d, l1 = %q", cfg.GasPriceQueryID, cfg.L1RPCURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"DUNE_API_KEY": "secret", "DUNE_GAS_PRICE_QUERY_ID": "1"}
	}

	tests := []struct {
		name    string
		env     func(map[string]string)
		args    []string
		wantErr string
	}{
		{"missing api key", func(m map[string]string) { delete(m, "DUNE_API_KEY") }, nil, "DUNE_API_KEY is required"},
		{"blank api key", func(m map[string]string) { m["DUNE_API_KEY"] = "  " }, nil, "DUNE_API_KEY is required"},
		{"no gas source", func(m map[string]string) { delete(m, "DUNE_GAS_PRICE_QUERY_ID") }, nil, "gas price query ID or an L1 RPC URL"},
		{"bad query id", func(m map[string]string) { m["DUNE_STATS_QUERY_ID"] = "abc" }, nil, "invalid DUNE_STATS_QUERY_ID"},
		{"bad ttl", func(m map[string]string) { m["CACHE_TTL"] = "soon" }, nil, "invalid CACHE_TTL"},
		{"zero ttl", nil, []string{"-cache-ttl", "0s"}, "cache TTL must be positive"},
		{"weights sum", func(m map[string]string) { m["CATEGORY_WEIGHTS"] = "eth_transfer=0.5" }, nil, "weights sum to"},
		{"malformed weights", nil, []string{"-weights", "eth_transfer"}, "expected category=weight"},
		{"non-positive default txns", nil, []string{"-default-txns", "0"}, "must be greater than zero"},
		{"negative rpm", nil, []string{"-dune-rpm", "-1"}, "cannot be negative"},
		{"bad log level", func(m map[string]string) { m["LOG_LEVEL"] = "verbose" }, nil, "invalid log level"},
		{"unknown flag", nil, []string{"-nope"}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := base()
			if tt.env != nil {
				tt.env(env)
			}
			_, err := loadWith(t, env, tt.args...)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "https://a.example, https://b.example,,"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}
