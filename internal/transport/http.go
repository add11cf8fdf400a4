// Package transport provides HTTP API handlers and the calculator page.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/opcalc/internal/profit"
	"github.com/gateway-fm/opcalc/internal/provider"
	"github.com/gateway-fm/opcalc/pkg/types"
)

const (
	maxBodyBytes   = 1 << 20
	readyTimeout   = 35 * time.Second
	txnsQueryParam = "txns"
)

// CalculatorAPI defines the calculator operations that handlers need.
type CalculatorAPI interface {
	Calculate(ctx context.Context, dailyTxns float64) (*types.CalculateResponse, error)
	Stats(ctx context.Context) (*types.StatsResponse, error)
	Ready(ctx context.Context) error
	Weights() map[types.TxCategory]float64
	ModelVersion() string
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	CORSAllowedOrigins []string // Allowed origins; empty or "*" allows all
	DefaultDailyTxns   float64  // Prefilled value of the page input
	Gatherer           prometheus.Gatherer
}

// Server handles HTTP requests for the calculator.
type Server struct {
	api         CalculatorAPI
	logger      *slog.Logger
	startTime   time.Time
	defaultTxns float64
	metrics     http.Handler

	// CORS configuration
	corsAllowedOrigins []string // Parsed list of allowed origins
	corsAllowAll       bool     // True if "*" or empty (allow all origins)
}

// NewServer creates a new HTTP server.
func NewServer(api CalculatorAPI, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultDailyTxns <= 0 {
		cfg.DefaultDailyTxns = 10000
	}

	s := &Server{
		api:         api,
		logger:      logger,
		startTime:   time.Now(),
		defaultTxns: cfg.DefaultDailyTxns,
		metrics:     promhttp.Handler(),
	}
	if cfg.Gatherer != nil {
		s.metrics = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	// CORS: no origins or "*" allows all
	s.corsAllowAll = len(cfg.CORSAllowedOrigins) == 0
	for _, o := range cfg.CORSAllowedOrigins {
		if o == "*" {
			s.corsAllowAll = true
		}
	}
	if !s.corsAllowAll {
		s.corsAllowedOrigins = cfg.CORSAllowedOrigins
	}

	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Calculator page
	mux.HandleFunc("/", s.handlePage)

	// Versioned API endpoints (v1)
	mux.HandleFunc("/v1/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/v1/weights", s.corsMiddleware(s.handleWeights))
	mux.HandleFunc("/v1/calculate", s.corsMiddleware(s.handleCalculate))

	// Health endpoints (unversioned - standard Kubernetes probes)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	// Prometheus metrics (unversioned - standard path)
	mux.Handle("/metrics", s.metrics)

	return mux
}

// corsMiddleware adds CORS headers based on the configured allowed origins.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.corsAllowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range s.corsAllowedOrigins {
				if o == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// handleStats returns the current upstream snapshots.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.api.Stats(r.Context())
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleWeights returns the category weights and model version.
func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, types.WeightsResponse{
		Weights:      s.api.Weights(),
		ModelVersion: s.api.ModelVersion(),
	})
}

// handleCalculate runs one calculation. GET reads ?txns=, POST reads a JSON body.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var dailyTxns float64

	switch r.Method {
	case http.MethodGet:
		dailyTxns = s.defaultTxns
		if raw := r.URL.Query().Get(txnsQueryParam); raw != "" {
			v, err := profit.ParseDailyTxns(raw)
			if err != nil {
				s.writeAPIError(w, r, err)
				return
			}
			dailyTxns = v
		}

	case http.MethodPost:
		var req types.CalculateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			s.writeJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		dailyTxns = req.DailyTxns

	default:
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := s.api.Calculate(r.Context(), dailyTxns)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

// handleReady handles readiness probes: both datasets must be servable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	start := time.Now()
	err := s.api.Ready(ctx)
	check := types.ReadinessCheck{
		Name:      "upstream-data",
		Status:    "ok",
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = "failed"
		check.Error = err.Error()
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"ready":  err == nil,
		"checks": []types.ReadinessCheck{check},
	})
}

// statusFor maps calculator errors onto HTTP status codes.
func statusFor(err error) int {
	var inputErr *profit.InvalidInputError
	var fetchErr *provider.DataFetchError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	s.writeJSONError(w, err.Error(), status)
}

// writeJSON marshals v before writing the header; a marshal failure answers 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
		s.writeJSONError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
