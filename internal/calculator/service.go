// Package calculator runs profitability calculations against the current
// upstream snapshots.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gateway-fm/opcalc/internal/cache"
	"github.com/gateway-fm/opcalc/internal/metrics"
	"github.com/gateway-fm/opcalc/internal/profit"
	"github.com/gateway-fm/opcalc/pkg/types"
)

// Calculation statuses recorded in metrics.
const (
	StatusOK           = "ok"
	StatusInvalidInput = "invalid_input"
	StatusFetchError   = "fetch_error"
)

// StatsProvider supplies the cached upstream snapshots.
type StatsProvider interface {
	TransactionStats(ctx context.Context) (*cache.Snapshot[[]types.TxTypeStats], error)
	MedianGasPrice(ctx context.Context) (*cache.Snapshot[float64], error)
	GasPriceSource() string
}

// Service computes profitability reports. Safe for concurrent use.
type Service struct {
	provider   StatsProvider
	weights    profit.Weights
	aggregator *profit.Aggregator
	metrics    *metrics.PrometheusMetrics
	logger     *slog.Logger
}

// NewService creates a Service. The weights are validated once here and are
// constant for the service lifetime.
func NewService(provider StatsProvider, weights profit.Weights, m *metrics.PrometheusMetrics, logger *slog.Logger) (*Service, error) {
	if provider == nil {
		return nil, errors.New("calculator: provider is required")
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("calculator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	own := make(profit.Weights, len(weights))
	for k, v := range weights {
		own[k] = v
	}

	return &Service{
		provider:   provider,
		weights:    own,
		aggregator: profit.NewAggregator(),
		metrics:    m,
		logger:     logger,
	}, nil
}

// Weights returns a copy of the category weights.
func (s *Service) Weights() map[types.TxCategory]float64 {
	out := make(map[types.TxCategory]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// ModelVersion identifies the regression model in use.
func (s *Service) ModelVersion() string {
	return s.aggregator.Model.ID()
}

// Calculate validates dailyTxns, loads the current snapshots and computes the
// report. Input errors are returned before any upstream call is made, except
// volumes that overflow the model, which are rejected after computing.
func (s *Service) Calculate(ctx context.Context, dailyTxns float64) (*types.CalculateResponse, error) {
	if err := profit.ValidateDailyTxns(dailyTxns); err != nil {
		s.record(StatusInvalidInput)
		return nil, err
	}

	stats, gas, err := s.snapshots(ctx)
	if err != nil {
		s.record(StatusFetchError)
		return nil, err
	}

	report := s.aggregator.Compute(stats.Value, s.weights, gas.Value, dailyTxns)
	if err := profit.ValidateReport(report); err != nil {
		s.record(StatusInvalidInput)
		return nil, err
	}
	if len(report.Skipped) > 0 {
		s.logger.Warn("categories skipped in calculation",
			slog.Any("skipped", report.Skipped),
		)
	}

	s.record(StatusOK)
	if s.metrics != nil {
		s.metrics.SetLastReport(report.DailyRevenue, report.DailyCost, report.DailyProfit)
	}
	s.logger.Debug("calculation complete",
		slog.Float64("daily_txns", dailyTxns),
		slog.Float64("daily_revenue", report.DailyRevenue),
		slog.Float64("daily_cost", report.DailyCost),
		slog.Float64("daily_profit", report.DailyProfit),
	)

	return &types.CalculateResponse{
		Report:       report,
		Stats:        stats.Value,
		Weights:      s.Weights(),
		ModelVersion: s.ModelVersion(),
		DataAsOf:     older(stats.FetchedAt, gas.FetchedAt),
	}, nil
}

// Stats returns the current upstream snapshots.
func (s *Service) Stats(ctx context.Context) (*types.StatsResponse, error) {
	stats, gas, err := s.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	return &types.StatsResponse{
		Stats:             stats.Value,
		StatsFetchedAt:    stats.FetchedAt,
		GasPriceGwei:      gas.Value,
		GasPriceFetchedAt: gas.FetchedAt,
		GasPriceSource:    s.provider.GasPriceSource(),
	}, nil
}

// Ready reports whether both datasets can currently be served.
func (s *Service) Ready(ctx context.Context) error {
	_, _, err := s.snapshots(ctx)
	return err
}

func (s *Service) snapshots(ctx context.Context) (*cache.Snapshot[[]types.TxTypeStats], *cache.Snapshot[float64], error) {
	stats, err := s.provider.TransactionStats(ctx)
	if err != nil {
		return nil, nil, err
	}
	gas, err := s.provider.MedianGasPrice(ctx)
	if err != nil {
		return nil, nil, err
	}
	return stats, gas, nil
}

func (s *Service) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordCalculation(status)
	}
}

func older(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
