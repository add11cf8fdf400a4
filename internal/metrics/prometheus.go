// Package metrics exposes Prometheus metrics for the calculator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics for the calculator.
type PrometheusMetrics struct {
	// Upstream data source
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec

	// Calculations
	Calculations *prometheus.CounterVec
	LastRevenue  prometheus.Gauge
	LastCost     prometheus.Gauge
	LastProfit   prometheus.Gauge
	GasPriceGwei prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opcalc_upstream_requests_total",
				Help: "Upstream data fetches by query and status",
			},
			[]string{"query", "status"},
		),

		UpstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opcalc_upstream_latency_seconds",
				Help:    "Upstream data fetch latency in seconds, including query execution",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"query"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opcalc_cache_lookups_total",
				Help: "Snapshot cache lookups by query and outcome",
			},
			[]string{"query", "outcome"},
		),

		Calculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opcalc_calculations_total",
				Help: "Profitability calculations by status",
			},
			[]string{"status"},
		),

		LastRevenue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "opcalc_last_daily_revenue_eth",
				Help: "Daily revenue of the most recent calculation in ETH",
			},
		),

		LastCost: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "opcalc_last_daily_cost_eth",
				Help: "Daily L1 cost of the most recent calculation in ETH",
			},
		),

		LastProfit: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "opcalc_last_daily_profit_eth",
				Help: "Daily profit of the most recent calculation in ETH",
			},
		),

		GasPriceGwei: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "opcalc_gas_price_gwei",
				Help: "Most recently fetched median L1 gas price in gwei",
			},
		),
	}
}

// RecordUpstream records one upstream fetch.
func (m *PrometheusMetrics) RecordUpstream(query string, success bool, latencySeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.UpstreamRequests.WithLabelValues(query, status).Inc()
	m.UpstreamLatency.WithLabelValues(query).Observe(latencySeconds)
}

// RecordCacheLookup records a cache lookup outcome.
func (m *PrometheusMetrics) RecordCacheLookup(query, outcome string) {
	m.CacheLookups.WithLabelValues(query, outcome).Inc()
}

// RecordCalculation records a calculation outcome: "ok", "invalid_input" or "fetch_error".
func (m *PrometheusMetrics) RecordCalculation(status string) {
	m.Calculations.WithLabelValues(status).Inc()
}

// SetLastReport updates the last-report gauges.
func (m *PrometheusMetrics) SetLastReport(revenue, cost, profit float64) {
	m.LastRevenue.Set(revenue)
	m.LastCost.Set(cost)
	m.LastProfit.Set(profit)
}

// SetGasPrice updates the gas price gauge.
func (m *PrometheusMetrics) SetGasPrice(gwei float64) {
	m.GasPriceGwei.Set(gwei)
}
