// Package types contains public API types for the profitability calculator.
// These types form the external interface and must remain backwards-compatible.
package types

import "time"

// TxCategory names a transaction category as reported by the stats query.
type TxCategory string

const (
	CategoryEthTransfer   TxCategory = "eth_transfer"
	CategoryERC20Transfer TxCategory = "erc20_transfer"
	CategoryUniswapTrade  TxCategory = "uniswap_trade"
	CategoryHopBridge     TxCategory = "hop_bridge"
)

// TxTypeStats holds the median per-transaction statistics for one category.
type TxTypeStats struct {
	TxType              TxCategory `json:"txType"`
	MedianL2Revenue     float64    `json:"medianL2Revenue"`     // ETH per tx
	MedianCalldataBytes float64    `json:"medianCalldataBytes"` // bytes per tx
	MedianL1GasUsed     float64    `json:"medianL1GasUsed"`     // calldata gas per tx
}

// CategoryBreakdown is one step of the profitability breakdown.
type CategoryBreakdown struct {
	TxType       TxCategory `json:"txType"`
	Weight       float64    `json:"weight"`
	DailyTxns    float64    `json:"dailyTxns"`    // weight * total daily txns
	RevenuePerTx float64    `json:"revenuePerTx"` // weight * median L2 revenue
	DailyRevenue float64    `json:"dailyRevenue"` // ETH
	DailyL1Gas   float64    `json:"dailyL1Gas"`   // gas units, may be negative
	DailyCost    float64    `json:"dailyCost"`    // ETH
}

// ProfitabilityReport is the derived result of one calculation. Never stored.
type ProfitabilityReport struct {
	DailyRevenue float64 `json:"dailyRevenue"` // ETH
	DailyCost    float64 `json:"dailyCost"`    // ETH
	DailyProfit  float64 `json:"dailyProfit"`  // ETH

	RevenuePerTx float64             `json:"revenuePerTx"` // weighted ETH per tx
	DailyL1Gas   float64             `json:"dailyL1Gas"`
	GasPriceGwei float64             `json:"gasPriceGwei"`
	DailyTxns    float64             `json:"dailyTxns"`
	Categories   []CategoryBreakdown `json:"categories"`
	// Skipped lists categories present in only one of stats or weights.
	Skipped []TxCategory `json:"skipped,omitempty"`
}

// CalculateRequest is the body of POST /v1/calculate.
type CalculateRequest struct {
	DailyTxns float64 `json:"dailyTxns"`
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Stats             []TxTypeStats `json:"stats"`
	StatsFetchedAt    time.Time     `json:"statsFetchedAt"`
	GasPriceGwei      float64       `json:"gasPriceGwei"`
	GasPriceFetchedAt time.Time     `json:"gasPriceFetchedAt"`
	GasPriceSource    string        `json:"gasPriceSource"`
}

// CalculateResponse is returned by /v1/calculate.
type CalculateResponse struct {
	Report       ProfitabilityReport    `json:"report"`
	Stats        []TxTypeStats          `json:"stats"`
	Weights      map[TxCategory]float64 `json:"weights"`
	ModelVersion string                 `json:"modelVersion"`
	DataAsOf     time.Time              `json:"dataAsOf"`
}

// WeightsResponse is returned by GET /v1/weights.
type WeightsResponse struct {
	Weights      map[TxCategory]float64 `json:"weights"`
	ModelVersion string                 `json:"modelVersion"`
}

// ReadinessCheck represents a single readiness check result.
type ReadinessCheck struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // "ok" or "failed"
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}
