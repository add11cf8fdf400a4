// Package profit combines per-category statistics into a daily
// revenue, cost and profit estimate.
package profit

import (
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"github.com/gateway-fm/opcalc/internal/regression"
	"github.com/gateway-fm/opcalc/pkg/types"
)

// gweiPerEther converts gas * gwei into ETH.
const gweiPerEther = float64(params.GWei)

// Aggregator computes profitability reports with a fixed gas model.
type Aggregator struct {
	Model regression.Coefficients
}

// NewAggregator returns an Aggregator using the production model.
func NewAggregator() *Aggregator {
	return &Aggregator{Model: regression.DefaultCoefficients}
}

// Compute evaluates the default model. See Aggregator.Compute.
func Compute(stats []types.TxTypeStats, weights Weights, gasPriceGwei, totalDailyTxns float64) types.ProfitabilityReport {
	return NewAggregator().Compute(stats, weights, gasPriceGwei, totalDailyTxns)
}

// Compute builds the report. Only categories present in both stats and
// weights contribute; every other category is listed in Skipped and adds
// exactly zero to revenue and cost.
func (a *Aggregator) Compute(stats []types.TxTypeStats, weights Weights, gasPriceGwei, totalDailyTxns float64) types.ProfitabilityReport {
	report := types.ProfitabilityReport{
		GasPriceGwei: gasPriceGwei,
		DailyTxns:    totalDailyTxns,
		Categories:   make([]types.CategoryBreakdown, 0, len(stats)),
	}

	seen := make(map[types.TxCategory]bool, len(stats))
	var revenueRate, dailyGas float64

	for _, s := range stats {
		weight, ok := weights[s.TxType]
		if !ok || seen[s.TxType] {
			report.Skipped = append(report.Skipped, s.TxType)
			continue
		}
		seen[s.TxType] = true

		share := weight * totalDailyTxns
		rate := weight * s.MedianL2Revenue
		gas := a.Model.Estimate(s.MedianCalldataBytes, s.MedianL1GasUsed, share)

		revenueRate += rate
		dailyGas += gas

		report.Categories = append(report.Categories, types.CategoryBreakdown{
			TxType:       s.TxType,
			Weight:       weight,
			DailyTxns:    share,
			RevenuePerTx: rate,
			DailyRevenue: rate * totalDailyTxns,
			DailyL1Gas:   gas,
			DailyCost:    gasCostEther(gas, gasPriceGwei),
		})
	}

	for _, cat := range weights.Categories() {
		if !seen[cat] {
			report.Skipped = append(report.Skipped, cat)
		}
	}

	report.RevenuePerTx = revenueRate
	report.DailyL1Gas = dailyGas
	report.DailyRevenue = revenueRate * totalDailyTxns
	report.DailyCost = gasCostEther(dailyGas, gasPriceGwei)
	report.DailyProfit = report.DailyRevenue - report.DailyCost
	return report
}

func gasCostEther(gas, gasPriceGwei float64) float64 {
	return gas * gasPriceGwei / gweiPerEther
}

// ValidateDailyTxns rejects volumes the model cannot be asked about.
func ValidateDailyTxns(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidInputError{Field: "daily transactions", Reason: "must be a finite number"}
	}
	if v <= 0 {
		return &InvalidInputError{Field: "daily transactions", Reason: "must be greater than zero"}
	}
	return nil
}

// ReasonOutOfRange is the InvalidInputError reason for volumes whose report
// overflows float64.
const ReasonOutOfRange = "too large for the model"

// ValidateReport rejects a report holding non-finite totals. The quadratic
// volume term overflows for very large but finite inputs.
func ValidateReport(r types.ProfitabilityReport) error {
	for _, v := range []float64{r.DailyRevenue, r.DailyCost, r.DailyProfit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidInputError{Field: "daily transactions", Reason: ReasonOutOfRange}
		}
	}
	return nil
}

// ParseDailyTxns parses and validates a user-supplied transaction count.
func ParseDailyTxns(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &InvalidInputError{Field: "daily transactions", Reason: "must be a number"}
	}
	if err := ValidateDailyTxns(v); err != nil {
		return 0, err
	}
	return v, nil
}
