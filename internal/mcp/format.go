package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gateway-fm/opcalc/internal/format"
	"github.com/gateway-fm/opcalc/internal/profit"
	"github.com/gateway-fm/opcalc/pkg/types"
)

// kv formats a key-value pair with aligned values (20 char key width).
func kv(key string, value any) string {
	return fmt.Sprintf("%-20s %v", key+":", value)
}

// section returns a markdown section header.
func section(title string) string {
	return "## " + title
}

// joinLines joins non-empty lines with newlines.
func joinLines(lines ...string) string {
	var result []string
	for _, l := range lines {
		if l != "" {
			result = append(result, l)
		}
	}
	return strings.Join(result, "\n")
}

func formatCalculation(resp *types.CalculateResponse) string {
	r := resp.Report
	lines := []string{
		section(fmt.Sprintf("Profitability at %s/day", format.Txns(r.DailyTxns))),
		kv("Daily revenue", format.Ether(r.DailyRevenue)),
		kv("Daily cost", format.Ether(r.DailyCost)),
		kv("Daily profit", format.Ether(r.DailyProfit)),
		kv("Revenue per tx", format.Ether(r.RevenuePerTx)),
		kv("Daily L1 gas", format.Gas(r.DailyL1Gas)),
		kv("L1 gas price", format.Gwei(r.GasPriceGwei)),
		section("Breakdown"),
	}
	for _, c := range r.Categories {
		lines = append(lines, fmt.Sprintf("  %-16s %7s  %12s  rev %12s  cost %12s",
			c.TxType, format.Percent(c.Weight), format.Txns(c.DailyTxns),
			format.Ether(c.DailyRevenue), format.Ether(c.DailyCost)))
	}
	if len(r.Skipped) > 0 {
		skipped := make([]string, len(r.Skipped))
		for i, c := range r.Skipped {
			skipped[i] = string(c)
		}
		lines = append(lines, kv("Skipped", strings.Join(skipped, ", ")))
	}
	lines = append(lines,
		section("Source"),
		kv("Model", resp.ModelVersion),
		kv("Data as of", formatTime(resp.DataAsOf)),
	)
	return joinLines(lines...)
}

func formatStats(resp *types.StatsResponse) string {
	lines := []string{section("Transaction Stats")}
	for _, s := range resp.Stats {
		lines = append(lines, fmt.Sprintf("  %-16s rev %12s  calldata %14s  L1 gas %12s",
			s.TxType, format.Ether(s.MedianL2Revenue), format.Bytes(s.MedianCalldataBytes), format.Gas(s.MedianL1GasUsed)))
	}
	lines = append(lines,
		kv("Fetched", formatTime(resp.StatsFetchedAt)),
		section("L1 Gas Price"),
		kv("Median", format.Gwei(resp.GasPriceGwei)),
		kv("Source", resp.GasPriceSource),
		kv("Fetched", formatTime(resp.GasPriceFetchedAt)),
	)
	return joinLines(lines...)
}

func formatWeights(resp *types.WeightsResponse) string {
	weights := profit.Weights(resp.Weights)
	lines := []string{section("Category Mix")}
	for _, c := range weights.Categories() {
		lines = append(lines, kv(string(c), format.Percent(weights[c])))
	}
	lines = append(lines, kv("Model", resp.ModelVersion))
	return joinLines(lines...)
}

func formatHealth(resp *readyResponse) string {
	state := "READY"
	if !resp.Ready {
		state = "NOT READY"
	}

	lines := []string{section("Calculator Health: " + state)}
	for _, check := range resp.Checks {
		line := fmt.Sprintf("  %-15s %s (%dms)", check.Name, check.Status, check.LatencyMs)
		if check.Error != "" {
			line += " - " + check.Error
		}
		lines = append(lines, line)
	}
	return joinLines(lines...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
