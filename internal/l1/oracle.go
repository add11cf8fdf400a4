// Package l1 reads gas prices from an L1 execution client.
package l1

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// DefaultBlockWindow is the number of recent blocks sampled.
const DefaultBlockWindow = 20

// tipPercentile is the reward percentile requested per block.
const tipPercentile = 50

// FeeHistoryReader is the subset of ethclient.Client used by the oracle.
type FeeHistoryReader interface {
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// GasOracle estimates the median L1 gas price from eth_feeHistory: for each of
// the last N blocks it takes baseFee + median tip, then returns the median of
// those per-block prices.
type GasOracle struct {
	reader FeeHistoryReader
	blocks uint64
	logger *slog.Logger
}

// Dial connects to an L1 JSON-RPC endpoint.
func Dial(ctx context.Context, url string, blocks uint64, logger *slog.Logger) (*GasOracle, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L1 RPC: %w", err)
	}
	return NewGasOracle(client, blocks, logger), nil
}

// NewGasOracle wraps an existing fee history reader.
func NewGasOracle(reader FeeHistoryReader, blocks uint64, logger *slog.Logger) *GasOracle {
	if blocks == 0 {
		blocks = DefaultBlockWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GasOracle{reader: reader, blocks: blocks, logger: logger}
}

// MedianGasPriceGwei returns the median effective gas price over the window.
func (o *GasOracle) MedianGasPriceGwei(ctx context.Context) (float64, error) {
	hist, err := o.reader.FeeHistory(ctx, o.blocks, nil, []float64{tipPercentile})
	if err != nil {
		return 0, fmt.Errorf("eth_feeHistory: %w", err)
	}

	// BaseFee carries one extra entry for the next block; Reward has one per block.
	n := len(hist.Reward)
	if n == 0 || len(hist.BaseFee) < n {
		return 0, fmt.Errorf("eth_feeHistory: empty or inconsistent history (%d rewards, %d base fees)", n, len(hist.BaseFee))
	}

	prices := make([]*big.Int, 0, n)
	for i := 0; i < n; i++ {
		price := new(big.Int)
		if hist.BaseFee[i] != nil {
			price.Set(hist.BaseFee[i])
		}
		if len(hist.Reward[i]) > 0 && hist.Reward[i][0] != nil {
			price.Add(price, hist.Reward[i][0])
		}
		prices = append(prices, price)
	}

	median := medianWei(prices)
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(median), big.NewFloat(params.GWei)).Float64()

	o.logger.Debug("L1 gas price sampled",
		slog.Int("blocks", n),
		slog.String("oldest_block", hist.OldestBlock.String()),
		slog.Float64("median_gwei", gwei),
	)
	return gwei, nil
}

// medianWei returns the median, averaging the two middle values for even n.
func medianWei(values []*big.Int) *big.Int {
	sorted := make([]*big.Int, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Int).Set(sorted[mid])
	}
	sum := new(big.Int).Add(sorted[mid-1], sorted[mid])
	return sum.Div(sum, big.NewInt(2))
}
