package l1

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
)

type fakeFeeHistory struct {
	hist *ethereum.FeeHistory
	err  error

	gotBlocks      uint64
	gotPercentiles []float64
}

func (f *fakeFeeHistory) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	f.gotBlocks = blockCount
	f.gotPercentiles = rewardPercentiles
	return f.hist, f.err
}

func gwei(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000))
}

func TestMedianGasPriceGwei_Odd(t *testing.T) {
	fake := &fakeFeeHistory{hist: &ethereum.FeeHistory{
		OldestBlock: big.NewInt(100),
		BaseFee:     []*big.Int{gwei(10), gwei(30), gwei(20), gwei(99)},
		Reward:      [][]*big.Int{{gwei(1)}, {gwei(1)}, {gwei(1)}},
	}}

	got, err := NewGasOracle(fake, 3, nil).MedianGasPriceGwei(context.Background())
	if err != nil {
		t.Fatalf("MedianGasPriceGwei: %v", err)
	}
	// per-block prices 11, 31, 21 -> median 21; the trailing next-block base fee is ignored
	if got != 21 {
		t.Errorf("median = %v, want 21", got)
	}
	if fake.gotBlocks != 3 {
		t.Errorf("requested %d blocks, want 3", fake.gotBlocks)
	}
	if len(fake.gotPercentiles) != 1 || fake.gotPercentiles[0] != 50 {
		t.Errorf("percentiles = %v, want [50]", fake.gotPercentiles)
	}
}

func TestMedianGasPriceGwei_Even(t *testing.T) {
	fake := &fakeFeeHistory{hist: &ethereum.FeeHistory{
		BaseFee: []*big.Int{gwei(10), gwei(20), gwei(0)},
		Reward:  [][]*big.Int{{big.NewInt(0)}, {big.NewInt(0)}},
	}}

	got, err := NewGasOracle(fake, 2, nil).MedianGasPriceGwei(context.Background())
	if err != nil {
		t.Fatalf("MedianGasPriceGwei: %v", err)
	}
	if got != 15 {
		t.Errorf("median = %v, want 15", got)
	}
}

func TestMedianGasPriceGwei_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeFeeHistory
	}{
		{"rpc error", &fakeFeeHistory{err: errors.New("connection refused")}},
		{"empty history", &fakeFeeHistory{hist: &ethereum.FeeHistory{}}},
		{"missing base fees", &fakeFeeHistory{hist: &ethereum.FeeHistory{
			Reward: [][]*big.Int{{gwei(1)}, {gwei(1)}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGasOracle(tt.fake, 2, nil).MedianGasPriceGwei(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDial_FeeHistoryOverJSONRPC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_feeHistory" {
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"oldestBlock":   "0x64",
				"baseFeePerGas": []string{"0x4a817c800", "0x4a817c800", "0x4a817c800"}, // 20 gwei
				"gasUsedRatio":  []float64{0.5, 0.5},
				"reward":        [][]string{{"0x3b9aca00"}, {"0x3b9aca00"}}, // 1 gwei
			},
		})
	}))
	defer srv.Close()

	oracle, err := Dial(context.Background(), srv.URL, 2, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	got, err := oracle.MedianGasPriceGwei(context.Background())
	if err != nil {
		t.Fatalf("MedianGasPriceGwei: %v", err)
	}
	if math.Abs(got-21) > 1e-9 {
		t.Errorf("median = %v, want 21", got)
	}
}
