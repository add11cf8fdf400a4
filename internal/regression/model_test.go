package regression

import (
	"math"
	"testing"
)

func TestEstimateDailyL1Gas_ZeroInputsReturnIntercept(t *testing.T) {
	got := EstimateDailyL1Gas(0, 0, 0)
	if got != DefaultCoefficients.Intercept {
		t.Errorf("EstimateDailyL1Gas(0, 0, 0) = %v, want intercept %v", got, DefaultCoefficients.Intercept)
	}
}

func TestEstimateDailyL1Gas_Deterministic(t *testing.T) {
	inputs := [][3]float64{
		{100, 21000, 3100},
		{150, 45000, 1900},
		{300, 180000, 4900},
		{200, 90000, 100},
		{0.5, 1e-3, 7.25},
	}

	for _, in := range inputs {
		first := EstimateDailyL1Gas(in[0], in[1], in[2])
		for i := 0; i < 100; i++ {
			again := EstimateDailyL1Gas(in[0], in[1], in[2])
			if math.Float64bits(again) != math.Float64bits(first) {
				t.Fatalf("EstimateDailyL1Gas(%v) not bit-identical: %v vs %v", in, first, again)
			}
		}
	}
}

func TestEstimateDailyL1Gas_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		bytes float64
		gas   float64
		txs   float64
		want  float64
	}{
		{"eth transfer share", 100, 21000, 3100, 163142943.35178086},
		{"erc20 transfer share", 150, 45000, 1900, 318325723.1748372},
		{"uniswap trade share", 300, 180000, 4900, 3935507915.6843863},
		{"hop bridge share", 200, 90000, 100, 714524293.2820519},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateDailyL1Gas(tt.bytes, tt.gas, tt.txs)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("EstimateDailyL1Gas(%v, %v, %v) = %v, want %v", tt.bytes, tt.gas, tt.txs, got, tt.want)
			}
		})
	}
}

func TestEstimate_SingleTermIsolation(t *testing.T) {
	// With every coefficient but one zeroed, the polynomial reduces to that term.
	tests := []struct {
		name  string
		coef  Coefficients
		bytes float64
		gas   float64
		txs   float64
		want  float64
	}{
		{"bytes linear", Coefficients{Bytes: 2}, 3, 5, 7, 6},
		{"gas linear", Coefficients{Gas: 2}, 3, 5, 7, 10},
		{"txs linear", Coefficients{Txs: 2}, 3, 5, 7, 14},
		{"bytes squared", Coefficients{BytesSq: 2}, 3, 5, 7, 18},
		{"bytes x gas", Coefficients{BytesByGas: 2}, 3, 5, 7, 30},
		{"bytes x txs", Coefficients{BytesByTxs: 2}, 3, 5, 7, 42},
		{"gas squared", Coefficients{GasSq: 2}, 3, 5, 7, 50},
		{"gas x txs", Coefficients{GasByTxs: 2}, 3, 5, 7, 70},
		{"txs squared", Coefficients{TxsSq: 2}, 3, 5, 7, 98},
		{"intercept only", Coefficients{Intercept: 11}, 3, 5, 7, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coef.Estimate(tt.bytes, tt.gas, tt.txs); got != tt.want {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimate_CanGoNegative(t *testing.T) {
	// Far outside the fitted range the negative txs^2 term dominates.
	got := EstimateDailyL1Gas(0, 0, 1e9)
	if got >= 0 {
		t.Errorf("expected negative estimate for extreme volume, got %v", got)
	}
}

func TestCoefficientsID(t *testing.T) {
	if got := DefaultCoefficients.ID(); got != "op-calldata-gas-poly2@v1" {
		t.Errorf("ID() = %q", got)
	}
}
