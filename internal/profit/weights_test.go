package profit

import (
	"strings"
	"testing"

	"github.com/gateway-fm/opcalc/pkg/types"
)

func TestDefaultWeightsValid(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weights
		wantErr string
	}{
		{"valid pair", Weights{"a": 0.4, "b": 0.6}, ""},
		{"empty", Weights{}, "no categories"},
		{"sum too low", Weights{"a": 0.4, "b": 0.5}, "sum to"},
		{"sum too high", Weights{"a": 0.6, "b": 0.6}, "sum to"},
		{"negative", Weights{"a": 1.5, "b": -0.5}, "invalid weight"},
		{"empty name", Weights{"": 1}, "empty category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights("eth_transfer=0.31, erc20_transfer=0.19,uniswap_trade=0.49,hop_bridge=0.01")
	if err != nil {
		t.Fatalf("ParseWeights: %v", err)
	}
	if len(w) != 4 {
		t.Fatalf("expected 4 weights, got %d", len(w))
	}
	if w[types.CategoryERC20Transfer] != 0.19 {
		t.Errorf("erc20_transfer = %v, want 0.19", w[types.CategoryERC20Transfer])
	}
	if err := w.Validate(); err != nil {
		t.Errorf("parsed weights invalid: %v", err)
	}
}

func TestParseWeights_Errors(t *testing.T) {
	tests := []struct {
		in      string
		wantErr string
	}{
		{"eth_transfer", "expected category=weight"},
		{"eth_transfer=abc", "not a number"},
		{"a=0.5,a=0.5", "duplicate category"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseWeights(tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseWeights(%q) error = %v, want containing %q", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestWeightsStringRoundTrip(t *testing.T) {
	w := DefaultWeights()
	parsed, err := ParseWeights(w.String())
	if err != nil {
		t.Fatalf("ParseWeights(String()): %v", err)
	}
	for c, v := range w {
		if parsed[c] != v {
			t.Errorf("%s = %v, want %v", c, parsed[c], v)
		}
	}
	if got := w.String(); !strings.HasPrefix(got, "erc20_transfer=0.19,") {
		t.Errorf("String() = %q, want sorted categories", got)
	}
}
