package profit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gateway-fm/opcalc/pkg/types"
)

// weightSumTolerance bounds how far a weight set may drift from 1.0.
const weightSumTolerance = 1e-9

// Weights maps a transaction category to its share of total daily volume.
type Weights map[types.TxCategory]float64

// DefaultWeights is the assumed traffic mix of a new OP stack rollup.
func DefaultWeights() Weights {
	return Weights{
		types.CategoryEthTransfer:   0.31,
		types.CategoryERC20Transfer: 0.19,
		types.CategoryUniswapTrade:  0.49,
		types.CategoryHopBridge:     0.01,
	}
}

// Validate rejects empty sets, negative or non-finite weights, and sets that
// do not sum to 1.0.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return &InvalidInputError{Field: "weights", Reason: "no categories configured"}
	}

	var sum float64
	for cat, v := range w {
		if cat == "" {
			return &InvalidInputError{Field: "weights", Reason: "empty category name"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &InvalidInputError{Field: "weights", Reason: fmt.Sprintf("%s has invalid weight %v", cat, v)}
		}
		sum += v
	}

	if math.Abs(sum-1) > weightSumTolerance {
		return &InvalidInputError{Field: "weights", Reason: fmt.Sprintf("weights sum to %v, want 1.0", sum)}
	}
	return nil
}

// Categories returns the configured categories in sorted order.
func (w Weights) Categories() []types.TxCategory {
	cats := make([]types.TxCategory, 0, len(w))
	for c := range w {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// String renders the set in the same form ParseWeights accepts.
func (w Weights) String() string {
	parts := make([]string, 0, len(w))
	for _, c := range w.Categories() {
		parts = append(parts, string(c)+"="+strconv.FormatFloat(w[c], 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ParseWeights parses "eth_transfer=0.31,erc20_transfer=0.19,...".
// The result is not validated.
func ParseWeights(s string) (Weights, error) {
	w := Weights{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, &InvalidInputError{Field: "weights", Reason: fmt.Sprintf("expected category=weight, got %q", part)}
		}
		name = strings.TrimSpace(name)
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &InvalidInputError{Field: "weights", Reason: fmt.Sprintf("weight for %s is not a number: %q", name, value)}
		}
		cat := types.TxCategory(name)
		if _, dup := w[cat]; dup {
			return nil, &InvalidInputError{Field: "weights", Reason: fmt.Sprintf("duplicate category %s", name)}
		}
		w[cat] = v
	}
	return w, nil
}
