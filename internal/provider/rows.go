package provider

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gateway-fm/opcalc/internal/dune"
	"github.com/gateway-fm/opcalc/pkg/types"
)

// Upstream column names.
const (
	colTxType        = "tx_type"
	colL2Revenue     = "med_l2_rev"
	colCalldataBytes = "med_calldata_bytes"
	colL1GasUsed     = "med_l1_gas_used"
	colGasPriceGwei  = "median_gas_price_gwei"
)

func parseStats(q QueryRef, rs *dune.ResultSet) ([]types.TxTypeStats, error) {
	if rs == nil || len(rs.Rows) == 0 {
		return nil, malformed(q, "no rows")
	}

	stats := make([]types.TxTypeStats, 0, len(rs.Rows))
	for i, row := range rs.Rows {
		name, ok := row[colTxType].(string)
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, malformed(q, "row %d: missing %s", i, colTxType)
		}

		s := types.TxTypeStats{TxType: types.TxCategory(name)}
		fields := []struct {
			col string
			dst *float64
		}{
			{colL2Revenue, &s.MedianL2Revenue},
			{colCalldataBytes, &s.MedianCalldataBytes},
			{colL1GasUsed, &s.MedianL1GasUsed},
		}
		for _, f := range fields {
			v, err := number(row, f.col)
			if err != nil {
				return nil, malformed(q, "row %d (%s): %v", i, name, err)
			}
			*f.dst = v
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func parseGasPrice(q QueryRef, rs *dune.ResultSet) (float64, error) {
	if rs == nil || len(rs.Rows) == 0 {
		return 0, malformed(q, "no rows")
	}
	v, err := number(rs.Rows[0], colGasPriceGwei)
	if err != nil {
		return 0, malformed(q, "%v", err)
	}
	if v < 0 {
		return 0, malformed(q, "negative gas price %v", v)
	}
	return v, nil
}

type columnError struct {
	col    string
	reason string
}

func (e *columnError) Error() string {
	return e.col + ": " + e.reason
}

// number reads a finite numeric column. The query service may encode
// numbers as JSON numbers or as decimal strings.
func number(row dune.Row, col string) (float64, error) {
	raw, ok := row[col]
	if !ok || raw == nil {
		return 0, &columnError{col: col, reason: "missing"}
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, &columnError{col: col, reason: "not a number"}
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, &columnError{col: col, reason: "not a number"}
		}
		v = f
	default:
		return 0, &columnError{col: col, reason: "not a number"}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &columnError{col: col, reason: "not finite"}
	}
	return v, nil
}
