// Package format renders report figures for people: fixed precision,
// thousands separators and a unit suffix.
package format

import (
	"math"
	"strconv"
	"strings"
)

// Decimal places per unit.
const (
	EtherDecimals   = 3
	GweiDecimals    = 2
	PercentDecimals = 2
	BytesDecimals   = 2
	TxnsDecimals    = 0
	GasDecimals     = 0
)

// Number formats v with the given number of fraction digits and comma
// thousands separators. NaN and infinities are rendered as "n/a".
func Number(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	if decimals < 0 {
		decimals = 0
	}

	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	writeGrouped(&b, intPart)
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// writeGrouped writes digits with a comma every three places.
func writeGrouped(b *strings.Builder, digits string) {
	start := len(digits) % 3
	if start > 0 {
		b.WriteString(digits[:start])
	}
	for i := start; i < len(digits); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
}

// Ether formats an amount in ETH, e.g. "32.400 ETH".
func Ether(v float64) string {
	return Number(v, EtherDecimals) + " ETH"
}

// Gwei formats a gas price, e.g. "20.00 gwei".
func Gwei(v float64) string {
	return Number(v, GweiDecimals) + " gwei"
}

// Gas formats an amount of gas units, e.g. "5,131,500,875 gas".
func Gas(v float64) string {
	return Number(v, GasDecimals) + " gas"
}

// Bytes formats a byte count, e.g. "112.00 bytes".
func Bytes(v float64) string {
	return Number(v, BytesDecimals) + " bytes"
}

// Txns formats a transaction count, e.g. "10,000 txns".
func Txns(v float64) string {
	return Number(v, TxnsDecimals) + " txns"
}

// Percent formats a fraction as a percentage, e.g. 0.31 -> "31.00%".
func Percent(fraction float64) string {
	return Number(fraction*100, PercentDecimals) + "%"
}
