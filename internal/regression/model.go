// Package regression evaluates the frozen L1 calldata gas model.
//
// The model is a full quadratic polynomial in three inputs: calldata bytes per
// user tx, calldata gas per user tx and the number of L2 transactions per day.
// It was fit offline on historical rollup batch data and is not recomputed
// here. The fit extrapolates poorly outside that historical range and can go
// negative for degenerate inputs; callers own input sanity.
package regression

// Coefficients holds the ten terms of the quadratic model together with
// provenance metadata.
type Coefficients struct {
	Model   string
	Version string
	FitDate string // empty when not recorded

	Intercept float64

	Bytes float64 // calldata bytes per tx
	Gas   float64 // calldata gas per tx
	Txs   float64 // L2 txs per day

	BytesSq    float64
	BytesByGas float64
	BytesByTxs float64
	GasSq      float64
	GasByTxs   float64
	TxsSq      float64
}

// DefaultCoefficients is the production model. Do not edit the values;
// publish a new Version instead.
var DefaultCoefficients = Coefficients{
	Model:   "op-calldata-gas-poly2",
	Version: "1",

	Intercept: 36072092.42860007,

	Bytes: -3716.8613013091917,
	Gas:   91.97592357479029,
	Txs:   1326.8156406251255,

	BytesSq:    12.794672518158018,
	BytesByGas: -2.093033664012317,
	BytesByTxs: -6.322923102546262,
	GasSq:      0.08588471077448556,
	GasByTxs:   1.3786867756176369,
	TxsSq:      -0.00023124255145035022,
}

// ID returns a short identifier such as "op-calldata-gas-poly2@v1".
func (c Coefficients) ID() string {
	return c.Model + "@v" + c.Version
}

// Estimate returns the estimated daily L1 gas for one category's share of
// traffic. The result is not clamped.
//
// Every product is wrapped in an explicit float64 conversion so the compiler
// cannot fuse it into an FMA; the result is then bit-identical across
// architectures.
func (c Coefficients) Estimate(bytesPerTx, gasPerTx, txs float64) float64 {
	result := c.Intercept
	result += float64(c.Bytes * bytesPerTx)
	result += float64(c.Gas * gasPerTx)
	result += float64(c.Txs * txs)
	result += float64(c.BytesSq * float64(bytesPerTx*bytesPerTx))
	result += float64(float64(c.BytesByGas*bytesPerTx) * gasPerTx)
	result += float64(float64(c.BytesByTxs*bytesPerTx) * txs)
	result += float64(c.GasSq * float64(gasPerTx*gasPerTx))
	result += float64(float64(c.GasByTxs*gasPerTx) * txs)
	result += float64(c.TxsSq * float64(txs*txs))
	return result
}

// EstimateDailyL1Gas evaluates DefaultCoefficients.
func EstimateDailyL1Gas(calldataBytesPerTx, calldataGasPerTx, txCountForCategory float64) float64 {
	return DefaultCoefficients.Estimate(calldataBytesPerTx, calldataGasPerTx, txCountForCategory)
}
