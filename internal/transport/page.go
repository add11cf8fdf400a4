package transport

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gateway-fm/opcalc/internal/format"
	"github.com/gateway-fm/opcalc/internal/profit"
	"github.com/gateway-fm/opcalc/pkg/types"
)

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"ether":   format.Ether,
	"gwei":    format.Gwei,
	"gas":     format.Gas,
	"bytes":   format.Bytes,
	"txns":    format.Txns,
	"percent": format.Percent,
	"utc":     func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
}).Parse(pageHTML))

type weightRow struct {
	Category types.TxCategory
	Weight   float64
}

type pageData struct {
	Txns       string
	InputError string
	FetchError string

	Stats          []types.TxTypeStats
	Weights        []weightRow
	GasPriceGwei   float64
	GasPriceSource string
	HasGasPrice    bool

	Report       *types.ProfitabilityReport
	ModelVersion string
	DataAsOf     time.Time
}

// handlePage renders the calculator. Without ?txns= it shows the current
// stats; with it, the full profitability breakdown.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := pageData{
		Txns:         strconv.FormatFloat(s.defaultTxns, 'f', -1, 64),
		Weights:      s.weightRows(),
		ModelVersion: s.api.ModelVersion(),
	}
	var status int
	if raw, submitted := r.URL.Query()[txnsQueryParam]; submitted && len(raw) > 0 {
		data.Txns = raw[0]
		status = s.fillReport(r, &data)
	} else {
		status = s.fillStats(r, &data)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) fillReport(r *http.Request, data *pageData) int {
	dailyTxns, err := profit.ParseDailyTxns(data.Txns)
	if err == nil {
		var resp *types.CalculateResponse
		resp, err = s.api.Calculate(r.Context(), dailyTxns)
		if err == nil {
			data.Report = &resp.Report
			data.Stats = resp.Stats
			data.GasPriceGwei = resp.Report.GasPriceGwei
			data.HasGasPrice = true
			data.DataAsOf = resp.DataAsOf
			return http.StatusOK
		}
	}

	status := statusFor(err)
	var inputErr *profit.InvalidInputError
	if errors.As(err, &inputErr) {
		data.InputError = "Enter a daily transaction count greater than zero."
		if inputErr.Reason == profit.ReasonOutOfRange {
			data.InputError = "That daily transaction count is too large for the model. Enter a smaller number."
		}
		// Show the stats even when the input is rejected.
		s.fillStats(r, data)
		return status
	}

	s.logger.Error("calculation failed", slog.String("error", err.Error()))
	data.FetchError = err.Error()
	return status
}

func (s *Server) fillStats(r *http.Request, data *pageData) int {
	stats, err := s.api.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to load stats", slog.String("error", err.Error()))
		data.FetchError = err.Error()
		return statusFor(err)
	}
	data.Stats = stats.Stats
	data.GasPriceGwei = stats.GasPriceGwei
	data.GasPriceSource = stats.GasPriceSource
	data.HasGasPrice = true
	data.DataAsOf = stats.StatsFetchedAt
	return http.StatusOK
}

func (s *Server) weightRows() []weightRow {
	weights := profit.Weights(s.api.Weights())
	rows := make([]weightRow, 0, len(weights))
	for _, c := range weights.Categories() {
		rows = append(rows, weightRow{Category: c, Weight: weights[c]})
	}
	return rows
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>OP Calculator</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #222; }
h1 { color: #ff0420; margin-bottom: 0; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
th, td { border-bottom: 1px solid #ddd; padding: 0.3rem 0.8rem; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.error { background: #fde8e8; border: 1px solid #e02424; padding: 0.8rem; margin: 1rem 0; }
.hint { color: #e02424; margin-left: 0.5rem; }
.figure { font-size: 1.4rem; font-weight: 600; }
.negative { color: #e02424; }
.meta { color: #777; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>OP Calculator</h1>
<p>Estimate the profitability of a new OP stack rollup.</p>

<form method="get" action="/">
<label for="txns">Daily transactions</label>
<input id="txns" name="txns" type="number" min="1" step="any" value="{{.Txns}}" required>
<button type="submit">Calculate</button>
{{with .InputError}}<span class="hint">{{.}}</span>{{end}}
</form>

{{with .FetchError}}<div class="error"><strong>Could not load data.</strong> {{.}}</div>{{end}}

{{if .Stats}}
<h2>Transaction stats</h2>
<table>
<tr><th>Category</th><th>Median L2 revenue</th><th>Median calldata</th><th>Median L1 gas</th></tr>
{{range .Stats}}<tr><td>{{.TxType}}</td><td>{{ether .MedianL2Revenue}}</td><td>{{bytes .MedianCalldataBytes}}</td><td>{{gas .MedianL1GasUsed}}</td></tr>
{{end}}</table>
{{if .HasGasPrice}}<p>Median L1 gas price: {{gwei .GasPriceGwei}}{{with .GasPriceSource}} ({{.}}){{end}}</p>{{end}}
{{end}}

<h2>Assumed category mix</h2>
<table>
<tr><th>Category</th><th>Share</th></tr>
{{range .Weights}}<tr><td>{{.Category}}</td><td>{{percent .Weight}}</td></tr>
{{end}}</table>

{{with .Report}}
<h2>Predicted daily revenue</h2>
<p class="figure">{{ether .DailyRevenue}}</p>
<h2>Predicted daily cost</h2>
<p class="figure">{{ether .DailyCost}}</p>
<h2>Predicted daily profit</h2>
<p class="figure{{if lt .DailyProfit 0.0}} negative{{end}}">{{ether .DailyProfit}}</p>

<h2>Step by step</h2>
<table>
<tr><th>Category</th><th>Share</th><th>Daily txns</th><th>Revenue</th><th>L1 gas</th><th>Cost</th></tr>
{{range .Categories}}<tr><td>{{.TxType}}</td><td>{{percent .Weight}}</td><td>{{txns .DailyTxns}}</td><td>{{ether .DailyRevenue}}</td><td>{{gas .DailyL1Gas}}</td><td>{{ether .DailyCost}}</td></tr>
{{end}}<tr><td><strong>Total</strong></td><td></td><td>{{txns .DailyTxns}}</td><td>{{ether .DailyRevenue}}</td><td>{{gas .DailyL1Gas}}</td><td>{{ether .DailyCost}}</td></tr>
</table>
{{with .Skipped}}<p class="meta">Skipped categories: {{range $i, $c := .}}{{if $i}}, {{end}}{{$c}}{{end}}</p>{{end}}
{{end}}

<p class="meta">Model {{.ModelVersion}}{{if not .DataAsOf.IsZero}} · data as of {{utc .DataAsOf}}{{end}}</p>
</body>
</html>
`
