// Package provider supplies transaction statistics and the median L1 gas
// price, caching each dataset for a fixed TTL.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gateway-fm/opcalc/internal/cache"
	"github.com/gateway-fm/opcalc/internal/dune"
	"github.com/gateway-fm/opcalc/internal/metrics"
	"github.com/gateway-fm/opcalc/pkg/types"
)

// Defaults
const (
	DefaultCacheTTL     = time.Hour
	DefaultFetchTimeout = 30 * time.Second
	DefaultStatsQueryID = 3036014
)

// Gas price sources reported by GasPriceSource.
const (
	SourceDune  = "dune"
	SourceL1RPC = "l1-rpc"
)

// QueryRef identifies one saved upstream query.
type QueryRef struct {
	Name string
	ID   int64
}

// Queries names the two datasets the calculator needs.
type Queries struct {
	Stats    QueryRef
	GasPrice QueryRef
}

// DefaultQueries returns the production stats query and the given gas price query.
func DefaultQueries(gasPriceQueryID int64) Queries {
	return Queries{
		Stats:    QueryRef{Name: "op_txn_stats", ID: DefaultStatsQueryID},
		GasPrice: QueryRef{Name: "median_gas_price", ID: gasPriceQueryID},
	}
}

// QueryRunner executes a saved query and returns its rows.
type QueryRunner interface {
	RefreshQuery(ctx context.Context, queryID int64) (*dune.ResultSet, error)
}

// GasPriceOracle is an alternative source for the median gas price.
type GasPriceOracle interface {
	MedianGasPriceGwei(ctx context.Context) (float64, error)
}

// Config holds provider settings.
type Config struct {
	Queries      Queries
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// Provider fetches and caches the upstream datasets. It is safe for
// concurrent use; each dataset is fetched at most once per TTL window.
type Provider struct {
	runner       QueryRunner
	oracle       GasPriceOracle
	queries      Queries
	fetchTimeout time.Duration
	metrics      *metrics.PrometheusMetrics
	logger       *slog.Logger

	stats *cache.TTL[[]types.TxTypeStats]
	gas   *cache.TTL[float64]
}

// Option configures a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	oracle  GasPriceOracle
	metrics *metrics.PrometheusMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// WithGasOracle reads the gas price from oracle instead of the gas price query.
func WithGasOracle(oracle GasPriceOracle) Option {
	return func(o *providerOptions) { o.oracle = oracle }
}

// WithMetrics records fetch and cache metrics.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(o *providerOptions) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *providerOptions) { o.logger = l }
}

// WithClock overrides the cache clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *providerOptions) { o.now = now }
}

// New creates a Provider.
func New(runner QueryRunner, cfg Config, opts ...Option) *Provider {
	o := providerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	p := &Provider{
		runner:       runner,
		oracle:       o.oracle,
		queries:      cfg.Queries,
		fetchTimeout: cfg.FetchTimeout,
		metrics:      o.metrics,
		logger:       o.logger,
	}

	cacheOpts := []cache.Option{
		cache.WithClock(o.now),
		cache.WithObserver(p.observeCache),
	}
	p.stats = cache.NewTTL[[]types.TxTypeStats](cfg.CacheTTL, cacheOpts...)
	p.gas = cache.NewTTL[float64](cfg.CacheTTL, cacheOpts...)
	return p
}

// GasPriceSource reports where the gas price comes from.
func (p *Provider) GasPriceSource() string {
	if p.oracle != nil {
		return SourceL1RPC
	}
	return SourceDune
}

// FetchTransactionStats returns the per-category statistics.
func (p *Provider) FetchTransactionStats(ctx context.Context) ([]types.TxTypeStats, error) {
	snap, err := p.TransactionStats(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Value, nil
}

// FetchMedianGasPrice returns the median L1 gas price in gwei.
func (p *Provider) FetchMedianGasPrice(ctx context.Context) (float64, error) {
	snap, err := p.MedianGasPrice(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Value, nil
}

// TransactionStats returns the cached stats snapshot, refreshing it if expired.
// Callers must not modify the returned slice.
func (p *Provider) TransactionStats(ctx context.Context) (*cache.Snapshot[[]types.TxTypeStats], error) {
	q := p.queries.Stats
	return p.stats.GetOrFetch(ctx, queryKey(q), func(ctx context.Context) ([]types.TxTypeStats, error) {
		rs, err := p.runQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		return parseStats(q, rs)
	})
}

// MedianGasPrice returns the cached gas price snapshot, refreshing it if expired.
func (p *Provider) MedianGasPrice(ctx context.Context) (*cache.Snapshot[float64], error) {
	if p.oracle != nil {
		return p.gas.GetOrFetch(ctx, SourceL1RPC, p.oracleGasPrice)
	}

	q := p.queries.GasPrice
	return p.gas.GetOrFetch(ctx, queryKey(q), func(ctx context.Context) (float64, error) {
		rs, err := p.runQuery(ctx, q)
		if err != nil {
			return 0, err
		}
		price, err := parseGasPrice(q, rs)
		if err != nil {
			return 0, err
		}
		p.setGasPrice(price)
		return price, nil
	})
}

func (p *Provider) oracleGasPrice(ctx context.Context) (float64, error) {
	ctx, cancel := p.detach(ctx)
	defer cancel()

	start := time.Now()
	price, err := p.oracle.MedianGasPriceGwei(ctx)
	p.recordUpstream(SourceL1RPC, err == nil, time.Since(start))
	if err != nil {
		p.logger.Error("L1 gas price fetch failed", slog.String("error", err.Error()))
		return 0, &DataFetchError{Query: "l1 gas price", Reason: classify(err), Err: err}
	}
	p.setGasPrice(price)
	return price, nil
}

// runQuery executes one upstream query under the fetch timeout. The fetch is
// shared by every caller waiting on the cache, so it is detached from the
// triggering caller's cancellation.
func (p *Provider) runQuery(ctx context.Context, q QueryRef) (*dune.ResultSet, error) {
	if q.ID <= 0 {
		return nil, &DataFetchError{Query: q.Name, Reason: "query ID not configured"}
	}

	ctx, cancel := p.detach(ctx)
	defer cancel()

	start := time.Now()
	rs, err := p.runner.RefreshQuery(ctx, q.ID)
	elapsed := time.Since(start)
	p.recordUpstream(q.Name, err == nil, elapsed)

	if err != nil {
		p.logger.Error("upstream query failed",
			slog.String("query", q.Name),
			slog.Int64("query_id", q.ID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, &DataFetchError{Query: q.Name, QueryID: q.ID, Reason: classify(err), Err: err}
	}

	p.logger.Info("upstream query refreshed",
		slog.String("query", q.Name),
		slog.Int64("query_id", q.ID),
		slog.Int("rows", len(rs.Rows)),
		slog.Duration("elapsed", elapsed),
	)
	return rs, nil
}

func (p *Provider) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
}

func (p *Provider) observeCache(key string, outcome cache.Outcome) {
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(key, string(outcome))
	}
}

func (p *Provider) recordUpstream(query string, ok bool, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordUpstream(query, ok, d.Seconds())
	}
}

func (p *Provider) setGasPrice(gwei float64) {
	if p.metrics != nil {
		p.metrics.SetGasPrice(gwei)
	}
}

func queryKey(q QueryRef) string {
	return "query:" + strconv.FormatInt(q.ID, 10)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &netErr) || errors.As(err, &opErr)
}

// malformed builds the error for unusable upstream rows.
func malformed(q QueryRef, format string, args ...any) error {
	return &DataFetchError{Query: q.Name, QueryID: q.ID, Reason: "malformed response: " + fmt.Sprintf(format, args...)}
}
