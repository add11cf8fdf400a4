// Package dune provides a client for the Dune query execution API with retry
// and polling.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/gateway-fm/opcalc/internal/ratelimit"
)

// DefaultBaseURL is the public Dune API v1 endpoint.
const DefaultBaseURL = "https://api.dune.com/api/v1"

// DefaultRequestsPerMinute paces API calls across all queries.
const DefaultRequestsPerMinute = 40

const apiKeyHeader = "X-Dune-API-Key"

// Execution states reported by the API.
const (
	StatePending          = "QUERY_STATE_PENDING"
	StateExecuting        = "QUERY_STATE_EXECUTING"
	StateCompleted        = "QUERY_STATE_COMPLETED"
	StateCompletedPartial = "QUERY_STATE_COMPLETED_PARTIAL"
	StateFailed           = "QUERY_STATE_FAILED"
	StateCancelled        = "QUERY_STATE_CANCELLED"
	StateExpired          = "QUERY_STATE_EXPIRED"
)

// errExecutionPending signals the poll loop to keep waiting.
var errExecutionPending = errors.New("execution still running")

// Row is one result row keyed by column name.
type Row map[string]any

// ResultSet holds the rows of a finished execution.
type ResultSet struct {
	ExecutionID string   `json:"execution_id"`
	QueryID     int64    `json:"query_id"`
	State       string   `json:"state"`
	Columns     []string `json:"-"`
	Rows        []Row    `json:"-"`
}

// ExecutionStatus is the body of GET /execution/{id}/status.
type ExecutionStatus struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int64  `json:"query_id"`
	State       string `json:"state"`
	Error       *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Terminal reports whether the execution will not change state again.
func (s *ExecutionStatus) Terminal() bool {
	switch s.State {
	case StatePending, StateExecuting:
		return false
	}
	return true
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type resultsResponse struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int64  `json:"query_id"`
	State       string `json:"state"`
	Result      *struct {
		Rows     []Row `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
		} `json:"metadata"`
	} `json:"result"`
}

// ClientConfig holds configuration for the Dune client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration // per HTTP request
	MaxAttempts    uint
	InitialBackoff time.Duration
	PollInterval   time.Duration

	// RequestsPerMinute caps API calls across all queries; 0 = unlimited.
	RequestsPerMinute int
	Logger            *slog.Logger
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		PollInterval:   2 * time.Second,

		RequestsPerMinute: DefaultRequestsPerMinute,
	}
}

// Client talks to the Dune API over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxAttempts  uint
	backoff      time.Duration
	pollInterval time.Duration
	limiter      *ratelimit.Limiter
	logger       *slog.Logger
}

// NewClient creates a new Dune API client.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts:  attempts,
		backoff:      cfg.InitialBackoff,
		pollInterval: poll,
		limiter:      ratelimit.PerMinute(cfg.RequestsPerMinute),
		logger:       logger,
	}
}

// RefreshQuery executes a saved query, waits for it to finish and returns its
// rows. The wait is bounded only by ctx.
func (c *Client) RefreshQuery(ctx context.Context, queryID int64) (*ResultSet, error) {
	execID, err := c.Execute(ctx, queryID)
	if err != nil {
		return nil, err
	}

	status, err := c.WaitForCompletion(ctx, execID)
	if err != nil {
		return nil, err
	}
	if status.State != StateCompleted && status.State != StateCompletedPartial {
		msg := status.State
		if status.Error != nil && status.Error.Message != "" {
			msg += ": " + status.Error.Message
		}
		return nil, &ExecutionError{QueryID: queryID, ExecutionID: execID, State: msg}
	}

	return c.Results(ctx, execID)
}

// Execute starts an execution of queryID and returns its execution ID.
func (c *Client) Execute(ctx context.Context, queryID int64) (string, error) {
	path := fmt.Sprintf("/query/%d/execute", queryID)
	body, err := c.callWithRetry(ctx, http.MethodPost, path, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("execute query %d: %w", queryID, err)
	}

	var resp executeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("execute query %d: failed to unmarshal response: %w", queryID, err)
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("execute query %d: response has no execution_id", queryID)
	}

	c.logger.Debug("Dune execution started",
		slog.Int64("query_id", queryID),
		slog.String("execution_id", resp.ExecutionID),
		slog.String("state", resp.State),
	)
	return resp.ExecutionID, nil
}

// Status fetches the current state of an execution.
func (c *Client) Status(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	body, err := c.callWithRetry(ctx, http.MethodGet, "/execution/"+executionID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("execution %s status: %w", executionID, err)
	}

	var status ExecutionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("execution %s status: failed to unmarshal response: %w", executionID, err)
	}
	return &status, nil
}

// WaitForCompletion polls the execution status until it reaches a terminal
// state or ctx is done.
func (c *Client) WaitForCompletion(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	return retry.DoWithData(
		func() (*ExecutionStatus, error) {
			status, err := c.Status(ctx, executionID)
			if err != nil {
				return nil, err
			}
			if !status.Terminal() {
				return nil, errExecutionPending
			}
			return status, nil
		},
		retry.Context(ctx),
		retry.Attempts(0), // until ctx is done
		retry.Delay(c.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errExecutionPending)
		}),
	)
}

// Results fetches the rows of a finished execution.
func (c *Client) Results(ctx context.Context, executionID string) (*ResultSet, error) {
	body, err := c.callWithRetry(ctx, http.MethodGet, "/execution/"+executionID+"/results", nil)
	if err != nil {
		return nil, fmt.Errorf("execution %s results: %w", executionID, err)
	}

	var resp resultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("execution %s results: failed to unmarshal response: %w", executionID, err)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("execution %s results: response has no result", executionID)
	}

	return &ResultSet{
		ExecutionID: resp.ExecutionID,
		QueryID:     resp.QueryID,
		State:       resp.State,
		Columns:     resp.Result.Metadata.ColumnNames,
		Rows:        resp.Result.Rows,
	}, nil
}

// callWithRetry performs one API call, retrying transient failures
// (429/502/503/504 and network errors) with exponential backoff.
func (c *Client) callWithRetry(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.doRequest(ctx, method, path, payload)
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.backoff),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			if d := getRetryDelay(err); d > 0 {
				return d
			}
			return retry.BackOffDelay(n, err, config)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("Dune API call failed, retrying",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", int(n)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.ParseFloat(ra, 64); err == nil {
				retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
			Body:       apiErrorMessage(errBody),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, nil
}

// apiErrorMessage extracts {"error": "..."} if present.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
