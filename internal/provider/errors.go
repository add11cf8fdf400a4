package provider

import (
	"errors"
	"fmt"

	"github.com/gateway-fm/opcalc/internal/dune"
)

// DataFetchError reports that a dataset could not be obtained from the
// upstream service: unreachable, rejected credentials, timed out, or returned
// rows that could not be used.
type DataFetchError struct {
	Query   string
	QueryID int64
	Reason  string
	Err     error
}

func (e *DataFetchError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.Query)
	if e.QueryID > 0 {
		msg += fmt.Sprintf(" (query %d)", e.QueryID)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// classify picks a human-readable reason for an upstream failure.
func classify(err error) string {
	var httpErr *dune.HTTPStatusError
	var execErr *dune.ExecutionError
	switch {
	case errors.As(err, &httpErr) && httpErr.IsAuth():
		return "upstream rejected the API key"
	case errors.As(err, &httpErr):
		return "upstream returned an error"
	case errors.As(err, &execErr):
		return "query execution did not complete"
	case isTimeout(err):
		return "upstream timed out"
	case isNetwork(err):
		return "upstream unreachable"
	default:
		return "upstream request failed"
	}
}
