// Package ratelimit spaces outgoing requests so an upstream API quota is
// never exceeded.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter issues permits no closer together than a fixed interval.
//
// The bucket holds a single token, so idle time does not accumulate credit:
// after a quiet period the next permit is immediate and the following ones
// are spaced again. A nil *Limiter never blocks.
type Limiter struct {
	lim      *rate.Limiter
	interval time.Duration
}

// PerMinute creates a Limiter allowing n requests per minute. n <= 0 returns
// nil, meaning unlimited.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	interval := time.Minute / time.Duration(n)
	return &Limiter{
		lim:      rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until a permit is available or the context is cancelled.
// A cancelled wait still consumes its slot.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	wait := l.lim.Reserve().Delay()
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the minimum spacing between permits.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
