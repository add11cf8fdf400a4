// Package cache provides a TTL cache with single-flight refresh.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Outcome describes how a lookup was served.
type Outcome string

const (
	OutcomeHit    Outcome = "hit"    // fresh entry returned
	OutcomeMiss   Outcome = "miss"   // this caller ran the fetch
	OutcomeShared Outcome = "shared" // joined another caller's in-flight fetch
	OutcomeError  Outcome = "error"
)

// Snapshot is an immutable cached value. The same pointer is returned to every
// caller until the entry expires, so callers can compare snapshots by identity
// or by Version.
type Snapshot[T any] struct {
	Value     T
	Version   uint64
	FetchedAt time.Time
	ExpiresAt time.Time
}

// FetchFunc loads a fresh value for a key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer is notified after every lookup.
type Observer func(key string, outcome Outcome)

// TTL caches one value per key for a fixed duration. At most one fetch per key
// runs at a time; concurrent callers for the same key wait for it and share the
// result. Failed fetches are not cached.
type TTL[T any] struct {
	ttl      time.Duration
	now      func() time.Time
	observer Observer

	mu      sync.RWMutex
	entries map[string]*Snapshot[T]

	group   singleflight.Group
	version atomic.Uint64
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer Observer
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver registers a lookup observer (metrics).
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// NewTTL creates a cache whose entries live for ttl.
func NewTTL[T any](ttl time.Duration, opts ...Option) *TTL[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[T]{
		ttl:      ttl,
		now:      o.now,
		observer: o.observer,
		entries:  make(map[string]*Snapshot[T]),
	}
}

// Get returns the cached snapshot for key if it has not expired.
func (c *TTL[T]) Get(key string) (*Snapshot[T], bool) {
	c.mu.RLock()
	snap, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(snap.ExpiresAt) {
		return nil, false
	}
	return snap, true
}

// GetOrFetch returns the fresh snapshot for key, calling fetch when the entry is
// missing or expired. The fetch receives ctx of the caller that started it.
func (c *TTL[T]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[T]) (*Snapshot[T], error) {
	if snap, ok := c.Get(key); ok {
		c.observe(key, OutcomeHit)
		return snap, nil
	}

	leader := false
	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have completed between Get and Do.
		if snap, ok := c.Get(key); ok {
			return snap, nil
		}
		leader = true

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		now := c.now()
		snap := &Snapshot[T]{
			Value:     value,
			Version:   c.version.Add(1),
			FetchedAt: now,
			ExpiresAt: now.Add(c.ttl),
		}

		c.mu.Lock()
		c.entries[key] = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		c.observe(key, OutcomeError)
		return nil, err
	}

	switch {
	case leader:
		c.observe(key, OutcomeMiss)
	case shared:
		c.observe(key, OutcomeShared)
	default:
		c.observe(key, OutcomeHit)
	}
	return v.(*Snapshot[T]), nil
}

func (c *TTL[T]) observe(key string, outcome Outcome) {
	if c.observer != nil {
		c.observer(key, outcome)
	}
}
