package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingFetch(calls *atomic.Int64, value string) FetchFunc[string] {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestGetOrFetch_HitWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL[string](time.Hour, WithClock(clock.Now))

	var calls atomic.Int64
	ctx := context.Background()

	first, err := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "a"))
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	clock.Advance(59 * time.Minute)

	second, err := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "b"))
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	if first != second {
		t.Errorf("expected identical snapshot pointer within TTL")
	}
	if second.Version != first.Version {
		t.Errorf("Version changed within TTL: %d -> %d", first.Version, second.Version)
	}
	if second.Value != "a" {
		t.Errorf("Value = %q, want a", second.Value)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
}

func TestGetOrFetch_RefreshAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL[string](time.Hour, WithClock(clock.Now))

	var calls atomic.Int64
	ctx := context.Background()

	first, _ := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "a"))
	clock.Advance(time.Hour)

	second, err := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "b"))
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	third, _ := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "c"))

	if calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2", calls.Load())
	}
	if second == first || second.Version <= first.Version {
		t.Errorf("expected a new snapshot after expiry")
	}
	if third != second {
		t.Errorf("expected refreshed snapshot to be cached")
	}
	if second.Value != "b" {
		t.Errorf("Value = %q, want b", second.Value)
	}
	if !second.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", second.ExpiresAt)
	}
}

func TestGetOrFetch_KeysAreIndependent(t *testing.T) {
	c := NewTTL[string](time.Hour)
	var calls atomic.Int64
	ctx := context.Background()

	a, _ := c.GetOrFetch(ctx, "stats", countingFetch(&calls, "a"))
	b, _ := c.GetOrFetch(ctx, "gas", countingFetch(&calls, "b"))

	if a.Value != "a" || b.Value != "b" {
		t.Errorf("values mixed between keys: %q %q", a.Value, b.Value)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2", calls.Load())
	}
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	c := NewTTL[string](time.Hour)
	ctx := context.Background()
	boom := errors.New("upstream down")

	_, err := c.GetOrFetch(ctx, "q1", func(ctx context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	if _, ok := c.Get("q1"); ok {
		t.Fatal("failed fetch should not populate the cache")
	}

	var calls atomic.Int64
	snap, err := c.GetOrFetch(ctx, "q1", countingFetch(&calls, "ok"))
	if err != nil || snap.Value != "ok" {
		t.Errorf("retry after error = %v, %v", snap, err)
	}
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	c := NewTTL[int](time.Hour)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})

	fetch := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const callers = 20
	results := make([]*Snapshot[int], callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.GetOrFetch(ctx, "q", fetch)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrFetch(ctx, "q", fetch)
		}(i)
	}

	// Give the followers a moment to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
	for i, r := range results {
		if r == nil || r != results[0] {
			t.Fatalf("result[%d] differs from leader's snapshot", i)
		}
	}
}

func TestGetOrFetch_Observer(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	got := map[Outcome]int{}

	c := NewTTL[string](time.Minute, WithClock(clock.Now), WithObserver(func(key string, o Outcome) {
		mu.Lock()
		got[o]++
		mu.Unlock()
	}))

	var calls atomic.Int64
	ctx := context.Background()
	c.GetOrFetch(ctx, "k", countingFetch(&calls, "v"))
	c.GetOrFetch(ctx, "k", countingFetch(&calls, "v"))
	c.GetOrFetch(ctx, "x", func(ctx context.Context) (string, error) { return "", errors.New("nope") })

	if got[OutcomeMiss] != 1 || got[OutcomeHit] != 1 || got[OutcomeError] != 1 {
		t.Errorf("observer outcomes = %v", got)
	}
}
