// internal/cache/cache_test.go
package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/openbenefits/medscreen/internal/types"
)

// fakeClock is a settable clock for pinning expiry boundaries.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_GetSet(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewWithClock[string, int](clock.Now)

	if _, ok := c.Get("k"); ok {
		t.Error("Get on empty cache = hit, want miss")
	}

	c.Set("k", 42, time.Hour)
	v, ok := c.Get("k")
	if !ok || v != 42 {
		t.Errorf("Get = (%v, %v), want (42, true)", v, ok)
	}
}

// An entry expiring at T is a hit strictly before T and a miss at T.
func TestCache_ExpiryBoundary(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	c := NewWithClock[string, int](clock.Now)

	c.Set("k", 1, time.Hour)

	clock.Advance(time.Hour - time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("one second before expiry = miss, want hit")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("at expiry instant = hit, want miss")
	}

	// Lazy removal: the expired entry must be gone.
	stats := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries = %d after expiry, want 0", stats.Entries)
	}
}

func TestCache_StatsCounters(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := NewWithClock[string, int](clock.Now)

	c.Get("absent")
	c.Set("k", 1, time.Hour)
	c.Get("k")
	c.Get("k")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Stats = %+v, want hits=2 misses=1 entries=1", stats)
	}
}

// InvalidateAll clears entries but keeps lifetime counters.
func TestCache_InvalidateAllPreservesCounters(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := NewWithClock[string, int](clock.Now)

	c.Set("a", 1, time.Hour)
	c.Get("a")
	c.Get("absent")

	c.InvalidateAll()

	stats := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("counters = %+v, want hits=1 misses=1 preserved", stats)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := j % 10
				c.Set(key, worker, time.Minute)
				c.Get(key)
				if j%25 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	// Only checking for races and panics; values are worker-dependent.
	c.Stats()
}

func TestFPLExpiry(t *testing.T) {
	want := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := FPLExpiry(2025); !got.Equal(want) {
		t.Errorf("FPLExpiry(2025) = %v, want %v", got, want)
	}
}

// FPL entries are pinned to the publication year: a hit one second before
// Jan 1, a miss from midnight on.
func TestFPLCache_YearBoundary(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC))
	fc := NewFPLCache(clock.Now)

	rows := []types.FederalPovertyLevel{
		{Year: 2025, HouseholdSize: 1, AnnualCents: 1565000},
	}
	fc.Set(2025, rows)

	got, ok := fc.Get(2025)
	if !ok || len(got) != 1 {
		t.Fatalf("Get = (%v, %v), want cached rows", got, ok)
	}

	clock.mu.Lock()
	clock.now = time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	clock.mu.Unlock()
	if _, ok := fc.Get(2025); !ok {
		t.Error("one second before year boundary = miss, want hit")
	}

	clock.Advance(time.Second)
	if _, ok := fc.Get(2025); ok {
		t.Error("at year boundary = hit, want miss")
	}
}

func TestRuleCache_RollingTTL(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	rc := NewRuleCache(clock.Now, 30*time.Minute)

	key := RuleKey{StateCode: "NY", ProgramID: "ny-magi-adult"}
	rc.Set(key, []types.EligibilityRule{{RuleID: "r1", Version: 1}})

	clock.Advance(29 * time.Minute)
	if _, ok := rc.Get(key); !ok {
		t.Error("inside TTL = miss, want hit")
	}

	// A refresh restarts the window.
	rc.Set(key, []types.EligibilityRule{{RuleID: "r1", Version: 1}})
	clock.Advance(29 * time.Minute)
	if _, ok := rc.Get(key); !ok {
		t.Error("refreshed entry expired early")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := rc.Get(key); ok {
		t.Error("past TTL = hit, want miss")
	}
}

func TestRuleCache_DefaultTTL(t *testing.T) {
	rc := NewRuleCache(nil, 0)
	if rc.ttl != DefaultRuleTTL {
		t.Errorf("ttl = %v, want DefaultRuleTTL", rc.ttl)
	}
}
