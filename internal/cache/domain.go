// internal/cache/domain.go
package cache

import (
	"time"

	"github.com/openbenefits/medscreen/internal/types"
)

// DefaultRuleTTL is the rolling expiry for cached eligibility rules.
const DefaultRuleTTL = time.Hour

// RuleKey identifies one cached active-rule lookup.
type RuleKey struct {
	StateCode string
	ProgramID string
}

// FPLExpiry returns the instant a cached FPL table for year stops being
// valid: midnight UTC, January 1 of the following year. Poverty guidelines
// are republished annually, so entries never outlive their year.
func FPLExpiry(year int) time.Time {
	return time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// FPLCache caches the full FPL table per year, expiry pinned to Jan 1 of
// the following year.
type FPLCache struct {
	c *Cache[int, []types.FederalPovertyLevel]
}

// NewFPLCache builds an FPL cache on the given clock (nil = wall clock).
func NewFPLCache(now func() time.Time) *FPLCache {
	if now == nil {
		now = time.Now
	}
	return &FPLCache{c: NewWithClock[int, []types.FederalPovertyLevel](now)}
}

func (f *FPLCache) Get(year int) ([]types.FederalPovertyLevel, bool) {
	return f.c.Get(year)
}

func (f *FPLCache) Set(year int, rows []types.FederalPovertyLevel) {
	f.c.SetUntil(year, rows, FPLExpiry(year))
}

func (f *FPLCache) Invalidate(year int) { f.c.Invalidate(year) }
func (f *FPLCache) InvalidateAll()      { f.c.InvalidateAll() }
func (f *FPLCache) Stats() Stats        { return f.c.Stats() }

// RuleCache caches per-state rule sets keyed by (state, program) with a
// rolling TTL from write time.
type RuleCache struct {
	c   *Cache[RuleKey, []types.EligibilityRule]
	ttl time.Duration
}

// NewRuleCache builds a rule cache. ttl <= 0 selects DefaultRuleTTL.
func NewRuleCache(now func() time.Time, ttl time.Duration) *RuleCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultRuleTTL
	}
	return &RuleCache{c: NewWithClock[RuleKey, []types.EligibilityRule](now), ttl: ttl}
}

func (r *RuleCache) Get(key RuleKey) ([]types.EligibilityRule, bool) {
	return r.c.Get(key)
}

func (r *RuleCache) Set(key RuleKey, rules []types.EligibilityRule) {
	r.c.Set(key, rules, r.ttl)
}

func (r *RuleCache) Invalidate(key RuleKey) { r.c.Invalidate(key) }
func (r *RuleCache) InvalidateAll()         { r.c.InvalidateAll() }
func (r *RuleCache) Stats() Stats           { return r.c.Stats() }
