// Package geocode resolves free-text place names to coordinates through a
// cached, budgeted, multi-provider lookup chain with background quality
// upgrades.
package geocode

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Result is one provider's answer for a query.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Provider    string  `json:"provider"`
	Matched     bool    `json:"matched"`
}

// Provider is a single geocoding backend. Implementations return
// Matched=false with a nil error for clean "no result" responses; errors are
// reserved for transport, credential, and decode failures.
type Provider interface {
	Name() string
	// Metered reports whether calls count against the per-run budget.
	Metered() bool
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Outcome classifies one attempt in a resolution.
type Outcome string

const (
	OutcomeCacheHit     Outcome = "CACHE_HIT"
	OutcomeMatched      Outcome = "MATCHED"
	OutcomeEmpty        Outcome = "EMPTY"
	OutcomeError        Outcome = "ERROR"
	OutcomeConfig       Outcome = "CONFIG"
	OutcomeLimitReached Outcome = "LIMIT_REACHED"
)

// Attempt records one step of a resolution for diagnostics.
type Attempt struct {
	Query    string  `json:"query"`
	Provider string  `json:"provider"`
	Outcome  Outcome `json:"outcome"`
	Detail   string  `json:"detail,omitempty"`
}

// CacheEntry is the persisted form of a successful resolution.
type CacheEntry struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DisplayName string    `json:"display_name,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Provider    string    `json:"provider"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cache is the persistent key-value store for resolutions. Get returns
// (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Put(ctx context.Context, key string, entry CacheEntry) error
}

// QueryKey normalizes a free-text query into its cache key.
func QueryKey(query string) string {
	return "q:" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// AliasKey builds the cache key for a stable alias representing "the same
// real place queried differently". Empty alias yields no key.
func AliasKey(alias string) string {
	alias = strings.Join(strings.Fields(strings.ToLower(alias)), " ")
	if alias == "" {
		return ""
	}
	return "alias:" + alias
}

// Budget limits metered-provider lookups per refresh run. A negative limit
// means unlimited.
type Budget struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

// NewBudget creates a budget allowing n metered lookups; n < 0 is unlimited.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n, unlimited: n < 0}
}

// Take consumes one lookup, reporting false once the budget is exhausted.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimited {
		return true
	}
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the lookups left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimited {
		return -1
	}
	return b.remaining
}
