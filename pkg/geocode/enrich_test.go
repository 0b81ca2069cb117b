package geocode

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedProvider blocks each Geocode call until released, so tests can
// control when the worker makes progress.
type gatedProvider struct {
	gate chan struct{}

	mu    sync.Mutex
	calls []string
}

func (p *gatedProvider) Name() string  { return "google" }
func (p *gatedProvider) Metered() bool { return true }

func (p *gatedProvider) Geocode(_ context.Context, query string) (*Result, error) {
	<-p.gate
	p.mu.Lock()
	p.calls = append(p.calls, query)
	p.mu.Unlock()
	return matchedResult("google", -33.0, 151.0), nil
}

func TestEnricherProcessesInOrder(t *testing.T) {
	cache := newMemCache()
	premium := &gatedProvider{gate: make(chan struct{}, 3)}
	e := NewEnricher(cache, premium, NewBudget(-1), 8)

	e.Enqueue(UpgradeTask{QueryKey: "q:a", Query: "a"})
	e.Enqueue(UpgradeTask{QueryKey: "q:b", Query: "b"})
	e.Enqueue(UpgradeTask{QueryKey: "q:c", Query: "c"})
	premium.gate <- struct{}{}
	premium.gate <- struct{}{}
	premium.gate <- struct{}{}
	e.Close()

	assert.Equal(t, []string{"a", "b", "c"}, premium.calls)
}

func TestEnricherEnqueueIdempotent(t *testing.T) {
	cache := newMemCache()
	premium := &gatedProvider{gate: make(chan struct{}, 2)}
	e := NewEnricher(cache, premium, NewBudget(-1), 8)

	// The worker is blocked on the gate, so both enqueues race nothing.
	e.Enqueue(UpgradeTask{QueryKey: "q:a", Query: "a"})
	e.Enqueue(UpgradeTask{QueryKey: "q:a", Query: "a duplicate"})
	premium.gate <- struct{}{}
	premium.gate <- struct{}{}
	e.Close()

	assert.Equal(t, []string{"a"}, premium.calls)
}

func TestEnricherSkipsPremiumSourcedEntries(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(context.Background(), "q:a", CacheEntry{Provider: "google"}))

	premium := &fakeProvider{name: "google", results: map[string]*Result{
		"a": matchedResult("google", -33.0, 151.0),
	}}
	e := NewEnricher(cache, premium, NewBudget(-1), 8)
	e.Enqueue(UpgradeTask{QueryKey: "q:a", Query: "a"})
	e.Close()

	assert.Equal(t, 0, premium.callCount())
}

func TestEnricherDropsWhenBudgetExhausted(t *testing.T) {
	cache := newMemCache()
	premium := &fakeProvider{name: "google", results: map[string]*Result{
		"a": matchedResult("google", -33.0, 151.0),
	}}
	e := NewEnricher(cache, premium, NewBudget(0), 8)
	e.Enqueue(UpgradeTask{QueryKey: "q:a", Query: "a"})
	e.Close()

	assert.Equal(t, 0, premium.callCount())
	entry, err := cache.Get(context.Background(), "q:a")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEnricherUpgradeWritesBothKeys(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(context.Background(), "q:a", CacheEntry{
		Latitude: -33.2, Longitude: 151.1, Provider: "nominatim",
	}))

	premium := &fakeProvider{name: "google", results: map[string]*Result{
		"a": matchedResult("google", -33.0, 151.0),
	}}
	e := NewEnricher(cache, premium, NewBudget(-1), 8)
	e.Enqueue(UpgradeTask{QueryKey: "q:a", AliasKey: "alias:forest:a", Query: "a"})
	e.Close()

	for _, key := range []string{"q:a", "alias:forest:a"} {
		entry, err := cache.Get(context.Background(), key)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "google", entry.Provider)
	}
}
