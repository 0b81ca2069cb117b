package geocode

import (
	"context"
	"sync"
)

// fakeProvider answers from a fixed query map and records call order.
type fakeProvider struct {
	name    string
	metered bool
	results map[string]*Result
	err     error

	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Metered() bool { return p.metered }

func (p *fakeProvider) Geocode(_ context.Context, query string) (*Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, query)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	if r, ok := p.results[query]; ok {
		return r, nil
	}
	return &Result{Provider: p.name, Matched: false}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// memCache is an in-memory Cache for tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]CacheEntry)}
}

func (c *memCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		e := entry
		return &e, nil
	}
	return nil, nil
}

func (c *memCache) Put(_ context.Context, key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func matchedResult(provider string, lat, lon float64) *Result {
	return &Result{Latitude: lat, Longitude: lon, Provider: provider, Matched: true}
}
