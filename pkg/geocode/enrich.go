package geocode

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// UpgradeTask asks the background worker to replace a cache entry with a
// premium-provider result.
type UpgradeTask struct {
	QueryKey string
	AliasKey string
	Query    string
}

// Enricher upgrades cached free-tier results against the premium provider on
// a single serialized background worker, decoupled from foreground latency.
// The queue is strictly FIFO with exactly one consumer; enqueueing is
// idempotent by cache key; upgrades are dropped silently when the budget is
// exhausted, the entry is already premium-sourced, or any error occurs.
type Enricher struct {
	cache   Cache
	premium Provider
	budget  *Budget

	mu      sync.Mutex
	pending map[string]bool
	queue   chan UpgradeTask
	done    chan struct{}
	once    sync.Once
}

// NewEnricher starts the background worker. Call Close to drain and stop it.
func NewEnricher(cache Cache, premium Provider, budget *Budget, queueSize int) *Enricher {
	if queueSize <= 0 {
		queueSize = 256
	}
	e := &Enricher{
		cache:   cache,
		premium: premium,
		budget:  budget,
		pending: make(map[string]bool),
		queue:   make(chan UpgradeTask, queueSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Enqueue schedules an upgrade. A no-op while an equivalent task (same query
// key) is already queued, or when the queue is full.
func (e *Enricher) Enqueue(task UpgradeTask) {
	if task.QueryKey == "" {
		return
	}
	e.mu.Lock()
	if e.pending[task.QueryKey] {
		e.mu.Unlock()
		return
	}
	e.pending[task.QueryKey] = true
	e.mu.Unlock()

	select {
	case e.queue <- task:
	default:
		// Queue full: drop, this is best-effort quality improvement.
		e.mu.Lock()
		delete(e.pending, task.QueryKey)
		e.mu.Unlock()
	}
}

// Close stops accepting tasks, drains the queue, and waits for the worker.
func (e *Enricher) Close() {
	e.once.Do(func() {
		close(e.queue)
		<-e.done
	})
}

func (e *Enricher) run() {
	defer close(e.done)
	for task := range e.queue {
		e.process(task)
		e.mu.Lock()
		delete(e.pending, task.QueryKey)
		e.mu.Unlock()
	}
}

func (e *Enricher) process(task UpgradeTask) {
	ctx := context.Background()
	log := zap.L().With(zap.String("query", task.Query))

	entry, err := e.cache.Get(ctx, task.QueryKey)
	if err != nil {
		log.Debug("geocode enrich: cache read failed", zap.Error(err))
		return
	}
	if entry != nil && entry.Provider == e.premium.Name() {
		return
	}

	if e.budget != nil && !e.budget.Take() {
		log.Debug("geocode enrich: budget exhausted, dropping upgrade")
		return
	}

	result, err := e.premium.Geocode(ctx, task.Query)
	if err != nil || result == nil || !result.Matched {
		log.Debug("geocode enrich: upgrade lookup yielded nothing", zap.Error(err))
		return
	}

	upgraded := CacheEntry{
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		DisplayName: result.DisplayName,
		Confidence:  result.Confidence,
		Provider:    result.Provider,
	}
	for _, key := range []string{task.QueryKey, task.AliasKey} {
		if key == "" {
			continue
		}
		if err := e.cache.Put(ctx, key, upgraded); err != nil {
			log.Debug("geocode enrich: cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	log.Debug("geocode enrich: upgraded cache entry", zap.String("provider", result.Provider))
}
