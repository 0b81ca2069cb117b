// Package store persists the versioned snapshot document and the geocode
// key-value cache. The snapshot is replaced wholesale on every save so
// readers never observe a partially written document.
package store

import (
	"context"

	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/pkg/geocode"
)

// Store is the persistence interface. Backends: SQLite (default), Postgres.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	// SaveSnapshot replaces the persisted snapshot document atomically.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	// LoadSnapshot returns the persisted snapshot, or (nil, nil) when absent.
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)

	// GetGeocode returns a cached resolution, or (nil, nil) on a miss.
	GetGeocode(ctx context.Context, key string) (*geocode.CacheEntry, error)
	// PutGeocode inserts or replaces a cached resolution.
	PutGeocode(ctx context.Context, key string, entry geocode.CacheEntry) error
}

// GeocodeCache adapts a Store to the resolver's cache interface.
type GeocodeCache struct {
	Store Store
}

// Get implements geocode.Cache.
func (c GeocodeCache) Get(ctx context.Context, key string) (*geocode.CacheEntry, error) {
	return c.Store.GetGeocode(ctx, key)
}

// Put implements geocode.Cache.
func (c GeocodeCache) Put(ctx context.Context, key string, entry geocode.CacheEntry) error {
	return c.Store.PutGeocode(ctx, key, entry)
}
