package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/pkg/geocode"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	fetched_at     TIMESTAMPTZ NOT NULL,
	doc            JSONB NOT NULL,
	saved_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	display_name TEXT,
	confidence   DOUBLE PRECISION,
	provider     TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_provider ON geocode_cache(provider);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (id, schema_version, fetched_at, doc, saved_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			fetched_at = EXCLUDED.fetched_at,
			doc = EXCLUDED.doc,
			saved_at = EXCLUDED.saved_at`,
		snap.SchemaVersion, snap.FetchedAt.UTC(), doc,
	)
	return eris.Wrap(err, "postgres: save snapshot")
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM snapshots WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load snapshot")
	}

	var snap model.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string) (*geocode.CacheEntry, error) {
	var entry geocode.CacheEntry
	err := s.pool.QueryRow(ctx, `
		SELECT latitude, longitude, COALESCE(display_name, ''), COALESCE(confidence, 0), provider, updated_at
		FROM geocode_cache WHERE key = $1`, key,
	).Scan(&entry.Latitude, &entry.Longitude, &entry.DisplayName, &entry.Confidence, &entry.Provider, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get geocode %s", key)
	}
	return &entry, nil
}

func (s *PostgresStore) PutGeocode(ctx context.Context, key string, entry geocode.CacheEntry) error {
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (key, latitude, longitude, display_name, confidence, provider, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			display_name = EXCLUDED.display_name,
			confidence = EXCLUDED.confidence,
			provider = EXCLUDED.provider,
			updated_at = EXCLUDED.updated_at`,
		key, entry.Latitude, entry.Longitude, entry.DisplayName, entry.Confidence, entry.Provider, updatedAt,
	)
	return eris.Wrapf(err, "postgres: put geocode %s", key)
}
