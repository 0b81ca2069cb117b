package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	fetched_at     DATETIME NOT NULL,
	doc            TEXT NOT NULL,
	saved_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	display_name TEXT,
	confidence   REAL,
	provider     TEXT NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_provider ON geocode_cache(provider);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the single snapshot row wholesale.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, schema_version, fetched_at, doc, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			schema_version = excluded.schema_version,
			fetched_at = excluded.fetched_at,
			doc = excluded.doc,
			saved_at = excluded.saved_at`,
		snap.SchemaVersion, snap.FetchedAt.UTC(), string(doc), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save snapshot")
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM snapshots WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load snapshot")
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*geocode.CacheEntry, error) {
	var entry geocode.CacheEntry
	var conf sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT latitude, longitude, COALESCE(display_name, ''), COALESCE(confidence, 0), provider, updated_at
		FROM geocode_cache WHERE key = ?`, key,
	).Scan(&entry.Latitude, &entry.Longitude, &entry.DisplayName, &conf, &entry.Provider, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get geocode %s", key)
	}
	entry.Confidence = conf.Float64
	return &entry, nil
}

func (s *SQLiteStore) PutGeocode(ctx context.Context, key string, entry geocode.CacheEntry) error {
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (key, latitude, longitude, display_name, confidence, provider, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			display_name = excluded.display_name,
			confidence = excluded.confidence,
			provider = excluded.provider,
			updated_at = excluded.updated_at`,
		key, entry.Latitude, entry.Longitude, entry.DisplayName, entry.Confidence, entry.Provider, updatedAt,
	)
	return eris.Wrapf(err, "sqlite: put geocode %s", key)
}
