package store

import (
	"context"
	"fmt"
	"time"
)

// migration is one schema step. Steps are applied in order and recorded in
// schema_migrations so each runs once per database.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "search history",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS search_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				search_id TEXT NOT NULL UNIQUE,
				goal TEXT NOT NULL,
				location TEXT,
				country_code TEXT NOT NULL,
				location_based INTEGER NOT NULL DEFAULT 0,
				result_count INTEGER NOT NULL DEFAULT 0,
				result_json TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_search_history_created ON search_history(created_at)`,
		},
	},
	{
		version: 2,
		name:    "enrichment cache",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS enrichment_cache (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				vendor TEXT NOT NULL,
				source TEXT NOT NULL,
				location TEXT NOT NULL,
				country_code TEXT NOT NULL,
				lookup_json TEXT NOT NULL,
				rejected INTEGER NOT NULL DEFAULT 0,
				checked_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				UNIQUE(vendor, source, location, country_code)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_enrichment_cache_expires ON enrichment_cache(expires_at)`,
		},
	},
	{
		version: 3,
		name:    "feedback log",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS feedback_log (
				id TEXT PRIMARY KEY,
				search_id TEXT NOT NULL,
				rating INTEGER NOT NULL,
				message TEXT,
				vendor_count INTEGER NOT NULL DEFAULT 0,
				status_code INTEGER,
				error TEXT,
				submitted_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_log_search ON feedback_log(search_id)`,
		},
	},
	{
		version: 4,
		name:    "rate limits",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS rate_limits (
				route TEXT PRIMARY KEY,
				request_count INTEGER NOT NULL DEFAULT 0,
				window_start INTEGER NOT NULL,
				backoff_until INTEGER,
				last_429_at INTEGER
			)`,
		},
	},
}

// Migrate applies every migration newer than the database's recorded version.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("store migration failed: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the newest applied migration, or 0 for an empty database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Unix(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}
