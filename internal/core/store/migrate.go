package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS counters (
		scope TEXT NOT NULL,
		scope_key TEXT NOT NULL DEFAULT '',
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (scope, scope_key, bucket)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_counters_scope_bucket ON counters(scope, bucket);`,
	`CREATE TABLE IF NOT EXISTS analysis_cache (
		fingerprint TEXT PRIMARY KEY,
		ioc TEXT NOT NULL,
		results TEXT NOT NULL,
		cached_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
