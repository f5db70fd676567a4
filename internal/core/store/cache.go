package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iocgate/iocgate/internal/core"
)

// CachedAnalysis returns the stored analysis for a fingerprint if it has not
// expired. Expired rows are treated as absent; the sweeper removes them later.
func (s *Store) CachedAnalysis(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if fingerprint == "" {
		return nil, errors.New("cache fingerprint is required")
	}

	var (
		ioc       string
		results   string
		cachedAt  int64
		expiresAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT ioc, results, cached_at, expires_at
		FROM analysis_cache
		WHERE fingerprint = ? AND expires_at > ?
	`, fingerprint, time.Now().UTC().Unix())

	if err := row.Scan(&ioc, &results, &cachedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached analysis: %w", err)
	}

	return &core.CacheEntry{
		Fingerprint: fingerprint,
		IOC:         ioc,
		Results:     json.RawMessage(results),
		CachedAt:    time.Unix(cachedAt, 0).UTC(),
		ExpiresAt:   time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// SaveAnalysis stores analyzer results with a TTL, replacing any prior entry
// for the same fingerprint.
func (s *Store) SaveAnalysis(ctx context.Context, fingerprint, ioc string, results json.RawMessage, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		return nil
	}

	if fingerprint == "" {
		return errors.New("cache fingerprint is required")
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO analysis_cache (fingerprint, ioc, results, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			ioc = excluded.ioc,
			results = excluded.results,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, fingerprint, ioc, string(results), now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached analysis: %w", err)
	}

	return nil
}

// PurgeExpiredAnalyses deletes cache rows whose expiry precedes the cutoff.
func (s *Store) PurgeExpiredAnalyses(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM analysis_cache
		WHERE expires_at < ?
	`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cached analyses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cached analyses: %w", err)
	}
	return affected, nil
}

// CachedAnalysisCount reports live and total rows in the analysis cache.
// Used by the stats surface; cheap because the cache stays small under
// retention.
func (s *Store) CachedAnalysisCount(ctx context.Context) (live int64, total int64, err error) {
	if s == nil || s.DB == nil {
		return 0, 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN expires_at > ? THEN 1 END),
			COUNT(*)
		FROM analysis_cache
	`, time.Now().UTC().Unix())

	if err := row.Scan(&live, &total); err != nil {
		return 0, 0, fmt.Errorf("count cached analyses: %w", err)
	}
	return live, total, nil
}
