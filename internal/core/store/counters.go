package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iocgate/iocgate/internal/core"
)

// CounterValue returns the stored count for a (scope, key, bucket) tuple.
// A missing row reads as zero, never as an error.
func (s *Store) CounterValue(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return 0, errors.New("counter bucket is required")
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		SELECT count FROM counters
		WHERE scope = ? AND scope_key = ? AND bucket = ?
	`, string(scope), scopeKey, bucket)

	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch counter: %w", err)
	}

	return count, nil
}

// IncrementCounter atomically creates the row with count 1 or increments the
// existing row, returning the post-increment value. The single upsert
// statement is what keeps concurrent increments from losing updates.
func (s *Store) IncrementCounter(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return 0, errors.New("counter bucket is required")
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO counters (scope, scope_key, bucket, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(scope, scope_key, bucket) DO UPDATE SET
			count = count + 1
		RETURNING count
	`, string(scope), scopeKey, bucket)

	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}

	return count, nil
}

// DeleteCountersBefore removes rows of a daily scope whose bucket precedes
// the cutoff. Monthly counters are retained indefinitely; one row per month
// keeps their cardinality bounded.
func (s *Store) DeleteCountersBefore(ctx context.Context, scope core.Scope, bucketCutoff string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if !scope.Daily() {
		return 0, fmt.Errorf("scope %s is not subject to retention", scope)
	}

	bucketCutoff = strings.TrimSpace(bucketCutoff)
	if bucketCutoff == "" {
		return 0, errors.New("bucket cutoff is required")
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM counters
		WHERE scope = ? AND bucket < ?
	`, string(scope), bucketCutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old counters: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old counters: %w", err)
	}
	return affected, nil
}
