package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iocgate/iocgate/internal/core"
)

type CounterEntry struct {
	Scope    core.Scope
	ScopeKey string
	Bucket   string
	Count    int
}

type CounterQuery struct {
	All       bool
	Scope     string
	ClientKey string
}

func (q CounterQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Scope) != "" {
		return nil
	}
	if strings.TrimSpace(q.ClientKey) != "" {
		return nil
	}
	return errors.New("must specify --all, --scope, or --client")
}

func (q CounterQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if scope := strings.TrimSpace(q.Scope); scope != "" {
		return "WHERE scope = ?", []any{scope}, nil
	}
	client := strings.TrimSpace(q.ClientKey)
	if client == "" {
		return "", nil, errors.New("client key is required")
	}
	return "WHERE scope = ? AND scope_key = ?", []any{string(core.ScopePerClient), client}, nil
}

func (s *Store) ListCounters(ctx context.Context, q CounterQuery) ([]CounterEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT scope, scope_key, bucket, count
		FROM counters
		%s
		ORDER BY scope, bucket DESC, scope_key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []CounterEntry{}
	for rows.Next() {
		var (
			scope    string
			scopeKey string
			bucket   string
			count    int
		)
		if err := rows.Scan(&scope, &scopeKey, &bucket, &count); err != nil {
			return nil, fmt.Errorf("scan counters: %w", err)
		}
		entries = append(entries, CounterEntry{
			Scope:    core.Scope(scope),
			ScopeKey: scopeKey,
			Bucket:   bucket,
			Count:    count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}

	return entries, nil
}

func (s *Store) CountCounters(ctx context.Context, q CounterQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM counters
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count counters: %w", err)
	}
	return count, nil
}

func (s *Store) ResetCounters(ctx context.Context, q CounterQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM counters
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset counters: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset counters: %w", err)
	}
	return affected, nil
}
