//go:build cgo

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iocgate/iocgate/internal/config"
	"github.com/iocgate/iocgate/internal/core"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenMemoryStore(t *testing.T) {
	db := openMemoryStore(t)
	require.Equal(t, "libsql", db.Driver())
	require.NoError(t, db.CheckHealth(context.Background()))
}

func TestCounterValueMissingRowIsZero(t *testing.T) {
	db := openMemoryStore(t)

	count, err := db.CounterValue(context.Background(), core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestIncrementCounter(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	count, err := db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Other tuples are independent.
	count, err = db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.2", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = db.IncrementCounter(ctx, core.ScopeGlobalDaily, "", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIncrementCounterConcurrent(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	const workers = 20
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := db.IncrementCounter(ctx, core.ScopeGlobalDaily, "", "2026-03-15"); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := db.CounterValue(ctx, core.ScopeGlobalDaily, "", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, workers*perWorker, count)
}

func TestCachedAnalysisRoundTrip(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	fingerprint := core.Fingerprint("1.2.3.4")
	require.NoError(t, db.SaveAnalysis(ctx, fingerprint, "1.2.3.4", []byte(`{"verdict":"clean"}`), time.Hour))

	entry, err := db.CachedAnalysis(ctx, fingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "1.2.3.4", entry.IOC)
	require.JSONEq(t, `{"verdict":"clean"}`, string(entry.Results))
	require.True(t, entry.ExpiresAt.After(entry.CachedAt))
}

func TestCachedAnalysisMiss(t *testing.T) {
	db := openMemoryStore(t)

	entry, err := db.CachedAnalysis(context.Background(), core.Fingerprint("unseen.example"))
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestCachedAnalysisExpiredRowIsAbsent(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	// Insert an already-expired row directly; lookup must treat it as absent
	// even before the sweeper removes it.
	fingerprint := core.Fingerprint("stale.example")
	past := time.Now().UTC().Add(-2 * time.Hour)
	_, err := db.DB.ExecContext(ctx, `
		INSERT INTO analysis_cache (fingerprint, ioc, results, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, fingerprint, "stale.example", `{}`, past.Add(-24*time.Hour).Unix(), past.Unix())
	require.NoError(t, err)

	entry, err := db.CachedAnalysis(ctx, fingerprint)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestSaveAnalysisReplacesPriorEntry(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	fingerprint := core.Fingerprint("evil.example")
	require.NoError(t, db.SaveAnalysis(ctx, fingerprint, "evil.example", []byte(`{"verdict":"clean"}`), time.Hour))
	require.NoError(t, db.SaveAnalysis(ctx, fingerprint, "evil.example", []byte(`{"verdict":"malicious"}`), time.Hour))

	entry, err := db.CachedAnalysis(ctx, fingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.JSONEq(t, `{"verdict":"malicious"}`, string(entry.Results))
}

func TestPurgeExpiredAnalyses(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// One row expired two hours ago, one expiring in an hour.
	_, err := db.DB.ExecContext(ctx, `
		INSERT INTO analysis_cache (fingerprint, ioc, results, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, core.Fingerprint("old.example"), "old.example", `{}`, now.Add(-26*time.Hour).Unix(), now.Add(-2*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, db.SaveAnalysis(ctx, core.Fingerprint("fresh.example"), "fresh.example", []byte(`{}`), time.Hour))

	purged, err := db.PurgeExpiredAnalyses(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	entry, err := db.CachedAnalysis(ctx, core.Fingerprint("fresh.example"))
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestDeleteCountersBefore(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	_, err := db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-05")
	require.NoError(t, err)
	_, err = db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	_, err = db.IncrementCounter(ctx, core.ScopeGlobalMonthly, "", "2026-03")
	require.NoError(t, err)

	deleted, err := db.DeleteCountersBefore(ctx, core.ScopePerClient, "2026-03-08")
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	count, err := db.CounterValue(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Monthly rows are never subject to retention.
	_, err = db.DeleteCountersBefore(ctx, core.ScopeGlobalMonthly, "2027-01")
	require.Error(t, err)

	count, err = db.CounterValue(ctx, core.ScopeGlobalMonthly, "", "2026-03")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCounterAdminQueries(t *testing.T) {
	db := openMemoryStore(t)
	ctx := context.Background()

	_, err := db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.1", "2026-03-15")
	require.NoError(t, err)
	_, err = db.IncrementCounter(ctx, core.ScopePerClient, "10.0.0.2", "2026-03-15")
	require.NoError(t, err)
	_, err = db.IncrementCounter(ctx, core.ScopeGlobalDaily, "", "2026-03-15")
	require.NoError(t, err)

	t.Run("ListAll", func(t *testing.T) {
		entries, err := db.ListCounters(ctx, CounterQuery{All: true})
		require.NoError(t, err)
		require.Len(t, entries, 3)
	})

	t.Run("ListByScope", func(t *testing.T) {
		entries, err := db.ListCounters(ctx, CounterQuery{Scope: string(core.ScopePerClient)})
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})

	t.Run("ListByClient", func(t *testing.T) {
		entries, err := db.ListCounters(ctx, CounterQuery{ClientKey: "10.0.0.1"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, 1, entries[0].Count)
	})

	t.Run("QueryRequiresSelector", func(t *testing.T) {
		_, err := db.ListCounters(ctx, CounterQuery{})
		require.Error(t, err)
	})

	t.Run("ResetByClient", func(t *testing.T) {
		deleted, err := db.ResetCounters(ctx, CounterQuery{ClientKey: "10.0.0.2"})
		require.NoError(t, err)
		require.Equal(t, int64(1), deleted)

		remaining, err := db.CountCounters(ctx, CounterQuery{All: true})
		require.NoError(t, err)
		require.Equal(t, 2, remaining)
	})
}
