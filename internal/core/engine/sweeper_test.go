package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iocgate/iocgate/internal/core"
)

type fakeRetentionStore struct {
	purgeCutoff    time.Time
	purgeErr       error
	purged         int64
	deleteCutoffs  map[core.Scope]string
	deleteErr      error
	deletedPerCall int64
}

func (f *fakeRetentionStore) PurgeExpiredAnalyses(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	f.purgeCutoff = cutoff
	return f.purged, nil
}

func (f *fakeRetentionStore) DeleteCountersBefore(ctx context.Context, scope core.Scope, bucketCutoff string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if f.deleteCutoffs == nil {
		f.deleteCutoffs = make(map[core.Scope]string)
	}
	f.deleteCutoffs[scope] = bucketCutoff
	return f.deletedPerCall, nil
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeRetentionStore{purged: 3, deletedPerCall: 2}

	sweeper := &Sweeper{
		Store:       store,
		HorizonDays: 7,
		Clock:       func() time.Time { return now },
	}

	report, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), report.CacheRows)
	require.Equal(t, int64(4), report.CounterRows)

	require.Equal(t, now, store.purgeCutoff)

	// Both daily scopes swept with the horizon cutoff; monthly untouched.
	require.Equal(t, "2026-03-08", store.deleteCutoffs[core.ScopePerClient])
	require.Equal(t, "2026-03-08", store.deleteCutoffs[core.ScopeGlobalDaily])
	require.NotContains(t, store.deleteCutoffs, core.ScopeGlobalMonthly)
}

func TestSweepCacheFailure(t *testing.T) {
	store := &fakeRetentionStore{purgeErr: errors.New("locked")}
	sweeper := &Sweeper{Store: store, HorizonDays: 7}

	_, err := sweeper.Sweep(context.Background())
	require.Error(t, err)

	var storeErr *core.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Empty(t, store.deleteCutoffs)
}

func TestSweepCounterFailure(t *testing.T) {
	store := &fakeRetentionStore{deleteErr: errors.New("locked")}
	sweeper := &Sweeper{Store: store, HorizonDays: 7}

	report, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(0), report.CounterRows)
}

func TestRunReportsAndStops(t *testing.T) {
	store := &fakeRetentionStore{purged: 1, deletedPerCall: 1}

	reports := make(chan SweepReport, 1)
	sweeper := &Sweeper{
		Store:       store,
		HorizonDays: 7,
		Interval:    time.Hour,
		OnSweep: func(report SweepReport, err error) {
			select {
			case reports <- report:
			default:
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	select {
	case report := <-reports:
		require.Equal(t, int64(1), report.CacheRows)
	case <-time.After(5 * time.Second):
		t.Fatal("startup sweep never reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
