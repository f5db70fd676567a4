package engine

import (
	"context"
	"time"

	"github.com/iocgate/iocgate/internal/core"
)

// RetentionStore is the slice of the store the sweeper needs.
type RetentionStore interface {
	PurgeExpiredAnalyses(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCountersBefore(ctx context.Context, scope core.Scope, bucketCutoff string) (int64, error)
}

// SweepReport summarizes one retention pass.
type SweepReport struct {
	CacheRows   int64
	CounterRows int64
	Elapsed     time.Duration
}

// Sweeper removes expired cache rows and stale daily counters on a schedule.
// Monthly counters are never swept; they carry the month-to-date total.
type Sweeper struct {
	Store       RetentionStore
	HorizonDays int
	Interval    time.Duration
	Clock       func() time.Time

	// OnSweep, when set, receives the outcome of every pass. Failures are
	// delivered here and never stop the loop.
	OnSweep func(SweepReport, error)
}

func (s *Sweeper) now() time.Time {
	if s != nil && s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

// Sweep runs a single retention pass. Expired cache entries go first, then
// daily counter rows older than the horizon.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	started := s.now()
	report := SweepReport{}

	cacheRows, err := s.Store.PurgeExpiredAnalyses(ctx, started)
	if err != nil {
		report.Elapsed = s.now().Sub(started)
		return report, &core.StoreError{Op: "cache sweep", Err: err}
	}
	report.CacheRows = cacheRows

	cutoff := core.DayBucket(started.AddDate(0, 0, -s.HorizonDays))
	for _, scope := range []core.Scope{core.ScopePerClient, core.ScopeGlobalDaily} {
		rows, err := s.Store.DeleteCountersBefore(ctx, scope, cutoff)
		if err != nil {
			report.Elapsed = s.now().Sub(started)
			return report, &core.StoreError{Op: "counter sweep", Err: err}
		}
		report.CounterRows += rows
	}

	report.Elapsed = s.now().Sub(started)
	return report, nil
}

// Run sweeps once immediately, then on every tick until the context ends.
// A failed pass is reported and retried on the next tick. A non-positive
// interval means the startup sweep only.
func (s *Sweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.report(s.Sweep(ctx))

	if s.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.report(s.Sweep(ctx))
		}
	}
}

func (s *Sweeper) report(report SweepReport, err error) {
	if s.OnSweep != nil {
		s.OnSweep(report, err)
	}
}
