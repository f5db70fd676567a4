// Package engine implements the admission flow: cache lookup, quota
// evaluation, analyzer invocation, and counter accounting.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/iocgate/iocgate/internal/core"
)

// CounterStore is the counter slice of the store the gate needs.
type CounterStore interface {
	CounterValue(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error)
	IncrementCounter(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error)
}

// CacheStore is the analysis-cache slice of the store the gate needs.
type CacheStore interface {
	CachedAnalysis(ctx context.Context, fingerprint string) (*core.CacheEntry, error)
	SaveAnalysis(ctx context.Context, fingerprint, ioc string, results json.RawMessage, ttl time.Duration) error
}

// Analyzer invokes the external analysis backend.
type Analyzer interface {
	Analyze(ctx context.Context, ioc string) (json.RawMessage, error)
	Available() bool
}

// Policy decides whether a request may proceed to the analyzer.
type Policy interface {
	Evaluate(ctx context.Context, clientKey string) (core.Decision, error)
}

// Gate serves analysis requests through the cache and quota layers.
// The ordering invariants live here: cache hits are free, quota is checked
// before the analyzer is ever invoked, and counters move only after the
// analyzer succeeds.
type Gate struct {
	Counters CounterStore
	Cache    CacheStore
	Policy   Policy
	Analyzer Analyzer
	Limits   core.QuotaLimits
	CacheTTL time.Duration
	Clock    func() time.Time

	// OnStoreError, when set, receives cache-save and counter-increment
	// failures from the persisting path. Those writes are best effort and
	// never fail the response, but a store that keeps rejecting increments
	// stops quota accounting, so the failures must reach an operator.
	OnStoreError func(op string, err error)

	// OnAnalyzerCall, when set, receives the outcome and elapsed time of
	// every analyzer invocation.
	OnAnalyzerCall func(err error, elapsed time.Duration)
}

func (g *Gate) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

// Admit serves one analysis request for a client.
//
// The flow is: validate, consult the cache, evaluate quota, call the
// analyzer, persist the result, then account usage. A cache read failure
// falls through to a fresh analysis; a counter read failure denies the
// request instead of letting an unmetered call through.
func (g *Gate) Admit(ctx context.Context, ioc string, clientKey string) (*core.AdmissionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	trimmed := strings.TrimSpace(ioc)
	if trimmed == "" {
		return nil, core.ErrEmptyIOC
	}
	// The fingerprint folds case so that variants share a cache row; the
	// analyzer still receives the indicator as submitted.
	fingerprint := core.Fingerprint(trimmed)

	now := g.now()

	// Cache consultation precedes quota evaluation so a repeat lookup is
	// answered even for a client that has exhausted its allowance.
	entry, err := g.Cache.CachedAnalysis(ctx, fingerprint)
	if err != nil {
		g.storeError("cache lookup", err)
	}
	if err == nil && entry.Live(now) {
		count, limit, usageErr := g.clientUsage(ctx, clientKey, now)
		if usageErr != nil {
			count = limit
		}
		return &core.AdmissionResult{
			IOC:       trimmed,
			Cached:    true,
			Results:   entry.Results,
			Limit:     limit,
			Remaining: remaining(limit, count),
			ResetAt:   core.NextDailyReset(now),
		}, nil
	}

	decision, err := g.Policy.Evaluate(ctx, clientKey)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &core.QuotaExceededError{
			Scope:      decision.Scope,
			Limit:      decision.Limit,
			ResetHours: decision.ResetHours,
		}
	}

	started := time.Now()
	results, err := g.Analyzer.Analyze(ctx, trimmed)
	if g.OnAnalyzerCall != nil {
		g.OnAnalyzerCall(err, time.Since(started))
	}
	if err != nil {
		return nil, &core.AnalyzerError{Err: err}
	}

	// Persistence and accounting are best effort once the analyzer has
	// answered: the client already paid for the analysis, so a storage
	// hiccup must not turn a success into an error.
	if err := g.Cache.SaveAnalysis(ctx, fingerprint, trimmed, results, g.CacheTTL); err != nil {
		g.storeError("cache save", err)
	}

	clientCount := g.recordUsage(ctx, clientKey, now)

	limit := g.Limits.Limit(core.ScopePerClient)
	return &core.AdmissionResult{
		IOC:       trimmed,
		Cached:    false,
		Results:   results,
		Limit:     limit,
		Remaining: remaining(limit, clientCount),
		ResetAt:   core.NextDailyReset(now),
	}, nil
}

// recordUsage bumps all three scopes and returns the client's post-increment
// count, falling back to the ceiling when the increment itself failed. Each
// failed increment is reported through OnStoreError.
func (g *Gate) recordUsage(ctx context.Context, clientKey string, now time.Time) int {
	clientCount, err := g.Counters.IncrementCounter(ctx, core.ScopePerClient, clientKey, core.DayBucket(now))
	if err != nil {
		g.storeError("per-client increment", err)
		clientCount = g.Limits.Limit(core.ScopePerClient)
	}
	if _, err := g.Counters.IncrementCounter(ctx, core.ScopeGlobalDaily, "", core.DayBucket(now)); err != nil {
		g.storeError("global daily increment", err)
	}
	if _, err := g.Counters.IncrementCounter(ctx, core.ScopeGlobalMonthly, "", core.MonthBucket(now)); err != nil {
		g.storeError("global monthly increment", err)
	}
	return clientCount
}

func (g *Gate) storeError(op string, err error) {
	if g.OnStoreError != nil {
		g.OnStoreError(op, err)
	}
}

func (g *Gate) clientUsage(ctx context.Context, clientKey string, now time.Time) (count, limit int, err error) {
	limit = g.Limits.Limit(core.ScopePerClient)
	count, err = g.Counters.CounterValue(ctx, core.ScopePerClient, clientKey, core.DayBucket(now))
	return count, limit, err
}

func remaining(limit, used int) int {
	left := limit - used
	if left < 0 {
		return 0
	}
	return left
}
