// Package quota evaluates a request against the configured admission
// ceilings. The policy only reads counters; the admission engine owns
// increments so that cache hits and failed analyses never consume quota.
package quota

import (
	"context"
	"time"

	"github.com/iocgate/iocgate/internal/core"
)

// CounterReader is the slice of the store the policy needs.
type CounterReader interface {
	CounterValue(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error)
}

// Policy checks all three quota scopes in a fixed order: per-client first,
// then global daily, then global monthly. The first exhausted scope wins,
// so a client over its own ceiling is told so even when the global pools
// are also exhausted.
type Policy struct {
	Counters CounterReader
	Limits   core.QuotaLimits
	Clock    func() time.Time
}

func New(counters CounterReader, limits core.QuotaLimits) *Policy {
	return &Policy{
		Counters: counters,
		Limits:   limits,
		Clock:    time.Now,
	}
}

func (p *Policy) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// Evaluate returns the admission decision for a client at this moment. A
// counter read failure denies the request rather than letting an unmetered
// call through to the analyzer.
func (p *Policy) Evaluate(ctx context.Context, clientKey string) (core.Decision, error) {
	now := p.now()

	checks := []struct {
		scope core.Scope
		key   string
	}{
		{core.ScopePerClient, clientKey},
		{core.ScopeGlobalDaily, ""},
		{core.ScopeGlobalMonthly, ""},
	}

	for _, check := range checks {
		limit := p.Limits.Limit(check.scope)
		bucket := core.BucketFor(check.scope, now)

		count, err := p.Counters.CounterValue(ctx, check.scope, check.key, bucket)
		if err != nil {
			return core.Decision{}, &core.StoreError{Op: "quota evaluation", Err: err}
		}

		if count >= limit {
			resetHours := 0.0
			if check.scope.Daily() {
				resetHours = core.HoursUntilReset(now)
			}
			return core.Deny(check.scope, limit, resetHours), nil
		}
	}

	return core.Allow(), nil
}

// Usage reports the current count and ceiling for one scope. Used by the
// stats surface.
func (p *Policy) Usage(ctx context.Context, scope core.Scope, clientKey string) (count, limit int, err error) {
	now := p.now()
	limit = p.Limits.Limit(scope)

	key := ""
	if scope == core.ScopePerClient {
		key = clientKey
	}

	count, err = p.Counters.CounterValue(ctx, scope, key, core.BucketFor(scope, now))
	if err != nil {
		return 0, limit, &core.StoreError{Op: "quota usage", Err: err}
	}
	return count, limit, nil
}
