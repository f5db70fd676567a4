package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iocgate/iocgate/internal/core"
)

type memoryCounters struct {
	counts  map[string]int
	readErr error
}

func counterKey(scope core.Scope, scopeKey, bucket string) string {
	return string(scope) + "|" + scopeKey + "|" + bucket
}

func (m *memoryCounters) CounterValue(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.counts[counterKey(scope, scopeKey, bucket)], nil
}

func (m *memoryCounters) set(scope core.Scope, scopeKey, bucket string, count int) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[counterKey(scope, scopeKey, bucket)] = count
}

var testLimits = core.QuotaLimits{PerClientDaily: 5, GlobalDaily: 100, GlobalMonthly: 500}

func newTestPolicy(counters *memoryCounters, now time.Time) *Policy {
	policy := New(counters, testLimits)
	policy.Clock = func() time.Time { return now }
	return policy
}

func TestEvaluateAllow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopePerClient, "10.0.0.1", "2026-03-15", 4)
	counters.set(core.ScopeGlobalDaily, "", "2026-03-15", 50)
	counters.set(core.ScopeGlobalMonthly, "", "2026-03", 300)

	decision, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestEvaluateDenyPerClient(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopePerClient, "10.0.0.1", "2026-03-15", 5)

	decision, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, core.ScopePerClient, decision.Scope)
	require.Equal(t, 5, decision.Limit)
	require.InDelta(t, 6.0, decision.ResetHours, 0.01)
}

func TestEvaluateOrderPerClientWins(t *testing.T) {
	// Both the per-client and global daily ceilings are exhausted; the
	// reported scope must be per-client.
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopePerClient, "10.0.0.1", "2026-03-15", 5)
	counters.set(core.ScopeGlobalDaily, "", "2026-03-15", 100)

	decision, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, core.ScopePerClient, decision.Scope)
}

func TestEvaluateDenyGlobalDaily(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopeGlobalDaily, "", "2026-03-15", 100)

	decision, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, core.ScopeGlobalDaily, decision.Scope)
	require.Equal(t, 100, decision.Limit)
	require.Greater(t, decision.ResetHours, 0.0)
}

func TestEvaluateDenyGlobalMonthly(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopeGlobalMonthly, "", "2026-03", 500)

	decision, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, core.ScopeGlobalMonthly, decision.Scope)
	require.Equal(t, 500, decision.Limit)
	// Monthly denials carry no daily reset figure.
	require.Equal(t, 0.0, decision.ResetHours)
}

func TestEvaluateReadFailureFailsClosed(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{readErr: errors.New("disk gone")}

	_, err := newTestPolicy(counters, now).Evaluate(context.Background(), "10.0.0.1")
	require.Error(t, err)

	var storeErr *core.StoreError
	require.ErrorAs(t, err, &storeErr)
}

func TestUsage(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	counters := &memoryCounters{}
	counters.set(core.ScopePerClient, "10.0.0.1", "2026-03-15", 3)

	count, limit, err := newTestPolicy(counters, now).Usage(context.Background(), core.ScopePerClient, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, 5, limit)
}
