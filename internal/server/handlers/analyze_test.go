package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iocgate/iocgate/internal/core"
	"github.com/iocgate/iocgate/internal/core/engine"
	"github.com/iocgate/iocgate/internal/core/quota"
)

type memoryCounters struct {
	counts map[string]int
}

func counterKey(scope core.Scope, scopeKey, bucket string) string {
	return string(scope) + "|" + scopeKey + "|" + bucket
}

func (m *memoryCounters) CounterValue(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error) {
	return m.counts[counterKey(scope, scopeKey, bucket)], nil
}

func (m *memoryCounters) IncrementCounter(ctx context.Context, scope core.Scope, scopeKey, bucket string) (int, error) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[counterKey(scope, scopeKey, bucket)]++
	return m.counts[counterKey(scope, scopeKey, bucket)], nil
}

type memoryCache struct {
	entries map[string]*core.CacheEntry
}

func (m *memoryCache) CachedAnalysis(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	return m.entries[fingerprint], nil
}

func (m *memoryCache) SaveAnalysis(ctx context.Context, fingerprint, ioc string, results json.RawMessage, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]*core.CacheEntry)
	}
	now := time.Now().UTC()
	m.entries[fingerprint] = &core.CacheEntry{
		Fingerprint: fingerprint,
		IOC:         ioc,
		Results:     results,
		CachedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	return nil
}

type stubAnalyzer struct {
	fail bool
}

func (s *stubAnalyzer) Analyze(ctx context.Context, ioc string) (json.RawMessage, error) {
	if s.fail {
		return nil, errors.New("backend down")
	}
	return json.RawMessage(fmt.Sprintf(`{"ioc":%q,"verdict":"clean"}`, ioc)), nil
}

func (s *stubAnalyzer) Available() bool { return true }

func newTestHandler(backend engine.Analyzer) (*AnalyzeHandler, *memoryCounters) {
	limits := core.QuotaLimits{PerClientDaily: 5, GlobalDaily: 100, GlobalMonthly: 500}
	counters := &memoryCounters{}

	gate := &engine.Gate{
		Counters: counters,
		Cache:    &memoryCache{},
		Policy:   quota.New(counters, limits),
		Analyzer: backend,
		Limits:   limits,
		CacheTTL: 24 * time.Hour,
	}

	return &AnalyzeHandler{Gate: gate}, counters
}

func postAnalyze(handler *AnalyzeHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeHandlerFresh(t *testing.T) {
	handler, _ := newTestHandler(&stubAnalyzer{})

	rec := postAnalyze(handler, `{"ioc":"1.2.3.4"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp AnalyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Cached {
		t.Fatal("expected cached=false on first analysis")
	}
	if resp.IOC != "1.2.3.4" {
		t.Fatalf("expected ioc 1.2.3.4, got %s", resp.IOC)
	}
	if resp.RateLimit.Limit != 5 || resp.RateLimit.Remaining != 4 {
		t.Fatalf("expected limit 5 remaining 4, got %d/%d", resp.RateLimit.Limit, resp.RateLimit.Remaining)
	}

	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected X-RateLimit-Limit 5, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("expected X-RateLimit-Remaining 4, got %q", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("expected X-RateLimit-Reset header")
	}
}

func TestAnalyzeHandlerCachedRepeat(t *testing.T) {
	handler, counters := newTestHandler(&stubAnalyzer{})

	if rec := postAnalyze(handler, `{"ioc":"1.2.3.4"}`); rec.Code != http.StatusOK {
		t.Fatalf("first request failed with %d", rec.Code)
	}
	before := counters.counts[counterKey(core.ScopePerClient, "10.0.0.1", core.DayBucket(time.Now()))]

	rec := postAnalyze(handler, `{"ioc":"1.2.3.4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp AnalyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Cached {
		t.Fatal("expected cached=true on repeat analysis")
	}
	if !resp.RateLimit.CachedQuery {
		t.Fatal("expected rate_limit.cached_query true on cache hit")
	}

	after := counters.counts[counterKey(core.ScopePerClient, "10.0.0.1", core.DayBucket(time.Now()))]
	if after != before {
		t.Fatalf("cache hit consumed quota: before=%d after=%d", before, after)
	}
}

func TestAnalyzeHandlerEmptyIOC(t *testing.T) {
	handler, _ := newTestHandler(&stubAnalyzer{})

	for _, body := range []string{`{"ioc":""}`, `{"ioc":"   "}`, `{}`} {
		rec := postAnalyze(handler, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected status 400, got %d", body, rec.Code)
		}
	}
}

func TestAnalyzeHandlerMalformedBody(t *testing.T) {
	handler, _ := newTestHandler(&stubAnalyzer{})

	rec := postAnalyze(handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestAnalyzeHandlerQuotaDenied(t *testing.T) {
	handler, _ := newTestHandler(&stubAnalyzer{})

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"ioc":"198.51.100.%d"}`, i)
		if rec := postAnalyze(handler, body); rec.Code != http.StatusOK {
			t.Fatalf("request %d failed with %d", i, rec.Code)
		}
	}

	rec := postAnalyze(handler, `{"ioc":"198.51.100.99"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}

	var resp QuotaDeniedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error != "quota_exceeded" {
		t.Fatalf("expected error quota_exceeded, got %s", resp.Error)
	}
	if resp.Limit == nil || *resp.Limit != 5 {
		t.Fatalf("expected limit 5, got %v", resp.Limit)
	}
	if resp.Remaining == nil || *resp.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %v", resp.Remaining)
	}
	if resp.ResetHours == nil || *resp.ResetHours <= 0 || *resp.ResetHours > 24 {
		t.Fatalf("expected reset_hours in (0, 24], got %v", resp.ResetHours)
	}

	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining 0, got %q", got)
	}
}

func TestAnalyzeHandlerAnalyzerFailure(t *testing.T) {
	handler, counters := newTestHandler(&stubAnalyzer{fail: true})

	rec := postAnalyze(handler, `{"ioc":"1.2.3.4"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	if len(counters.counts) != 0 {
		t.Fatalf("analyzer failure consumed quota: %v", counters.counts)
	}
}
