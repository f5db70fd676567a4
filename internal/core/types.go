package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Scope identifies a quota dimension.
type Scope string

const (
	ScopePerClient     Scope = "per_client"
	ScopeGlobalDaily   Scope = "global_daily"
	ScopeGlobalMonthly Scope = "global_monthly"
)

// Daily reports whether the scope resets at UTC midnight.
func (s Scope) Daily() bool {
	return s == ScopePerClient || s == ScopeGlobalDaily
}

// QuotaLimits holds the configured ceilings for the three scopes.
type QuotaLimits struct {
	PerClientDaily int
	GlobalDaily    int
	GlobalMonthly  int
}

// Limit returns the ceiling for a scope.
func (q QuotaLimits) Limit(scope Scope) int {
	switch scope {
	case ScopePerClient:
		return q.PerClientDaily
	case ScopeGlobalDaily:
		return q.GlobalDaily
	case ScopeGlobalMonthly:
		return q.GlobalMonthly
	default:
		return 0
	}
}

// DayBucket formats the calendar-day bucket for daily counters.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthBucket formats the calendar-month bucket for monthly counters.
func MonthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// BucketFor returns the counter bucket a scope uses at the given time.
func BucketFor(scope Scope, t time.Time) string {
	if scope.Daily() {
		return DayBucket(t)
	}
	return MonthBucket(t)
}

// NextDailyReset returns the next UTC midnight after now.
func NextDailyReset(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// HoursUntilReset returns the fractional hours until the next UTC midnight,
// rounded to one decimal place.
func HoursUntilReset(now time.Time) float64 {
	hours := NextDailyReset(now).Sub(now.UTC()).Hours()
	return math.Round(hours*10) / 10
}

// NormalizeIOC case-folds and trims an IOC for cache keying. The raw string
// is preserved alongside for display.
func NormalizeIOC(ioc string) string {
	return strings.ToLower(strings.TrimSpace(ioc))
}

// Fingerprint derives the cache key for an IOC: hex SHA-256 of the
// normalized form.
func Fingerprint(ioc string) string {
	sum := sha256.Sum256([]byte(NormalizeIOC(ioc)))
	return hex.EncodeToString(sum[:])
}

// CacheEntry is a stored analysis result. Results is opaque to the gate.
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	IOC         string          `json:"ioc"`
	Results     json.RawMessage `json:"results"`
	CachedAt    time.Time       `json:"cached_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Live reports whether the entry is still valid at the given time.
func (e *CacheEntry) Live(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// Decision is the quota policy verdict for a request.
type Decision struct {
	Allowed    bool
	Scope      Scope
	Limit      int
	ResetHours float64
}

// Allow is the decision that admits a request.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a denial for the given scope.
func Deny(scope Scope, limit int, resetHours float64) Decision {
	return Decision{Scope: scope, Limit: limit, ResetHours: resetHours}
}

// AdmissionResult is the terminal outcome of a served analysis request.
// Remaining is advisory: under concurrency the displayed value may lag the
// stored counter by one.
type AdmissionResult struct {
	IOC       string          `json:"ioc"`
	Cached    bool            `json:"cached"`
	Results   json.RawMessage `json:"results"`
	Limit     int             `json:"limit"`
	Remaining int             `json:"remaining"`
	ResetAt   time.Time       `json:"reset_at"`
}
