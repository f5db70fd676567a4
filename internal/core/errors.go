package core

import (
	"errors"
	"fmt"
)

// ErrEmptyIOC rejects empty or whitespace-only input before any store or
// analyzer work happens.
var ErrEmptyIOC = errors.New("ioc is required")

// QuotaExceededError reports which ceiling denied the request.
type QuotaExceededError struct {
	Scope      Scope
	Limit      int
	ResetHours float64
}

func (e *QuotaExceededError) Error() string {
	if e.Scope.Daily() {
		return fmt.Sprintf("%s quota exceeded (limit %d, resets in %.1fh)", e.Scope, e.Limit, e.ResetHours)
	}
	return fmt.Sprintf("%s quota exceeded (limit %d)", e.Scope, e.Limit)
}

// AnalyzerError wraps a failed external analyzer invocation. Callers surface
// it generically; quota is never consumed for a failed attempt.
type AnalyzerError struct {
	Err error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("analyzer failure: %v", e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// StoreError wraps a counter or cache I/O failure on a path that cannot
// fail open.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
