// Package analyzer wraps the external IOC analysis backend behind a small
// interface so the admission flow never depends on a concrete transport.
package analyzer

import (
	"context"
	"encoding/json"
)

// Analyzer submits an indicator for analysis and returns the backend's
// verdict as opaque JSON.
type Analyzer interface {
	Analyze(ctx context.Context, ioc string) (json.RawMessage, error)
	Available() bool
}
