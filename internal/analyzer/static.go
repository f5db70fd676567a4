package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/iocgate/iocgate/internal/core"
)

var (
	md5Pattern    = regexp.MustCompile(`^[a-f0-9]{32}$`)
	sha1Pattern   = regexp.MustCompile(`^[a-f0-9]{40}$`)
	sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
)

// StaticAnalyzer classifies indicators locally without calling a backend.
// It is the development fallback when no analyzer endpoint is configured:
// it reports the indicator type and echoes it back, which is enough to
// exercise the caching and quota layers end to end.
type StaticAnalyzer struct {
	Clock func() time.Time
}

func (a *StaticAnalyzer) now() time.Time {
	if a != nil && a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}

// Available reports false: static classification is a stand-in, not a
// reachable analysis backend.
func (a *StaticAnalyzer) Available() bool {
	return false
}

// Analyze classifies the indicator and returns a synthetic verdict.
func (a *StaticAnalyzer) Analyze(ctx context.Context, ioc string) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value := core.NormalizeIOC(ioc)

	verdict := map[string]any{
		"ioc":         value,
		"type":        classify(value),
		"verdict":     "unknown",
		"source":      "static",
		"analyzed_at": a.now().Format(time.RFC3339),
	}

	payload, err := json.Marshal(verdict)
	if err != nil {
		return nil, fmt.Errorf("encode static verdict: %w", err)
	}
	return payload, nil
}

func classify(value string) string {
	switch {
	case md5Pattern.MatchString(value):
		return "md5"
	case sha1Pattern.MatchString(value):
		return "sha1"
	case sha256Pattern.MatchString(value):
		return "sha256"
	case net.ParseIP(value) != nil:
		return "ip"
	case strings.Contains(value, "://"):
		return "url"
	case domainPattern.MatchString(value):
		return "domain"
	default:
		return "unknown"
	}
}
