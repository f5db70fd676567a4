package analyzer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStaticAnalyzerClassify(t *testing.T) {
	cases := map[string]string{
		"1.2.3.4":      "ip",
		"2001:db8::1":  "ip",
		"evil.example": "domain",
		"d41d8cd98f00b204e9800998ecf8427e":                                 "md5",
		"da39a3ee5e6b4b0d3255bfef95601890afd80709":                         "sha1",
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855": "sha256",
		"https://evil.example/payload":                                     "url",
		"not an indicator at all":                                          "unknown",
	}

	for input, want := range cases {
		require.Equal(t, want, classify(input), "input %q", input)
	}
}

func TestStaticAnalyzerAnalyze(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	backend := &StaticAnalyzer{Clock: func() time.Time { return now }}

	require.False(t, backend.Available())

	payload, err := backend.Analyze(context.Background(), "  EVIL.example ")
	require.NoError(t, err)

	var verdict map[string]any
	require.NoError(t, json.Unmarshal(payload, &verdict))
	require.Equal(t, "evil.example", verdict["ioc"])
	require.Equal(t, "domain", verdict["type"])
	require.Equal(t, "static", verdict["source"])
	require.Equal(t, now.Format(time.RFC3339), verdict["analyzed_at"])
}

func TestStaticAnalyzerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&StaticAnalyzer{}).Analyze(ctx, "1.2.3.4")
	require.Error(t, err)
}
