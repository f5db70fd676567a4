package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPAnalyzerAvailable(t *testing.T) {
	require.False(t, (&HTTPAnalyzer{}).Available())
	require.False(t, (&HTTPAnalyzer{Endpoint: "   "}).Available())
	require.True(t, (&HTTPAnalyzer{Endpoint: "http://analyzer.internal/analyze"}).Available())
}

func TestHTTPAnalyzerAnalyze(t *testing.T) {
	var gotBody analyzeRequest
	var gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verdict":"malicious","score":87}`))
	}))
	defer ts.Close()

	backend := &HTTPAnalyzer{
		Endpoint: ts.URL,
		APIKey:   "secret-key",
		Timeout:  5 * time.Second,
	}

	results, err := backend.Analyze(context.Background(), "evil.example")
	require.NoError(t, err)
	require.JSONEq(t, `{"verdict":"malicious","score":87}`, string(results))
	require.Equal(t, "evil.example", gotBody.IOC)
	require.Equal(t, "Bearer secret-key", gotAuth)
}

func TestHTTPAnalyzerNon2xxIsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	backend := &HTTPAnalyzer{Endpoint: ts.URL}

	_, err := backend.Analyze(context.Background(), "evil.example")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestHTTPAnalyzerMalformedJSONIsFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	backend := &HTTPAnalyzer{Endpoint: ts.URL}

	_, err := backend.Analyze(context.Background(), "evil.example")
	require.Error(t, err)
}

func TestHTTPAnalyzerTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	backend := &HTTPAnalyzer{Endpoint: ts.URL, Timeout: 50 * time.Millisecond}

	started := time.Now()
	_, err := backend.Analyze(context.Background(), "evil.example")
	require.Error(t, err)
	require.Less(t, time.Since(started), time.Second)
}

func TestHTTPAnalyzerUnconfigured(t *testing.T) {
	_, err := (&HTTPAnalyzer{}).Analyze(context.Background(), "evil.example")
	require.Error(t, err)
}
