package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAnalyzer submits indicators to an HTTP analysis backend.
type HTTPAnalyzer struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Timeout  time.Duration
}

type analyzeRequest struct {
	IOC string `json:"ioc"`
}

// Available reports whether the backend is configured.
func (a *HTTPAnalyzer) Available() bool {
	return a != nil && strings.TrimSpace(a.Endpoint) != ""
}

// Analyze posts the indicator to the backend and returns its JSON body
// verbatim. Any transport failure or non-2xx status is an analyzer failure;
// callers must not consume quota for it.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, ioc string) (json.RawMessage, error) {
	if !a.Available() {
		return nil, errors.New("analyzer endpoint is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(analyzeRequest{IOC: ioc})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(a.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := a.Client
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	if !json.Valid(payload) {
		return nil, errors.New("analyzer returned malformed JSON")
	}

	return json.RawMessage(payload), nil
}
