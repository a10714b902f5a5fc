package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	userAgent          = "aegis-security-advisor/1.0"

	// maxBodyBytes caps upstream response bodies before JSON decoding.
	maxBodyBytes = 4 * 1024 * 1024
)

// upstreamClient is a thin HTTP helper shared by the lookup tools. Each tool
// owns its own instance so base URLs can be swapped out in tests.
type upstreamClient struct {
	http    *http.Client
	baseURL string
	headers map[string]string
}

func newUpstreamClient(baseURL string, headers map[string]string) *upstreamClient {
	return &upstreamClient{
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: baseURL,
		headers: headers,
	}
}

// getJSON performs a GET against path (plus query) and decodes the JSON
// response body into out. Non-2xx statuses are returned as errors carrying
// the status code so callers can produce meaningful tool results.
func (c *upstreamClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

// postJSON performs a POST with a JSON body and decodes the response into out.
func (c *upstreamClient) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *upstreamClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("upstream rate limit exceeded (status 429)")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, snippet(body, 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errNotFound signals the upstream has no record for the queried entity.
// Tools translate this into a successful "not found" result rather than a
// failure, since absence of data is itself an answer.
var errNotFound = fmt.Errorf("not found")

func snippet(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

