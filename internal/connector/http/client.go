package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "datahub-ingest/1.0"

	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
)

// ClientConfig describes how to reach one platform API.
type ClientConfig struct {
	BaseURL string
	Auth    AuthConfig

	// Timeout bounds a single attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries counts extra attempts after a 429 or 5xx. Negative disables
	// retrying.
	MaxRetries int

	// RateLimit and RateBurst throttle every attempt, retries included.
	RateLimit float64
	RateBurst int

	// Headers are sent on every request.
	Headers   map[string]string
	UserAgent string

	// Transport replaces http.DefaultTransport, for tests.
	Transport http.RoundTripper
}

// DefaultClientConfig: 30s per attempt, 3 retries, 10 req/s with a burst of 5.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Auth:       NoAuth{},
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RateLimit:  10.0,
		RateBurst:  5,
		UserAgent:  defaultUserAgent,
		Headers:    make(map[string]string),
	}
}

// Client issues throttled GET calls against a platform API and retries
// throttling and server errors with exponential backoff.
type Client struct {
	cfg     *ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient fills zero fields of cfg with the defaults.
func NewClient(cfg *ClientConfig) *Client {
	def := DefaultClientConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Auth == nil {
		cfg.Auth = def.Auth
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = def.MaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// BaseURL returns the API root the client was built for.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Get fetches path (relative to BaseURL) and returns the response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.resolve(path, query)
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		body, err := c.fetch(ctx, target)
		if err == nil {
			return body, nil
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("GET %s: giving up after %d attempts: %w", path, attempt+1, err)
		}
		timer := time.NewTimer(retryDelay(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// GetJSON is Get followed by decoding the body into target.
func (c *Client) GetJSON(ctx context.Context, path string, target any) error {
	body, err := c.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := c.cfg.BaseURL
	if path != "" {
		target = strings.TrimSuffix(target, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	c.cfg.Auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newHTTPError(resp, body)
	}
	return body, nil
}

// retryDelay doubles from baseBackoff per attempt. A Retry-After header on a
// throttled response wins. Both are capped at maxBackoff.
func retryDelay(attempt int, err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return min(httpErr.RetryAfter, maxBackoff)
	}
	if attempt >= 5 {
		return maxBackoff
	}
	return min(baseBackoff<<attempt, maxBackoff)
}

// =============================================================================
// ERRORS
// =============================================================================

// HTTPError is a 4xx or 5xx answer. Message is the registry's "message" field
// when the body carries one, otherwise the trimmed body.
type HTTPError struct {
	StatusCode int
	Code       int
	Message    string
	RetryAfter time.Duration
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var payload struct {
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Code = payload.ErrorCode
		e.Message = payload.Message
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}

func (e *HTTPError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports throttling and server-side failures.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

func retryable(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Temporary()
}
