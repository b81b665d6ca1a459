package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	httpclient "github.com/datascienceChris/datahub/internal/connector/http"
)

func newTestClient(url string) *httpclient.Client {
	cfg := httpclient.DefaultClientConfig()
	cfg.BaseURL = url
	cfg.RateLimit = 1000
	cfg.RateBurst = 100
	cfg.Timeout = 2 * time.Second
	return httpclient.NewClient(cfg)
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subjects/orders-value/versions/latest" {
			t.Errorf("Expected registry path, got %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("Expected User-Agent header")
		}
		w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	var out struct {
		ID int `json:"id"`
	}
	if err := newTestClient(srv.URL+"/").GetJSON(context.Background(), "/subjects/orders-value/versions/latest", &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.ID != 7 {
		t.Errorf("Expected id 7, got %d", out.ID)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error_code":40401,"message":"Subject not found."}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Get(context.Background(), "/subjects/missing-value/versions/latest", nil)
	if !httpclient.IsNotFound(err) {
		t.Fatalf("Expected not found error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}
	if httpErr.Code != 40401 || httpErr.Message != "Subject not found." {
		t.Errorf("Expected registry error code and message, got %d %q", httpErr.Code, httpErr.Message)
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := httpclient.DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 1
	cfg.RateLimit = 1000
	_, err := httpclient.NewClient(cfg).Get(context.Background(), "/subjects", nil)

	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) || !httpErr.Temporary() {
		t.Fatalf("Expected a temporary HTTPError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := newTestClient(srv.URL).Get(ctx, "/x", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected backoff to stop on cancel, took %v", elapsed)
	}
}

func TestAuth_Apply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example", nil)
	httpclient.BasicAuth{Username: "key", Password: "secret"}.Apply(req)
	if got := req.Header.Get("Authorization"); got != "Basic a2V5OnNlY3JldA==" {
		t.Errorf("Expected basic header, got %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example", nil)
	httpclient.APIKey{Key: "k"}.Apply(req)
	if got := req.Header.Get("X-API-Key"); got != "k" {
		t.Errorf("Expected X-API-Key header, got %q", got)
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg, err := httpclient.ConfigFromMap(map[string]any{
		"url":      "http://registry:8081",
		"username": "u",
		"password": "p",
		"timeout":  "5s",
		"headers":  map[string]any{"X-Tenant": "acme"},
	})
	if err != nil {
		t.Fatalf("ConfigFromMap failed: %v", err)
	}
	if _, ok := cfg.Auth.(httpclient.BasicAuth); !ok {
		t.Errorf("Expected BasicAuth, got %T", cfg.Auth)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.Timeout)
	}
	if cfg.Headers["X-Tenant"] != "acme" {
		t.Errorf("Expected header to be copied, got %v", cfg.Headers)
	}

	for _, bad := range []map[string]any{{}, {"url": "registry:8081"}, {"url": "http://r", "timeout": "soon"}} {
		if _, err := httpclient.ConfigFromMap(bad); err == nil {
			t.Errorf("Expected error for %v", bad)
		}
	}
}
