package http

import (
	"fmt"
	"net/url"

	"github.com/datascienceChris/datahub/internal/config"
)

// ConfigFromMap builds a ClientConfig from a recipe mapping:
//
//	url: http://registry:8081
//	username / password   (basic auth)
//	token                 (bearer)
//	apiKey / apiKeyHeader
//	timeout: 10s
//	rateLimit: 20
//	headers: {X-Tenant: acme}
func ConfigFromMap(params map[string]any) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	cfg.BaseURL = config.String(params, "url", "baseUrl", "base_url")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q is not an absolute URL", cfg.BaseURL)
	}

	username := config.String(params, "username", "user")
	password := config.String(params, "password")
	token := config.String(params, "token", "bearerToken")
	apiKey := config.String(params, "apiKey", "api_key")
	switch {
	case token != "":
		cfg.Auth = BearerToken{Token: token}
	case apiKey != "":
		cfg.Auth = APIKey{Key: apiKey, Header: config.String(params, "apiKeyHeader")}
	case username != "" || password != "":
		cfg.Auth = BasicAuth{Username: username, Password: password}
	}

	if cfg.Timeout, err = config.Duration(params, cfg.Timeout, "timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = config.Int(params, cfg.MaxRetries, "maxRetries", "max_retries"); err != nil {
		return nil, err
	}
	rateLimit, err := config.Int(params, int(cfg.RateLimit), "rateLimit", "rate_limit")
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = float64(rateLimit)
	headers, err := config.StringMap(params, "headers")
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		cfg.Headers[k] = v
	}
	return cfg, nil
}
