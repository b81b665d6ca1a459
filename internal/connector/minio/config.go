package minio

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/endpoint"
)

const (
	defaultBucket     = "datahub-metadata"
	defaultBasePrefix = "metadata"
	defaultTenantID   = "default"
	defaultBatchSize  = 500
)

// Format is the object encoding of written parts.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

var knownKeys = []string{
	"endpointUrl", "endpoint_url", "url",
	"region",
	"useSSL", "use_ssl",
	"accessKeyId", "access_key_id",
	"secretAccessKey", "secret_access_key",
	"bucket",
	"basePrefix", "base_prefix", "prefix",
	"tenantId", "tenant_id",
	"rootPath", "root_path",
	"format",
	"batchSize", "batch_size",
	"createBucket", "create_bucket",
}

// Config captures the minio sink configuration.
type Config struct {
	EndpointURL     string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePrefix      string
	TenantID        string
	// RootPath stores objects on the local filesystem instead of a server.
	// Also implied by a file:// endpoint.
	RootPath     string
	Format       Format
	BatchSize    int
	CreateBucket bool
}

// ParseConfig builds a Config from recipe parameters.
func ParseConfig(params map[string]any) (*Config, error) {
	if unknown := config.UnknownKeys(params, knownKeys...); len(unknown) > 0 {
		return nil, endpoint.ConfigErrorf(SinkType, "unknown keys %v", unknown)
	}
	cfg := &Config{
		EndpointURL:     config.String(params, "endpointUrl", "endpoint_url", "url"),
		Region:          config.String(params, "region"),
		AccessKeyID:     config.String(params, "accessKeyId", "access_key_id"),
		SecretAccessKey: config.String(params, "secretAccessKey", "secret_access_key"),
		Bucket:          config.StringDefault(params, defaultBucket, "bucket"),
		BasePrefix:      strings.Trim(config.StringDefault(params, defaultBasePrefix, "basePrefix", "base_prefix", "prefix"), "/"),
		TenantID:        config.StringDefault(params, defaultTenantID, "tenantId", "tenant_id"),
		RootPath:        config.String(params, "rootPath", "root_path"),
		Format:          Format(strings.ToLower(config.StringDefault(params, string(FormatJSONL), "format"))),
	}

	var err error
	if cfg.UseSSL, err = config.Bool(params, false, "useSSL", "use_ssl"); err != nil {
		return nil, wrapConfig(err)
	}
	if cfg.BatchSize, err = config.Int(params, defaultBatchSize, "batchSize", "batch_size"); err != nil {
		return nil, wrapConfig(err)
	}
	if cfg.CreateBucket, err = config.Bool(params, true, "createBucket", "create_bucket"); err != nil {
		return nil, wrapConfig(err)
	}
	if cfg.RootPath == "" && strings.HasPrefix(cfg.EndpointURL, "file://") {
		if u, perr := url.Parse(cfg.EndpointURL); perr == nil && u.Path != "" {
			cfg.RootPath = u.Path
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces required fields. Reachability is checked when the sink
// opens its store.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatJSONL, FormatParquet:
	default:
		return endpoint.ConfigErrorf(SinkType, "format must be %q or %q, got %q", FormatJSONL, FormatParquet, c.Format)
	}
	if c.BatchSize <= 0 {
		return endpoint.ConfigErrorf(SinkType, "batchSize must be positive, got %d", c.BatchSize)
	}
	if c.Bucket == "" {
		return endpoint.ConfigErrorf(SinkType, "bucket is required")
	}
	if c.Local() {
		return nil
	}
	if c.EndpointURL == "" {
		return &endpoint.ConfigurationError{
			Component: SinkType,
			Reason:    "endpointUrl is required",
			Err:       wrapError(CodeEndpointUnreachable, false, nil),
		}
	}
	if _, err := url.Parse(c.EndpointURL); err != nil {
		return &endpoint.ConfigurationError{
			Component: SinkType,
			Reason:    "endpointUrl is malformed",
			Err:       wrapError(CodeEndpointUnreachable, false, err),
		}
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return &endpoint.ConfigurationError{
			Component: SinkType,
			Reason:    "accessKeyId and secretAccessKey are required",
			Err:       wrapError(CodeAuthInvalid, false, nil),
		}
	}
	return nil
}

// Local reports whether objects go to the local filesystem.
func (c *Config) Local() bool {
	return c.RootPath != ""
}

// objectPrefix is the key prefix of every part written for runID.
func (c *Config) objectPrefix(runID string) string {
	return joinPath(c.BasePrefix, c.TenantID, runID)
}

func wrapConfig(err error) error {
	return &endpoint.ConfigurationError{Component: SinkType, Reason: "malformed parameter", Err: err}
}

func sanitizePath(raw string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(raw)
}

func objectURL(bucket, key string) string {
	return fmt.Sprintf("minio://%s/%s", bucket, key)
}
