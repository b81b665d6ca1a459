package jdbc

import (
	"fmt"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/pattern"
)

// Config holds warehouse connection and selection settings.
type Config struct {
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	SSLMode          string
	ConnectionString string

	// SchemaPatterns filter on the schema name, TablePatterns on "schema.table".
	SchemaPatterns *pattern.AllowDeny
	TablePatterns  *pattern.AllowDeny
	IncludeViews   bool
	IncludeUsage   bool
	Env            string
	CacheSize      int
}

var knownKeys = []string{
	"host", "port", "database", "user", "password", "ssl_mode", "sslMode",
	"connection_string", "connectionString",
	"schema_pattern", "schemaPattern", "table_pattern", "tablePattern",
	"include_views", "includeViews", "include_usage", "includeUsage",
	"env", "schema_cache_size",
}

// DefaultSchemaPatterns excludes the catalog schemas.
func DefaultSchemaPatterns() *pattern.AllowDeny {
	return pattern.MustNew([]string{".*"}, []string{"pg_catalog", "information_schema", "pg_toast.*"})
}

// ParseConfig extracts configuration from a recipe mapping. Errors match
// endpoint.ErrConfiguration.
func ParseConfig(m map[string]any) (*Config, error) {
	if unknown := config.UnknownKeys(m, knownKeys...); len(unknown) > 0 {
		return nil, endpoint.ConfigErrorf(SourceType, "unknown keys %v", unknown)
	}
	cfg := &Config{
		Host:     config.StringDefault(m, "localhost", "host"),
		Database: config.String(m, "database"),
		User:     config.String(m, "user"),
		Password: config.String(m, "password"),
		SSLMode:  config.StringDefault(m, "disable", "ssl_mode", "sslMode"),
		Env:      config.StringDefault(m, core.DefaultEnv, "env"),
	}
	var err error
	if cfg.Port, err = config.Int(m, 5432, "port"); err != nil {
		return nil, wrap(err)
	}
	if cfg.IncludeViews, err = config.Bool(m, true, "include_views", "includeViews"); err != nil {
		return nil, wrap(err)
	}
	if cfg.IncludeUsage, err = config.Bool(m, true, "include_usage", "includeUsage"); err != nil {
		return nil, wrap(err)
	}
	if cfg.CacheSize, err = config.Int(m, 0, "schema_cache_size"); err != nil {
		return nil, wrap(err)
	}

	schemaParams, err := config.Map(m, "schema_pattern", "schemaPattern")
	if err != nil {
		return nil, wrap(err)
	}
	if cfg.SchemaPatterns, err = pattern.FromConfig(schemaParams, DefaultSchemaPatterns()); err != nil {
		return nil, wrap(fmt.Errorf("schema_pattern: %w", err))
	}
	tableParams, err := config.Map(m, "table_pattern", "tablePattern")
	if err != nil {
		return nil, wrap(err)
	}
	if cfg.TablePatterns, err = pattern.FromConfig(tableParams, pattern.AllowAll()); err != nil {
		return nil, wrap(fmt.Errorf("table_pattern: %w", err))
	}

	if connStr := config.String(m, "connection_string", "connectionString"); connStr != "" {
		cfg.ConnectionString = connStr
	} else if cfg.Database == "" {
		return nil, endpoint.ConfigErrorf(SourceType, "database or connection_string is required")
	} else {
		cfg.ConnectionString = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and normalizes Env.
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return endpoint.ConfigErrorf(SourceType, "connection string is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return endpoint.ConfigErrorf(SourceType, "port %d out of range", c.Port)
	}
	env, err := core.NormalizeEnv(c.Env)
	if err != nil {
		return wrap(err)
	}
	c.Env = env
	return nil
}

func wrap(err error) error {
	return &endpoint.ConfigurationError{Component: SourceType, Reason: "invalid value", Err: err}
}
