package pgcatalog

import (
	"regexp"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/endpoint"
)

const (
	defaultTable    = "metadata_records"
	defaultMaxConns = 4
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var knownKeys = []string{
	"connection_string", "connectionString", "url",
	"table",
	"ensure_table", "ensureTable",
	"max_conns", "maxConns",
}

// Config captures the catalog sink configuration.
type Config struct {
	ConnectionString string
	// Table may be schema-qualified.
	Table       string
	EnsureTable bool
	MaxConns    int
}

// ParseConfig builds a Config from recipe parameters.
func ParseConfig(params map[string]any) (*Config, error) {
	if unknown := config.UnknownKeys(params, knownKeys...); len(unknown) > 0 {
		return nil, endpoint.ConfigErrorf(SinkType, "unknown keys %v", unknown)
	}
	cfg := &Config{
		ConnectionString: config.String(params, "connection_string", "connectionString", "url"),
		Table:            config.StringDefault(params, defaultTable, "table"),
	}
	var err error
	if cfg.EnsureTable, err = config.Bool(params, true, "ensure_table", "ensureTable"); err != nil {
		return nil, &endpoint.ConfigurationError{Component: SinkType, Reason: "malformed parameter", Err: err}
	}
	if cfg.MaxConns, err = config.Int(params, defaultMaxConns, "max_conns", "maxConns"); err != nil {
		return nil, &endpoint.ConfigurationError{Component: SinkType, Reason: "malformed parameter", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields. The table name is interpolated into SQL
// and must be a plain identifier.
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return endpoint.ConfigErrorf(SinkType, "connection_string is required")
	}
	if !identPattern.MatchString(c.Table) {
		return endpoint.ConfigErrorf(SinkType, "table %q is not a valid identifier", c.Table)
	}
	if c.MaxConns <= 0 {
		return endpoint.ConfigErrorf(SinkType, "max_conns must be positive, got %d", c.MaxConns)
	}
	return nil
}
