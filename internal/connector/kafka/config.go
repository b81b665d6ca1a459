package kafka

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/datascienceChris/datahub/internal/config"
	httpclient "github.com/datascienceChris/datahub/internal/connector/http"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/pattern"
)

const (
	DefaultBootstrap     = "localhost:9092"
	DefaultRegistryURL   = "http://localhost:8081"
	DefaultSubjectSuffix = "-value"
	DefaultDialTimeout   = 10 * time.Second
	DefaultClientID      = "datahub-ingest"
)

// DefaultTopicPatterns admits every topic except internal ones (leading "_").
func DefaultTopicPatterns() *pattern.AllowDeny {
	return pattern.MustNew([]string{".*"}, []string{"^_.*"})
}

// Config holds the parsed kafka source configuration.
//
//	connection:
//	  bootstrap: broker:9092
//	  schema_registry_url: http://registry:8081
//	  schema_registry_config: {username: ..., password: ...}
//	  consumer_config: {client.id: ...}
//	topic_patterns: {allow: [...], deny: [...]}
//	env: PROD
//	subject_suffix: -value
type Config struct {
	Bootstrap     []string
	ClientID      string
	DialTimeout   time.Duration
	Registry      *httpclient.ClientConfig
	TopicPatterns *pattern.AllowDeny
	Env           string
	SubjectSuffix string
	CacheSize     int
}

var topLevelKeys = []string{
	"connection", "topic_patterns", "topicPatterns", "env",
	"subject_suffix", "subjectSuffix", "schema_cache_size", "schemaCacheSize",
}

// ParseConfig decodes a recipe mapping. Errors match endpoint.ErrConfiguration.
func ParseConfig(params map[string]any) (*Config, error) {
	if unknown := config.UnknownKeys(params, topLevelKeys...); len(unknown) > 0 {
		return nil, configError("unknown keys %v", unknown)
	}
	conn, err := config.Map(params, "connection")
	if err != nil {
		return nil, wrapConfig(err)
	}

	cfg := &Config{
		Env:           config.StringDefault(params, core.DefaultEnv, "env"),
		SubjectSuffix: DefaultSubjectSuffix,
	}
	if v, ok := params["subject_suffix"]; ok {
		cfg.SubjectSuffix = fmt.Sprint(v)
	} else if v, ok := params["subjectSuffix"]; ok {
		cfg.SubjectSuffix = fmt.Sprint(v)
	}
	if cfg.CacheSize, err = config.Int(params, 0, "schema_cache_size", "schemaCacheSize"); err != nil {
		return nil, wrapConfig(err)
	}

	bootstrap, ok, err := config.StringSlice(conn, "bootstrap")
	if err != nil {
		return nil, wrapConfig(err)
	}
	if !ok {
		bootstrap = []string{DefaultBootstrap}
	}
	for _, entry := range bootstrap {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.Bootstrap = append(cfg.Bootstrap, addr)
			}
		}
	}
	if cfg.DialTimeout, err = config.Duration(conn, DefaultDialTimeout, "dial_timeout", "dialTimeout"); err != nil {
		return nil, wrapConfig(err)
	}
	consumer, err := config.StringMap(conn, "consumer_config", "consumerConfig")
	if err != nil {
		return nil, wrapConfig(err)
	}
	cfg.ClientID = DefaultClientID
	if id := consumer["client.id"]; id != "" {
		cfg.ClientID = id
	}

	registryParams := map[string]any{}
	extra, err := config.Map(conn, "schema_registry_config", "schemaRegistryConfig")
	if err != nil {
		return nil, wrapConfig(err)
	}
	for k, v := range extra {
		registryParams[k] = v
	}
	registryParams["url"] = config.StringDefault(conn, DefaultRegistryURL, "schema_registry_url", "schemaRegistryUrl")
	if cfg.Registry, err = httpclient.ConfigFromMap(registryParams); err != nil {
		return nil, wrapConfig(fmt.Errorf("schema registry: %w", err))
	}

	patterns, err := config.Map(params, "topic_patterns", "topicPatterns")
	if err != nil {
		return nil, wrapConfig(err)
	}
	if cfg.TopicPatterns, err = pattern.FromConfig(patterns, DefaultTopicPatterns()); err != nil {
		return nil, wrapConfig(fmt.Errorf("topic_patterns: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and normalizes Env.
func (c *Config) Validate() error {
	if len(c.Bootstrap) == 0 {
		return configError("connection.bootstrap is required")
	}
	for _, addr := range c.Bootstrap {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return configError("connection.bootstrap %q: expected host:port", addr)
		}
	}
	env, err := core.NormalizeEnv(c.Env)
	if err != nil {
		return wrapConfig(err)
	}
	c.Env = env
	if c.TopicPatterns == nil {
		c.TopicPatterns = DefaultTopicPatterns()
	}
	return nil
}

func configError(format string, args ...any) error {
	return endpoint.ConfigErrorf(SourceType, format, args...)
}

func wrapConfig(err error) error {
	return &endpoint.ConfigurationError{Component: SourceType, Reason: "invalid value", Err: err}
}
