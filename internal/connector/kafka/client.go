package kafka

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	kafkago "github.com/segmentio/kafka-go"

	httpclient "github.com/datascienceChris/datahub/internal/connector/http"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// TopicLister enumerates the topics of a cluster.
type TopicLister interface {
	ListTopics(ctx context.Context) ([]string, error)
	Close() error
}

// SchemaRegistry fetches the latest registered schema of a subject.
type SchemaRegistry interface {
	LatestSchema(ctx context.Context, subject string) (*RegisteredSchema, error)
}

// RegisteredSchema is a registry subject version.
type RegisteredSchema struct {
	Subject    string `json:"subject"`
	Version    int    `json:"version"`
	ID         int    `json:"id"`
	SchemaType string `json:"schemaType"`
	Schema     string `json:"schema"`
}

// =============================================================================
// BROKER LISTER
// =============================================================================

type brokerLister struct {
	bootstrap []string
	dialer    *kafkago.Dialer
}

// NewBrokerLister lists topics through the first reachable bootstrap broker.
// No connection is made until ListTopics.
func NewBrokerLister(cfg *Config) TopicLister {
	return &brokerLister{
		bootstrap: cfg.Bootstrap,
		dialer: &kafkago.Dialer{
			ClientID: cfg.ClientID,
			Timeout:  cfg.DialTimeout,
		},
	}
}

func (l *brokerLister) ListTopics(ctx context.Context) ([]string, error) {
	var errs []error
	for _, addr := range l.bootstrap {
		topics, err := l.listFrom(ctx, addr)
		if err == nil {
			return topics, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (l *brokerLister) listFrom(ctx context.Context, addr string) ([]string, error) {
	conn, err := l.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(partitions))
	topics := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if _, ok := seen[p.Topic]; ok {
			continue
		}
		seen[p.Topic] = struct{}{}
		topics = append(topics, p.Topic)
	}
	return topics, nil
}

func (l *brokerLister) Close() error { return nil }

// =============================================================================
// REGISTRY CLIENT
// =============================================================================

type registryClient struct {
	client *httpclient.Client
}

// NewRegistryClient talks to a Confluent-compatible schema registry.
func NewRegistryClient(client *httpclient.Client) SchemaRegistry {
	return &registryClient{client: client}
}

func (r *registryClient) LatestSchema(ctx context.Context, subject string) (*RegisteredSchema, error) {
	var out RegisteredSchema
	path := "/subjects/" + url.PathEscape(subject) + "/versions/latest"
	if err := r.client.GetJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	if out.Subject == "" {
		out.Subject = subject
	}
	return &out, nil
}
