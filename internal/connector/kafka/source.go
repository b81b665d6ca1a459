package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	httpclient "github.com/datascienceChris/datahub/internal/connector/http"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/schema"
)

const (
	SourceType = "kafka"
	platform   = "kafka"
)

// Source enumerates broker topics and emits one WorkUnit per admitted topic,
// carrying a Status aspect and, when the registry has one, its schema.
type Source struct {
	cfg        *Config
	pctx       *endpoint.PipelineContext
	logger     *log.Logger
	lister     TopicLister
	registry   SchemaRegistry
	normalizer *schema.Normalizer
	report     *endpoint.ReportRecorder
	lc         *endpoint.Lifecycle
}

// Open is the registered factory: it parses params and builds the broker and
// registry clients without contacting either.
func Open(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Source, error) {
	cfg, err := ParseConfig(params)
	if err != nil {
		return nil, err
	}
	registry := NewRegistryClient(httpclient.NewClient(cfg.Registry))
	return New(pctx, cfg, NewBrokerLister(cfg), registry), nil
}

// New assembles a Source from explicit collaborators.
func New(pctx *endpoint.PipelineContext, cfg *Config, lister TopicLister, registry SchemaRegistry) *Source {
	s := &Source{
		cfg:        cfg,
		pctx:       pctx,
		logger:     pctx.Logger(SourceType + "-source"),
		lister:     lister,
		registry:   registry,
		normalizer: schema.NewNormalizer(cfg.CacheSize),
		report:     endpoint.NewReportRecorder(),
		lc:         endpoint.NewLifecycle(),
	}
	s.lc.Open()
	return s
}

func (s *Source) Type() string { return SourceType }

// WorkUnits lists topics once and extracts them lazily, in name order.
func (s *Source) WorkUnits(ctx context.Context) (endpoint.Iterator[*endpoint.WorkUnit], error) {
	if err := s.lc.Begin(); err != nil {
		return nil, err
	}
	topics, err := s.lister.ListTopics(ctx)
	if err != nil {
		s.logger.Printf("failed to list topics: %v", err)
		s.report.Failure(SourceType, fmt.Sprintf("failed to list topics: %v", err))
		return endpoint.NewSliceIterator[*endpoint.WorkUnit](nil), nil
	}
	topics = append([]string(nil), topics...)
	sort.Strings(topics)
	s.logger.Printf("run %s: %d topics listed", s.pctx.RunID, len(topics))
	return endpoint.Guard(s.lc, endpoint.NewResourceIterator(ctx, topics, s.extract)), nil
}

func (s *Source) extract(ctx context.Context, topic string) (*endpoint.WorkUnit, bool) {
	s.report.Scanned()
	if !s.cfg.TopicPatterns.Allowed(topic) {
		s.report.Dropped(topic)
		return nil, false
	}

	urn, err := core.DatasetURN(platform, topic, s.cfg.Env)
	if err != nil {
		s.report.Failure(topic, fmt.Sprintf("failed to build urn: %v", err))
		return nil, false
	}
	aspects := []core.Aspect{core.Status{Removed: false}}
	if sm, ok := s.schemaMetadata(ctx, topic); ok {
		aspects = append(aspects, sm)
	}
	rec, err := core.NewRecordWith(urn, aspects...)
	if err != nil {
		s.report.Failure(topic, fmt.Sprintf("failed to build record: %v", err))
		return nil, false
	}

	unit, err := endpoint.NewWorkUnit("kafka-"+topic, rec)
	if err != nil {
		s.report.Failure(topic, err.Error())
		return nil, false
	}
	s.report.Produced()
	return unit, true
}

func (s *Source) schemaMetadata(ctx context.Context, topic string) (core.SchemaMetadata, bool) {
	registered, err := s.registry.LatestSchema(ctx, topic+s.cfg.SubjectSuffix)
	if err != nil {
		s.report.Warning(topic, fmt.Sprintf("failed to get schema: %v", err))
		return core.SchemaMetadata{}, false
	}

	kind := schema.ParseKind(registered.SchemaType)
	res, err := s.normalizer.Normalize([]byte(registered.Schema), kind)
	switch {
	case errors.Is(err, schema.ErrUnsupportedKind):
		s.report.Warning(topic, fmt.Sprintf("unable to parse kafka schema type %s", kind))
		return core.SchemaMetadata{}, false
	case err != nil:
		s.report.Warning(topic, fmt.Sprintf("failed to parse schema: %v", err))
		return core.SchemaMetadata{}, false
	}
	for _, diag := range res.Diagnostics {
		s.report.Warning(topic, diag)
	}

	stamp := core.NewAuditStamp(s.pctx.Now(), core.ActorETL)
	return core.SchemaMetadata{
		SchemaName: topic,
		Platform:   core.PlatformURN(platform),
		Version:    0,
		Hash:       schema.ContentHash([]byte(registered.Schema)),
		PlatformSchema: core.PlatformSchema{
			Kind:           core.PlatformSchemaKafka,
			DocumentSchema: registered.Schema,
		},
		Fields:       res.Fields,
		Created:      stamp,
		LastModified: stamp,
	}, true
}

func (s *Source) Report() endpoint.RunReport {
	return s.report.Snapshot()
}

// Close releases the broker lister. Safe to call more than once.
func (s *Source) Close() error {
	if !s.lc.Close() {
		return nil
	}
	return s.lister.Close()
}
