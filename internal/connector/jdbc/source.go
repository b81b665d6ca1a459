// Package jdbc implements the warehouse source: tables and views of a
// PostgreSQL database become dataset records with schema, properties and
// usage statistics.
package jdbc

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/schema"
)

const (
	SourceType = "postgres"
	platform   = "postgres"
)

// Source emits one WorkUnit per admitted table or view.
type Source struct {
	cfg        *Config
	pctx       *endpoint.PipelineContext
	logger     *log.Logger
	catalog    Catalog
	normalizer *schema.Normalizer
	report     *endpoint.ReportRecorder
	lc         *endpoint.Lifecycle

	tables map[string]Table
}

// Open is the registered factory.
func Open(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Source, error) {
	cfg, err := ParseConfig(params)
	if err != nil {
		return nil, err
	}
	catalog, err := OpenCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return New(pctx, cfg, catalog), nil
}

// New assembles a Source over catalog.
func New(pctx *endpoint.PipelineContext, cfg *Config, catalog Catalog) *Source {
	s := &Source{
		cfg:        cfg,
		pctx:       pctx,
		logger:     pctx.Logger(SourceType + "-source"),
		catalog:    catalog,
		normalizer: schema.NewNormalizer(cfg.CacheSize),
		report:     endpoint.NewReportRecorder(),
		lc:         endpoint.NewLifecycle(),
	}
	s.lc.Open()
	return s
}

func (s *Source) Type() string { return SourceType }

func (s *Source) WorkUnits(ctx context.Context) (endpoint.Iterator[*endpoint.WorkUnit], error) {
	if err := s.lc.Begin(); err != nil {
		return nil, err
	}
	tables, err := s.catalog.ListTables(ctx)
	if err != nil {
		s.logger.Printf("failed to list tables: %v", err)
		s.report.Failure(SourceType, fmt.Sprintf("failed to list tables: %v", err))
		return endpoint.NewSliceIterator[*endpoint.WorkUnit](nil), nil
	}

	s.tables = make(map[string]Table, len(tables))
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		id := t.ID()
		if _, seen := s.tables[id]; seen {
			s.logger.Printf("relation %s listed twice, keeping the first", id)
			continue
		}
		s.tables[id] = t
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.logger.Printf("run %s: %d relations listed", s.pctx.RunID, len(ids))
	return endpoint.Guard(s.lc, endpoint.NewResourceIterator(ctx, ids, s.extract)), nil
}

func (s *Source) extract(ctx context.Context, id string) (*endpoint.WorkUnit, bool) {
	s.report.Scanned()
	t := s.tables[id]
	if !s.cfg.SchemaPatterns.Allowed(t.Schema) || !s.cfg.TablePatterns.Allowed(id) {
		s.report.Dropped(id)
		return nil, false
	}
	if t.Kind == "view" && !s.cfg.IncludeViews {
		s.report.Dropped(id)
		return nil, false
	}

	urn, err := core.DatasetURN(platform, id, s.cfg.Env)
	if err != nil {
		s.report.Failure(id, fmt.Sprintf("failed to build urn: %v", err))
		return nil, false
	}
	aspects := []core.Aspect{
		core.Status{Removed: false},
		core.DatasetProperties{
			Name:             t.Name,
			Description:      t.Comment,
			CustomProperties: map[string]string{"kind": t.Kind, "schema": t.Schema},
		},
	}
	if sm, ok := s.schemaMetadata(ctx, t); ok {
		aspects = append(aspects, sm)
	}
	if s.cfg.IncludeUsage && t.Kind == "table" {
		if usage, ok := s.usage(ctx, t); ok {
			aspects = append(aspects, usage)
		}
	}
	rec, err := core.NewRecordWith(urn, aspects...)
	if err != nil {
		s.report.Failure(id, fmt.Sprintf("failed to build record: %v", err))
		return nil, false
	}

	unit, err := endpoint.NewWorkUnit(SourceType+"-"+id, rec)
	if err != nil {
		s.report.Failure(id, err.Error())
		return nil, false
	}
	s.report.Produced()
	return unit, true
}

func (s *Source) schemaMetadata(ctx context.Context, t Table) (core.SchemaMetadata, bool) {
	id := t.ID()
	cols, err := s.catalog.Columns(ctx, t.Schema, t.Name)
	if err != nil {
		s.report.Warning(id, fmt.Sprintf("failed to get columns: %v", err))
		return core.SchemaMetadata{}, false
	}
	raw, err := schema.EncodeColumns(cols)
	if err != nil {
		s.report.Warning(id, fmt.Sprintf("failed to encode columns: %v", err))
		return core.SchemaMetadata{}, false
	}
	res, err := s.normalizer.Normalize(raw, schema.KindColumns)
	if err != nil {
		s.report.Warning(id, fmt.Sprintf("failed to parse columns: %v", err))
		return core.SchemaMetadata{}, false
	}
	for _, diag := range res.Diagnostics {
		s.report.Warning(id, diag)
	}

	stamp := core.NewAuditStamp(s.pctx.Now(), core.ActorETL)
	return core.SchemaMetadata{
		SchemaName: id,
		Platform:   core.PlatformURN(platform),
		Version:    0,
		Hash:       schema.ContentHash(raw),
		PlatformSchema: core.PlatformSchema{
			Kind:           core.PlatformSchemaColumns,
			DocumentSchema: string(raw),
		},
		Fields:       res.Fields,
		Created:      stamp,
		LastModified: stamp,
	}, true
}

func (s *Source) usage(ctx context.Context, t Table) (core.DatasetUsageStatistics, bool) {
	u, err := s.catalog.Usage(ctx, t.Schema, t.Name)
	if err != nil {
		s.report.Warning(t.ID(), fmt.Sprintf("failed to get usage: %v", err))
		return core.DatasetUsageStatistics{}, false
	}
	return core.DatasetUsageStatistics{
		TimestampMillis: s.pctx.Now().UnixMilli(),
		RowCount:        u.RowCount,
		SeqScans:        u.SeqScans,
		IndexScans:      u.IndexScans,
		RowsInserted:    u.RowsInserted,
		RowsUpdated:     u.RowsUpdated,
		RowsDeleted:     u.RowsDeleted,
	}, true
}

func (s *Source) Report() endpoint.RunReport {
	return s.report.Snapshot()
}

// Close releases the connection pool. Safe to call more than once.
func (s *Source) Close() error {
	if !s.lc.Close() {
		return nil
	}
	return s.catalog.Close()
}
