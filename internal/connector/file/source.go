package file

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/pattern"
)

// Source replays a record file written by Sink (or a golden file).
type Source struct {
	filename string
	patterns *pattern.AllowDeny
	logger   *log.Logger
	report   *endpoint.ReportRecorder
	lc       *endpoint.Lifecycle

	records map[string]*core.MetadataRecord
}

// OpenSource is the registered source factory.
//
//	filename: records.json
//	urn_patterns: {allow: [...], deny: [...]}
func OpenSource(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Source, error) {
	if unknown := config.UnknownKeys(params, "filename", "path", "urn_patterns", "urnPatterns"); len(unknown) > 0 {
		return nil, endpoint.ConfigErrorf("file-source", "unknown keys %v", unknown)
	}
	filename := config.String(params, "filename", "path")
	if filename == "" {
		return nil, endpoint.ConfigErrorf("file-source", "filename is required")
	}
	patternParams, err := config.Map(params, "urn_patterns", "urnPatterns")
	if err != nil {
		return nil, &endpoint.ConfigurationError{Component: "file-source", Reason: "invalid value", Err: err}
	}
	patterns, err := pattern.FromConfig(patternParams, pattern.AllowAll())
	if err != nil {
		return nil, &endpoint.ConfigurationError{Component: "file-source", Reason: "urn_patterns", Err: err}
	}
	return NewSource(pctx, filename, patterns), nil
}

// NewSource replays filename. The file is read when WorkUnits is called.
func NewSource(pctx *endpoint.PipelineContext, filename string, patterns *pattern.AllowDeny) *Source {
	if patterns == nil {
		patterns = pattern.AllowAll()
	}
	s := &Source{
		filename: filename,
		patterns: patterns,
		logger:   pctx.Logger("file-source"),
		report:   endpoint.NewReportRecorder(),
		lc:       endpoint.NewLifecycle(),
	}
	s.lc.Open()
	return s
}

func (s *Source) Type() string { return Type }

// WorkUnits reads the file once and replays its records lazily, in file order.
func (s *Source) WorkUnits(ctx context.Context) (endpoint.Iterator[*endpoint.WorkUnit], error) {
	if err := s.lc.Begin(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filename)
	var records []*core.MetadataRecord
	if err == nil {
		records, err = core.UnmarshalRecords(data)
	}
	if err != nil {
		s.logger.Printf("failed to read %s: %v", s.filename, err)
		s.report.Failure(Type, fmt.Sprintf("failed to read %s: %v", s.filename, err))
		return endpoint.NewSliceIterator[*endpoint.WorkUnit](nil), nil
	}

	base := filepath.Base(s.filename)
	s.records = make(map[string]*core.MetadataRecord, len(records))
	ids := make([]string, 0, len(records))
	for i, rec := range records {
		id := fmt.Sprintf("file://%s:%d", base, i)
		s.records[id] = rec
		ids = append(ids, id)
	}
	return endpoint.Guard(s.lc, endpoint.NewResourceIterator(ctx, ids, s.replay)), nil
}

func (s *Source) replay(_ context.Context, id string) (*endpoint.WorkUnit, bool) {
	s.report.Scanned()
	rec := s.records[id]
	if rec == nil {
		s.report.Failure(strings.TrimPrefix(id, "file://"), "null record")
		return nil, false
	}
	if !s.patterns.Allowed(rec.EntityURN) {
		s.report.Dropped(rec.EntityURN)
		return nil, false
	}
	unit, err := endpoint.NewWorkUnit(id, rec)
	if err != nil {
		s.report.Failure(rec.EntityURN, err.Error())
		return nil, false
	}
	s.report.Produced()
	return unit, true
}

func (s *Source) Report() endpoint.RunReport {
	return s.report.Snapshot()
}

func (s *Source) Close() error {
	s.lc.Close()
	return nil
}
