package minio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/connector/minio"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
)

func testContext(runID string) *endpoint.PipelineContext {
	return endpoint.NewPipelineContext(runID, endpoint.WithLogOutput(io.Discard))
}

func unit(t *testing.T, name string) *endpoint.WorkUnit {
	t.Helper()
	urn, err := core.DatasetURN("kafka", name, "PROD")
	if err != nil {
		t.Fatalf("DatasetURN failed: %v", err)
	}
	rec, _ := core.NewRecord(urn)
	rec.AddAspect(core.Status{})
	wu, err := endpoint.NewWorkUnit("kafka-"+name, rec)
	if err != nil {
		t.Fatalf("NewWorkUnit failed: %v", err)
	}
	return wu
}

func localConfig(t *testing.T, extra map[string]any) map[string]any {
	params := map[string]any{
		"rootPath":   t.TempDir(),
		"bucket":     "catalog",
		"basePrefix": "/metadata/",
		"tenantId":   "acme",
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// =============================================================================
// CONFIG
// =============================================================================

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := minio.ParseConfig(map[string]any{"endpoint_url": "file:///tmp/objects"})
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if !cfg.Local() || cfg.RootPath != "/tmp/objects" {
		t.Errorf("Expected local root /tmp/objects, got %q", cfg.RootPath)
	}
	if cfg.Format != minio.FormatJSONL {
		t.Errorf("Expected jsonl format, got %q", cfg.Format)
	}
	if cfg.BatchSize != 500 || !cfg.CreateBucket {
		t.Errorf("Expected batchSize 500 and createBucket, got %d %v", cfg.BatchSize, cfg.CreateBucket)
	}
	if cfg.TenantID != "default" || cfg.BasePrefix != "metadata" {
		t.Errorf("Unexpected defaults: tenant=%q prefix=%q", cfg.TenantID, cfg.BasePrefix)
	}
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]any
		wantCode string
	}{
		{"unknown key", map[string]any{"rootPath": "/tmp/x", "bukket": "x"}, ""},
		{"bad format", map[string]any{"rootPath": "/tmp/x", "format": "csv"}, ""},
		{"zero batch", map[string]any{"rootPath": "/tmp/x", "batchSize": 0}, ""},
		{"missing endpoint", map[string]any{}, minio.CodeEndpointUnreachable},
		{"missing credentials", map[string]any{"endpointUrl": "http://localhost:9000"}, minio.CodeAuthInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := minio.ParseConfig(tt.params)
			if !errors.Is(err, endpoint.ErrConfiguration) {
				t.Fatalf("Expected ErrConfiguration, got %v", err)
			}
			if tt.wantCode == "" {
				return
			}
			var coded *minio.Error
			if !errors.As(err, &coded) {
				t.Fatalf("Expected a coded error, got %v", err)
			}
			if coded.CodeValue() != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, coded.CodeValue())
			}
		})
	}
}

// =============================================================================
// SINK (LOCAL STORE)
// =============================================================================

func TestSink_WritesJSONLParts(t *testing.T) {
	params := localConfig(t, map[string]any{"batchSize": 2})
	s, err := minio.OpenSink(testContext("run-1"), params)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	sink := s.(*minio.Sink)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if err := sink.Write(ctx, unit(t, name)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if n := sink.Report().RecordsWritten; n != 2 {
		t.Errorf("Expected 2 records flushed before close, got %d", n)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	objects := sink.Objects()
	want := []string{
		"minio://catalog/metadata/acme/run-1/part-000000.jsonl.gz",
		"minio://catalog/metadata/acme/run-1/part-000001.jsonl.gz",
	}
	if strings.Join(objects, " ") != strings.Join(want, " ") {
		t.Fatalf("Expected objects %v, got %v", want, objects)
	}

	store, err := minio.NewLocalStore(params["rootPath"].(string))
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	keys, err := store.ListPrefix(ctx, "catalog", "metadata/acme/run-1/")
	if err != nil {
		t.Fatalf("ListPrefix failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys, got %v", keys)
	}
	data, err := store.GetObject(ctx, "catalog", keys[0])
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	envs, err := minio.DecodeJSONL(data)
	if err != nil {
		t.Fatalf("DecodeJSONL failed: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("Expected 2 envelopes in first part, got %d", len(envs))
	}
	if envs[0].WorkUnitID != "kafka-a" || envs[0].RunID != "run-1" {
		t.Errorf("Unexpected envelope: %+v", envs[0])
	}
	if envs[1].Record.EntityURN != "urn:li:dataset:(urn:li:dataPlatform:kafka,b,PROD)" {
		t.Errorf("Unexpected urn: %s", envs[1].Record.EntityURN)
	}
	if _, ok := envs[1].Record.Aspect(core.AspectStatus); !ok {
		t.Error("Expected status aspect to survive the round trip")
	}
}

func TestSink_WritesParquet(t *testing.T) {
	params := localConfig(t, map[string]any{"format": "parquet"})
	s, err := minio.OpenSink(testContext("run-pq"), params)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if err := s.Write(context.Background(), unit(t, "orders")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(params["rootPath"].(string), "catalog", "metadata", "acme", "run-pq", "part-000000.parquet")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read parquet part: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Error("Expected parquet magic at both ends of the part")
	}
	if n := s.Report().RecordsWritten; n != 1 {
		t.Errorf("Expected 1 record written, got %d", n)
	}
}

func TestSink_EmptyRunWritesNothing(t *testing.T) {
	params := localConfig(t, nil)
	s, err := minio.OpenSink(testContext("run-empty"), params)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if objects := s.(*minio.Sink).Objects(); len(objects) != 0 {
		t.Errorf("Expected no objects, got %v", objects)
	}
}

func TestSink_MissingBucketWithoutCreate(t *testing.T) {
	params := localConfig(t, map[string]any{"createBucket": false})
	_, err := minio.OpenSink(testContext("run-x"), params)
	var coded *minio.Error
	if !errors.As(err, &coded) || coded.Code != minio.CodeBucketNotFound {
		t.Fatalf("Expected %s, got %v", minio.CodeBucketNotFound, err)
	}
	if minio.IsRetryable(err) {
		t.Error("Expected missing bucket to be non-retryable")
	}
}

type failingStore struct {
	minio.ObjectStore
}

func (failingStore) EnsureBucket(context.Context, string) error { return nil }

func (failingStore) PutObject(context.Context, string, string, []byte, string) error {
	return &minio.Error{Code: minio.CodeTimeout, Retryable: true, Err: context.DeadlineExceeded}
}

func TestSink_PutFailureRecordedPerUnit(t *testing.T) {
	cfg, err := minio.ParseConfig(localConfig(t, map[string]any{"batchSize": 2}))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	sink, err := minio.NewSink(context.Background(), testContext("run-f"), cfg, failingStore{})
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	ctx := context.Background()
	if err := sink.Write(ctx, unit(t, "a")); err != nil {
		t.Fatalf("buffered Write failed: %v", err)
	}
	err = sink.Write(ctx, unit(t, "b"))
	if !minio.IsRetryable(err) {
		t.Fatalf("Expected retryable put failure, got %v", err)
	}

	report := sink.Report()
	if report.RecordsWritten != 0 {
		t.Errorf("Expected 0 records written, got %d", report.RecordsWritten)
	}
	for _, id := range []string{"kafka-a", "kafka-b"} {
		if len(report.Failures[id]) != 1 {
			t.Errorf("Expected one failure for %s, got %v", id, report.Failures[id])
		}
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Expected Close with nothing pending to succeed, got %v", err)
	}
}

// =============================================================================
// INTEGRATION
// =============================================================================

func TestSink_Integration_MinIO(t *testing.T) {
	endpointURL := config.Env("MINIO_ENDPOINT", "")
	if endpointURL == "" {
		t.Skip("Skipping integration test: MINIO_ENDPOINT not set")
	}
	params := map[string]any{
		"endpointUrl":     endpointURL,
		"accessKeyId":     config.Env("MINIO_ACCESS_KEY", "minioadmin"),
		"secretAccessKey": config.Env("MINIO_SECRET_KEY", "minioadmin"),
		"bucket":          "datahub-ingest-test",
	}
	s, err := minio.OpenSink(testContext("it-run"), params)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	if err := s.Write(context.Background(), unit(t, "orders")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	t.Logf("Wrote %v", s.(*minio.Sink).Objects())
}
