package pgcatalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/datascienceChris/datahub/internal/connector/pgcatalog"
	"github.com/datascienceChris/datahub/internal/core"
	"github.com/datascienceChris/datahub/internal/endpoint"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func testContext() *endpoint.PipelineContext {
	return endpoint.NewPipelineContext("run-42", endpoint.WithLogOutput(io.Discard))
}

func unit(t *testing.T, name string) *endpoint.WorkUnit {
	t.Helper()
	urn, err := core.DatasetURN("postgres", name, "PROD")
	if err != nil {
		t.Fatalf("DatasetURN failed: %v", err)
	}
	rec, _ := core.NewRecord(urn)
	rec.AddAspect(core.Status{})
	rec.AddAspect(core.DatasetProperties{Name: name})
	wu, err := endpoint.NewWorkUnit("postgres-"+name, rec)
	if err != nil {
		t.Fatalf("NewWorkUnit failed: %v", err)
	}
	return wu
}

// =============================================================================
// CONFIG
// =============================================================================

func TestParseConfig(t *testing.T) {
	cfg, err := pgcatalog.ParseConfig(map[string]any{
		"connection_string": "postgres://localhost/catalog",
		"table":             "ingest.records",
	})
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Table != "ingest.records" || !cfg.EnsureTable || cfg.MaxConns != 4 {
		t.Errorf("Unexpected config: %+v", cfg)
	}

	rejects := []map[string]any{
		{},
		{"connection_string": "postgres://x", "table": "records; DROP TABLE x"},
		{"connection_string": "postgres://x", "max_conns": -1},
		{"connection_string": "postgres://x", "schema": "public"},
	}
	for i, params := range rejects {
		if _, err := pgcatalog.ParseConfig(params); !errors.Is(err, endpoint.ErrConfiguration) {
			t.Errorf("case %d: Expected ErrConfiguration, got %v", i, err)
		}
	}
}

// =============================================================================
// SINK
// =============================================================================

func TestSink_UpsertsByWorkUnitID(t *testing.T) {
	db := &fakeDB{}
	released := 0
	sink := pgcatalog.NewSink(testContext(), "ingest.records", db, func() { released++ })

	wu := unit(t, "public.orders")
	if err := sink.Write(context.Background(), wu); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("Expected 1 exec, got %d", len(db.calls))
	}
	call := db.calls[0]
	for _, fragment := range []string{
		"INSERT INTO ingest.records",
		"ON CONFLICT (id) DO UPDATE",
		"version = records.version + 1",
	} {
		if !strings.Contains(call.sql, fragment) {
			t.Errorf("Expected statement to contain %q, got:\n%s", fragment, call.sql)
		}
	}
	if call.args[0] != "postgres-public.orders" || call.args[2] != "run-42" {
		t.Errorf("Unexpected key args: %v", call.args[:3])
	}
	if diff := cmp.Diff([]string{"status", "datasetProperties"}, call.args[3]); diff != "" {
		t.Errorf("aspect names mismatch (-want +got):\n%s", diff)
	}
	want, _ := json.Marshal(wu.Record())
	if call.args[4] != string(want) {
		t.Errorf("Expected payload %s, got %v", want, call.args[4])
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if released != 1 {
		t.Errorf("Expected pool released once, got %d", released)
	}
	if err := sink.Write(context.Background(), wu); err == nil {
		t.Error("Expected write after close to fail")
	}
}

func TestSink_ExecFailureRecorded(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	sink := pgcatalog.NewSink(testContext(), "metadata_records", db, nil)
	defer sink.Close()

	if err := sink.Write(context.Background(), unit(t, "orders")); err == nil {
		t.Fatal("Expected upsert failure")
	}
	report := sink.Report()
	if report.RecordsWritten != 0 {
		t.Errorf("Expected 0 records written, got %d", report.RecordsWritten)
	}
	if got := report.Failures["postgres-orders"]; len(got) != 1 || got[0] != "connection reset" {
		t.Errorf("Expected connection reset failure, got %v", got)
	}
}

func TestEnsureTable(t *testing.T) {
	db := &fakeDB{}
	if err := pgcatalog.EnsureTable(context.Background(), db, "metadata_records"); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}
	if !strings.Contains(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS metadata_records") {
		t.Errorf("Unexpected DDL:\n%s", db.calls[0].sql)
	}
}

// =============================================================================
// INTEGRATION
// =============================================================================

func TestSink_Integration_IdempotentRedelivery(t *testing.T) {
	dsn := os.Getenv("INGEST_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: INGEST_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	params := map[string]any{"connection_string": dsn, "table": "metadata_records_it"}

	for i := 0; i < 2; i++ {
		sink, err := pgcatalog.OpenSink(testContext(), params)
		if err != nil {
			t.Fatalf("OpenSink failed: %v", err)
		}
		if err := sink.Write(ctx, unit(t, "orders")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		sink.Close()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)
	defer conn.Exec(ctx, "DROP TABLE metadata_records_it")

	var rows, version int
	err = conn.QueryRow(ctx, "SELECT count(*), max(version) FROM metadata_records_it WHERE id = $1", "postgres-orders").Scan(&rows, &version)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows != 1 || version != 2 {
		t.Errorf("Expected 1 row at version 2, got %d rows at version %d", rows, version)
	}
}
