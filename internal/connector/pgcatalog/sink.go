// Package pgcatalog implements a Sink that upserts records into a Postgres
// catalog table. Rows are keyed by WorkUnit id, so re-delivering a run
// overwrites instead of duplicating.
package pgcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datascienceChris/datahub/internal/endpoint"
)

// SinkType is the registered connector type.
const SinkType = "postgres-catalog"

const connectTimeout = 30 * time.Second

// Execer is the part of *pgxpool.Pool the sink uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink upserts records into the catalog table.
type Sink struct {
	table   string
	db      Execer
	release func()
	runID   string
	logger  *log.Logger
	report  *endpoint.SinkRecorder

	mu     sync.Mutex
	closed bool
}

// OpenSink is the registered sink factory. It connects, and creates the
// table unless ensure_table is false.
func OpenSink(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Sink, error) {
	cfg, err := ParseConfig(params)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, &endpoint.ConfigurationError{Component: SinkType, Reason: "malformed connection_string", Err: err}
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect catalog database: %w", err)
	}
	if cfg.EnsureTable {
		if err := EnsureTable(ctx, pool, cfg.Table); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return NewSink(pctx, cfg.Table, pool, pool.Close), nil
}

// NewSink returns a Sink writing through db. release, when non-nil, is
// called once on Close.
func NewSink(pctx *endpoint.PipelineContext, table string, db Execer, release func()) *Sink {
	s := &Sink{
		table:   table,
		db:      db,
		release: release,
		runID:   pctx.RunID,
		logger:  pctx.Logger("catalog-sink"),
		report:  endpoint.NewSinkRecorder(),
	}
	s.logger.Printf("run %s: upserting records into %s", s.runID, table)
	return s
}

// EnsureTable creates the catalog table if it is missing.
func EnsureTable(ctx context.Context, db Execer, table string) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id text PRIMARY KEY,
  entity_urn text NOT NULL,
  run_id text NOT NULL,
  aspect_names text[] NOT NULL,
  payload jsonb NOT NULL,
  version bigint NOT NULL DEFAULT 1,
  updated_at timestamptz NOT NULL DEFAULT now()
);`, table)
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (s *Sink) Type() string { return SinkType }

func (s *Sink) upsertStatement() string {
	columns := []string{"id", "entity_urn", "run_id", "aspect_names", "payload"}
	sets := []string{
		"entity_urn = EXCLUDED.entity_urn",
		"run_id = EXCLUDED.run_id",
		"aspect_names = EXCLUDED.aspect_names",
		"payload = EXCLUDED.payload",
		fmt.Sprintf("version = %s.version + 1", unqualified(s.table)),
		"updated_at = now()",
	}
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5::jsonb)
ON CONFLICT (id) DO UPDATE SET %s`,
		s.table, strings.Join(columns, ", "), strings.Join(sets, ", "))
}

// Write upserts one record.
func (s *Sink) Write(ctx context.Context, unit *endpoint.WorkUnit) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.report.Failure(unit.ID(), "sink closed")
		return fmt.Errorf("write %s: sink closed", unit.ID())
	}

	rec := unit.Record()
	payload, err := json.Marshal(rec)
	if err != nil {
		s.report.Failure(unit.ID(), fmt.Sprintf("encode record: %v", err))
		return fmt.Errorf("encode %s: %w", unit.ID(), err)
	}
	if _, err := s.db.Exec(ctx, s.upsertStatement(), unit.ID(), rec.EntityURN, s.runID, rec.AspectNames(), string(payload)); err != nil {
		s.report.Failure(unit.ID(), err.Error())
		return fmt.Errorf("upsert %s: %w", unit.ID(), err)
	}
	s.report.Written(1)
	return nil
}

func (s *Sink) Report() endpoint.SinkReport {
	return s.report.Snapshot()
}

// Close releases the connection pool. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.release != nil {
		s.release()
	}
	s.logger.Printf("run %s: upserted %d records", s.runID, s.report.Snapshot().RecordsWritten)
	return nil
}

// unqualified strips a schema prefix; ON CONFLICT refers to the target by
// its bare name.
func unqualified(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}
