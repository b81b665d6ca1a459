// Package minio implements the object-store Sink. Records are buffered and
// written as numbered parts under <basePrefix>/<tenant>/<runId>/ in an
// S3-compatible bucket (or a local directory standing in for one).
package minio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/datascienceChris/datahub/internal/endpoint"
)

// SinkType is the registered connector type.
const SinkType = "minio"

const setupTimeout = 30 * time.Second

// Sink writes records to an object store in batches.
type Sink struct {
	cfg    *Config
	store  ObjectStore
	runID  string
	logger *log.Logger
	report *endpoint.SinkRecorder

	mu      sync.Mutex
	pending []Envelope
	part    int
	objects []string
	closed  bool
}

// OpenSink is the registered sink factory.
func OpenSink(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Sink, error) {
	cfg, err := ParseConfig(params)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	return NewSink(ctx, pctx, cfg, store)
}

func openStore(cfg *Config) (ObjectStore, error) {
	if cfg.Local() {
		return NewLocalStore(cfg.RootPath)
	}
	return NewS3Client(cfg)
}

// NewSink checks (or creates) the bucket and returns a Sink writing to store.
func NewSink(ctx context.Context, pctx *endpoint.PipelineContext, cfg *Config, store ObjectStore) (*Sink, error) {
	if cfg.CreateBucket {
		if err := store.EnsureBucket(ctx, cfg.Bucket); err != nil {
			return nil, err
		}
	} else {
		exists, err := store.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket %s not found", cfg.Bucket))
		}
	}
	s := &Sink{
		cfg:    cfg,
		store:  store,
		runID:  pctx.RunID,
		logger: pctx.Logger("minio-sink"),
		report: endpoint.NewSinkRecorder(),
	}
	s.logger.Printf("run %s: writing %s parts to %s", s.runID, cfg.Format, objectURL(cfg.Bucket, cfg.objectPrefix(s.runID)))
	return s, nil
}

func (s *Sink) Type() string { return SinkType }

// Write buffers unit and flushes a part once BatchSize records are pending.
func (s *Sink) Write(ctx context.Context, unit *endpoint.WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.report.Failure(unit.ID(), "sink closed")
		return fmt.Errorf("write %s: sink closed", unit.ID())
	}
	s.pending = append(s.pending, Envelope{WorkUnitID: unit.ID(), RunID: s.runID, Record: unit.Record()})
	if len(s.pending) < s.cfg.BatchSize {
		return nil
	}
	return s.flush(ctx)
}

// flush writes the pending batch as one part. On failure every unit of the
// batch is recorded as failed and the batch is dropped.
func (s *Sink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil

	key := joinPath(s.cfg.objectPrefix(s.runID), fmt.Sprintf("part-%06d.%s", s.part, s.cfg.Format.extension()))
	data, err := encodePart(s.cfg.Format, batch)
	if err != nil {
		err = wrapError(CodeEncodeFailed, false, err)
	} else {
		err = s.store.PutObject(ctx, s.cfg.Bucket, key, data, s.cfg.Format.contentType())
	}
	if err != nil {
		for _, env := range batch {
			s.report.Failure(env.WorkUnitID, err.Error())
		}
		return fmt.Errorf("write part %s: %w", key, err)
	}
	s.part++
	s.objects = append(s.objects, objectURL(s.cfg.Bucket, key))
	s.report.Written(len(batch))
	return nil
}

func (s *Sink) Report() endpoint.SinkReport {
	return s.report.Snapshot()
}

// Objects lists the URLs of the parts written so far.
func (s *Sink) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.objects...)
}

// Close flushes the last partial batch. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	err := s.flush(ctx)
	s.logger.Printf("run %s: wrote %d parts", s.runID, len(s.objects))
	return err
}

// IsRetryable reports whether err carries a retryable object-store code.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.RetryableStatus()
}
