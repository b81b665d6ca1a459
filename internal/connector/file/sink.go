// Package file implements the record-file connectors: a Sink writing the JSON
// array format used by golden files, and a Source replaying such a file.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/datascienceChris/datahub/internal/config"
	"github.com/datascienceChris/datahub/internal/endpoint"
)

// Type is the connector type of both the file source and the file sink.
const Type = "file"

// Sink streams records into a JSON array file.
type Sink struct {
	filename string
	logger   *log.Logger
	report   *endpoint.SinkRecorder

	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	written int
	closed  bool
}

// OpenSink is the registered sink factory. Config: {filename: path}.
func OpenSink(pctx *endpoint.PipelineContext, params map[string]any) (endpoint.Sink, error) {
	filename := config.String(params, "filename", "path")
	if filename == "" {
		return nil, endpoint.ConfigErrorf("file-sink", "filename is required")
	}
	if unknown := config.UnknownKeys(params, "filename", "path"); len(unknown) > 0 {
		return nil, endpoint.ConfigErrorf("file-sink", "unknown keys %v", unknown)
	}
	return NewSink(pctx, filename)
}

// NewSink creates (or truncates) filename and its parent directories.
func NewSink(pctx *endpoint.PipelineContext, filename string) (*Sink, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	logger := pctx.Logger("file-sink")
	logger.Printf("run %s: writing records to %s", pctx.RunID, filename)
	return &Sink{
		filename: filename,
		logger:   logger,
		report:   endpoint.NewSinkRecorder(),
		f:        f,
		w:        bufio.NewWriter(f),
	}, nil
}

func (s *Sink) Type() string { return Type }

func (s *Sink) Write(ctx context.Context, unit *endpoint.WorkUnit) error {
	data, err := json.MarshalIndent(unit.Record(), "  ", "  ")
	if err != nil {
		s.report.Failure(unit.ID(), fmt.Sprintf("encode record: %v", err))
		return fmt.Errorf("encode %s: %w", unit.ID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.report.Failure(unit.ID(), "sink closed")
		return fmt.Errorf("write %s: sink closed", unit.ID())
	}
	sep := "[\n  "
	if s.written > 0 {
		sep = ",\n  "
	}
	_, err = s.w.WriteString(sep)
	if err == nil {
		_, err = s.w.Write(data)
	}
	if err != nil {
		s.report.Failure(unit.ID(), err.Error())
		return fmt.Errorf("write %s: %w", unit.ID(), err)
	}
	s.written++
	s.report.Written(1)
	return nil
}

func (s *Sink) Report() endpoint.SinkReport {
	return s.report.Snapshot()
}

// Close terminates the array and closes the file. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	tail := "[]\n"
	if s.written > 0 {
		tail = "\n]\n"
	}
	_, err := s.w.WriteString(tail)
	if err == nil {
		err = s.w.Flush()
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.filename, err)
	}
	s.logger.Printf("wrote %d records to %s", s.written, s.filename)
	return nil
}
