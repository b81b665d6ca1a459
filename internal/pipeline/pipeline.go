// Package pipeline runs one Source into one Sink and decides the outcome of
// the run from their reports.
//
// A run is sequential: one WorkUnit is pulled, written, and only then is the
// next one pulled, so units reach the Sink in emission order. Per-resource
// problems never stop a run; they surface through Status and RaiseOnFailure
// once it has finished.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datascienceChris/datahub/internal/endpoint"
)

// ErrAlreadyRun is returned when Run is called twice on one Pipeline.
var ErrAlreadyRun = errors.New("pipeline already run")

// Pipeline owns a Source and a Sink for the lifetime of one run.
type Pipeline struct {
	RunID string

	source endpoint.Source
	sink   endpoint.Sink
	pctx   *endpoint.PipelineContext
	logger *log.Logger

	mu       sync.Mutex
	ran      bool
	started  time.Time
	finished time.Time
	// writeErrors holds the last Sink.Write error per WorkUnit id.
	writeErrors map[string]string
}

type options struct {
	registry *endpoint.Registry
	ctxOpts  []endpoint.ContextOption
}

// Option configures Create and New.
type Option func(*options)

// WithRegistry resolves connector types against r instead of the default
// registry.
func WithRegistry(r *endpoint.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithClock replaces time.Now for the run and its connectors.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.ctxOpts = append(o.ctxOpts, endpoint.WithClock(clock)) }
}

// WithLogOutput sends pipeline and connector logs to w.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.ctxOpts = append(o.ctxOpts, endpoint.WithLogOutput(w)) }
}

func buildOptions(opts []Option) *options {
	o := &options{registry: endpoint.DefaultRegistry()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create opens the recipe's Source and then its Sink. If the Sink cannot be
// opened the Source is closed before returning.
func Create(recipe *Recipe, opts ...Option) (*Pipeline, error) {
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	runID := recipe.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	pctx := endpoint.NewPipelineContext(runID, o.ctxOpts...)

	source, err := o.registry.CreateSource(pctx, recipe.Source.Type, recipe.Source.Config)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", recipe.Source.Type, err)
	}
	sink, err := o.registry.CreateSink(pctx, recipe.Sink.Type, recipe.Sink.Config)
	if err != nil {
		if cerr := source.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("open sink %s: %w", recipe.Sink.Type, err)
	}
	return newPipeline(pctx, source, sink), nil
}

// New wraps an already opened Source and Sink.
func New(runID string, source endpoint.Source, sink endpoint.Sink, opts ...Option) *Pipeline {
	o := buildOptions(opts)
	return newPipeline(endpoint.NewPipelineContext(runID, o.ctxOpts...), source, sink)
}

func newPipeline(pctx *endpoint.PipelineContext, source endpoint.Source, sink endpoint.Sink) *Pipeline {
	p := &Pipeline{
		RunID:  pctx.RunID,
		source: source,
		sink:   sink,
		pctx:   pctx,
		logger: pctx.Logger("pipeline"),
	}
	p.logger.Printf("run %s: source=%s sink=%s", p.RunID, source.Type(), sink.Type())
	return p
}

// Run drains the Source into the Sink. Source and Sink are closed on every
// path. Sink write failures are logged and counted and the run continues;
// the returned error covers enumeration errors (including ctx expiry) and
// close errors.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return ErrAlreadyRun
	}
	p.ran = true
	p.started = p.pctx.Now()
	p.mu.Unlock()

	defer func() {
		if cerr := p.closeAll(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		p.mu.Lock()
		p.finished = p.pctx.Now()
		p.mu.Unlock()
		p.logger.Printf("run %s: finished with status %s", p.RunID, p.Status())
	}()

	it, err := p.source.WorkUnits(ctx)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", p.source.Type(), err)
	}
	defer it.Close()

	for it.Next() {
		unit := it.Value()
		if werr := p.sink.Write(ctx, unit); werr != nil {
			p.mu.Lock()
			if p.writeErrors == nil {
				p.writeErrors = make(map[string]string)
			}
			p.writeErrors[unit.ID()] = werr.Error()
			p.mu.Unlock()
			p.logger.Printf("run %s: sink write %s failed: %v", p.RunID, unit.ID(), werr)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if ierr := it.Err(); ierr != nil {
		return fmt.Errorf("enumerate %s: %w", p.source.Type(), ierr)
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("run %s interrupted: %w", p.RunID, cerr)
	}
	return nil
}

// Close releases the Source and Sink without running. For pipelines that were
// only created, e.g. to check a recipe.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil
	}
	p.ran = true
	p.mu.Unlock()
	return p.closeAll()
}

func (p *Pipeline) closeAll() error {
	var errs []error
	if err := p.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := p.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	return errors.Join(errs...)
}

// SourceReport returns a snapshot of the Source's report.
func (p *Pipeline) SourceReport() endpoint.RunReport { return p.source.Report() }

// SinkReport returns a snapshot of the Sink's report.
func (p *Pipeline) SinkReport() endpoint.SinkReport { return p.sink.Report() }

// Status derives the run outcome from both reports. A Sink.Write error the
// sink did not record also counts as a failure.
func (p *Pipeline) Status() Status {
	src, snk := p.source.Report(), p.sink.Report()
	switch {
	case src.HasFailures() || snk.HasFailures() || len(p.failedWrites()) > 0:
		return StatusFailure
	case src.HasWarnings() || snk.HasWarnings():
		return StatusWarning
	}
	return StatusSuccess
}

// RaiseOnFailure returns a *FailedError listing every failure when Status
// is StatusFailure, and nil otherwise.
func (p *Pipeline) RaiseOnFailure() error {
	if p.Status() != StatusFailure {
		return nil
	}
	var failures []Failure
	src := p.source.Report()
	for _, key := range endpoint.SortedKeys(src.Failures) {
		for _, reason := range src.Failures[key] {
			failures = append(failures, Failure{Origin: "source", Key: key, Reason: reason})
		}
	}
	snk := p.sink.Report()
	for _, key := range endpoint.SortedKeys(snk.Failures) {
		for _, reason := range snk.Failures[key] {
			failures = append(failures, Failure{Origin: "sink", Key: key, Reason: reason})
		}
	}
	// Write errors the sink did not record itself.
	writes := p.failedWrites()
	for _, key := range endpoint.SortedKeys(writes) {
		if _, recorded := snk.Failures[key]; recorded {
			continue
		}
		failures = append(failures, Failure{Origin: "sink", Key: key, Reason: writes[key]})
	}
	return &FailedError{RunID: p.RunID, Failures: failures}
}

func (p *Pipeline) failedWrites() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.writeErrors))
	for k, v := range p.writeErrors {
		out[k] = v
	}
	return out
}

// Elapsed is the wall time of Run, zero before it finishes.
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished.IsZero() {
		return 0
	}
	return p.finished.Sub(p.started)
}
