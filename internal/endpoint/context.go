package endpoint

import (
	"io"
	"log"
	"os"
	"time"
)

// PipelineContext is shared by the Source and Sink of one run.
type PipelineContext struct {
	RunID string

	clock  func() time.Time
	logOut io.Writer
}

// ContextOption configures a PipelineContext.
type ContextOption func(*PipelineContext)

// WithClock replaces time.Now, e.g. for golden-stable audit stamps.
func WithClock(clock func() time.Time) ContextOption {
	return func(p *PipelineContext) { p.clock = clock }
}

// WithLogOutput sends component logs to w.
func WithLogOutput(w io.Writer) ContextOption {
	return func(p *PipelineContext) { p.logOut = w }
}

// NewPipelineContext creates a context for runID.
func NewPipelineContext(runID string, opts ...ContextOption) *PipelineContext {
	p := &PipelineContext{RunID: runID, clock: time.Now, logOut: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the run clock's current time.
func (p *PipelineContext) Now() time.Time {
	return p.clock()
}

// Logger returns a logger prefixed with "[component] ".
func (p *PipelineContext) Logger(component string) *log.Logger {
	return log.New(p.logOut, "["+component+"] ", log.LstdFlags)
}
