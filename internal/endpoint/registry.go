package endpoint

import (
	"fmt"
	"sort"
	"sync"
)

// SourceFactory opens a Source from its recipe configuration. Structural
// problems fail with an error matching ErrConfiguration; reachability is not
// checked.
type SourceFactory func(pctx *PipelineContext, config map[string]any) (Source, error)

// SinkFactory opens a Sink from its recipe configuration.
type SinkFactory func(pctx *PipelineContext, config map[string]any) (Sink, error)

// Registry holds source and sink factories indexed by connector type.
type Registry struct {
	sources map[string]SourceFactory
	sinks   map[string]SinkFactory
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		sinks:   make(map[string]SinkFactory),
	}
}

// RegisterSource adds a source factory.
// Panics if the type is already registered.
func (r *Registry) RegisterSource(typ string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[typ]; exists {
		panic(fmt.Sprintf("source factory already registered: %s", typ))
	}
	r.sources[typ] = factory
}

// RegisterSink adds a sink factory.
// Panics if the type is already registered.
func (r *Registry) RegisterSink(typ string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[typ]; exists {
		panic(fmt.Sprintf("sink factory already registered: %s", typ))
	}
	r.sinks[typ] = factory
}

// Source returns the source factory for typ.
func (r *Registry) Source(typ string) (SourceFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.sources[typ]
	return factory, ok
}

// Sink returns the sink factory for typ.
func (r *Registry) Sink(typ string) (SinkFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.sinks[typ]
	return factory, ok
}

// SourceTypes returns registered source types, sorted.
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sources))
	for typ := range r.sources {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// SinkTypes returns registered sink types, sorted.
func (r *Registry) SinkTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sinks))
	for typ := range r.sinks {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// CreateSource opens a Source of type typ.
func (r *Registry) CreateSource(pctx *PipelineContext, typ string, config map[string]any) (Source, error) {
	factory, ok := r.Source(typ)
	if !ok {
		return nil, ConfigErrorf("source", "unknown type %q", typ)
	}
	return factory(pctx, config)
}

// CreateSink opens a Sink of type typ.
func (r *Registry) CreateSink(pctx *PipelineContext, typ string, config map[string]any) (Sink, error) {
	factory, ok := r.Sink(typ)
	if !ok {
		return nil, ConfigErrorf("sink", "unknown type %q", typ)
	}
	return factory(pctx, config)
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global registry connectors register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterSource adds a source factory to the default registry.
func RegisterSource(typ string, factory SourceFactory) {
	defaultRegistry.RegisterSource(typ, factory)
}

// RegisterSink adds a sink factory to the default registry.
func RegisterSink(typ string, factory SinkFactory) {
	defaultRegistry.RegisterSink(typ, factory)
}
