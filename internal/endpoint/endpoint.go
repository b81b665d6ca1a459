// Package endpoint defines the contracts every ingestion connector implements.
//
// Architecture:
//
//	Source   - enumerates platform resources and yields WorkUnits (pull iterator)
//	Sink     - accepts WorkUnits and delivers their records to a destination
//	Registry - factories for both, keyed by connector type
//
// A Source moves through Created -> Opened -> Enumerating -> Closed (see
// Lifecycle). Per-resource problems never abort enumeration; they are recorded
// in the Source's RunReport and the sequence continues.
package endpoint

import "context"

// Source extracts metadata from one platform.
type Source interface {
	// Type returns the registered connector type (e.g., "kafka", "postgres").
	Type() string

	// WorkUnits starts enumeration. It may be called once per opened Source;
	// a second call fails with ErrSourceExhausted and a call after Close with
	// ErrSourceClosed. The returned Iterator must be closed after use.
	WorkUnits(ctx context.Context) (Iterator[*WorkUnit], error)

	// Report returns a snapshot of the run report.
	Report() RunReport

	// Close releases client handles. Idempotent.
	Close() error
}

// Sink delivers WorkUnits to a destination.
type Sink interface {
	// Type returns the registered connector type (e.g., "file", "minio").
	Type() string

	// Write delivers one WorkUnit. Failures are recorded in the SinkReport and
	// returned; the pipeline continues with the next unit.
	Write(ctx context.Context, unit *WorkUnit) error

	// Report returns a snapshot of the sink report.
	Report() SinkReport

	// Close flushes buffered output and releases resources. Idempotent.
	Close() error
}
