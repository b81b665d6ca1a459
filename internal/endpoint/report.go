package endpoint

import (
	"sort"
	"sync"
)

// =============================================================================
// RUN REPORT
// =============================================================================

// RunReport is the per-run account of what a Source saw. Warnings and
// Failures are keyed by resource identifier (or the source type for
// enumeration-level problems).
type RunReport struct {
	ResourcesScanned  int                 `json:"resourcesScanned"`
	WorkUnitsProduced int                 `json:"workUnitsProduced"`
	Filtered          []string            `json:"filtered"`
	Warnings          map[string][]string `json:"warnings"`
	Failures          map[string][]string `json:"failures"`
}

// HasFailures reports whether any failure was recorded.
func (r RunReport) HasFailures() bool { return len(r.Failures) > 0 }

// HasWarnings reports whether any warning was recorded.
func (r RunReport) HasWarnings() bool { return len(r.Warnings) > 0 }

// Clone returns a deep copy.
func (r RunReport) Clone() RunReport {
	out := r
	out.Filtered = append([]string(nil), r.Filtered...)
	out.Warnings = cloneEntries(r.Warnings)
	out.Failures = cloneEntries(r.Failures)
	return out
}

// ReportRecorder is the single mutation point of a RunReport. Safe for
// concurrent use.
type ReportRecorder struct {
	mu     sync.Mutex
	report RunReport
}

// NewReportRecorder creates an empty recorder.
func NewReportRecorder() *ReportRecorder {
	return &ReportRecorder{report: RunReport{
		Warnings: make(map[string][]string),
		Failures: make(map[string][]string),
	}}
}

// Scanned counts one examined resource.
func (r *ReportRecorder) Scanned() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.ResourcesScanned++
}

// Produced counts one emitted WorkUnit.
func (r *ReportRecorder) Produced() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.WorkUnitsProduced++
}

// Dropped records a resource rejected by the pattern filter.
func (r *ReportRecorder) Dropped(resource string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Filtered = append(r.report.Filtered, resource)
}

// Warning records a recoverable problem with key.
func (r *ReportRecorder) Warning(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Warnings[key] = append(r.report.Warnings[key], reason)
}

// Failure records an error for key.
func (r *ReportRecorder) Failure(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures[key] = append(r.report.Failures[key], reason)
}

// Snapshot returns a deep copy of the current report.
func (r *ReportRecorder) Snapshot() RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report.Clone()
}

// =============================================================================
// SINK REPORT
// =============================================================================

// SinkReport accounts for delivery. Warnings and Failures are keyed by
// WorkUnit id.
type SinkReport struct {
	RecordsWritten int                 `json:"recordsWritten"`
	Warnings       map[string][]string `json:"warnings"`
	Failures       map[string][]string `json:"failures"`
}

// HasFailures reports whether any failure was recorded.
func (r SinkReport) HasFailures() bool { return len(r.Failures) > 0 }

// HasWarnings reports whether any warning was recorded.
func (r SinkReport) HasWarnings() bool { return len(r.Warnings) > 0 }

// Clone returns a deep copy.
func (r SinkReport) Clone() SinkReport {
	out := r
	out.Warnings = cloneEntries(r.Warnings)
	out.Failures = cloneEntries(r.Failures)
	return out
}

// SinkRecorder is the single mutation point of a SinkReport.
type SinkRecorder struct {
	mu     sync.Mutex
	report SinkReport
}

// NewSinkRecorder creates an empty recorder.
func NewSinkRecorder() *SinkRecorder {
	return &SinkRecorder{report: SinkReport{
		Warnings: make(map[string][]string),
		Failures: make(map[string][]string),
	}}
}

// Written counts n delivered records.
func (r *SinkRecorder) Written(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.RecordsWritten += n
}

// Warning records a recoverable delivery problem.
func (r *SinkRecorder) Warning(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Warnings[id] = append(r.report.Warnings[id], reason)
}

// Failure records a failed delivery.
func (r *SinkRecorder) Failure(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures[id] = append(r.report.Failures[id], reason)
}

// Snapshot returns a deep copy of the current report.
func (r *SinkRecorder) Snapshot() SinkReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report.Clone()
}

// =============================================================================
// HELPERS
// =============================================================================

// SortedKeys returns the keys of entries in lexical order.
func SortedKeys[V any](entries map[string]V) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneEntries(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
