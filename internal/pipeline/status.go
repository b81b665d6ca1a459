package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome of a finished run.
type Status int

const (
	StatusSuccess Status = iota
	StatusWarning
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusFailure:
		return "failure"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrPipelineFailed is matched by the error RaiseOnFailure returns.
var ErrPipelineFailed = errors.New("pipeline failed")

// Failure is one failure entry of a Source or Sink report.
type Failure struct {
	Origin string // "source" or "sink"
	Key    string
	Reason string
}

// FailedError aggregates the failures of a run.
type FailedError struct {
	RunID    string
	Failures []Failure
}

func (e *FailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline run %s failed with %d failure(s)", e.RunID, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s %s: %s", f.Origin, f.Key, f.Reason)
	}
	return b.String()
}

func (e *FailedError) Is(target error) bool { return target == ErrPipelineFailed }

// Keys lists the failing keys in report order, without duplicates.
func (e *FailedError) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range e.Failures {
		if !seen[f.Key] {
			seen[f.Key] = true
			keys = append(keys, f.Key)
		}
	}
	return keys
}
