package endpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by structural configuration problems
	// detected when a connector is opened. Fatal before the run starts.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrSourceClosed is returned when a closed Source is used.
	ErrSourceClosed = errors.New("source closed")

	// ErrSourceExhausted is returned when WorkUnits is called twice.
	ErrSourceExhausted = errors.New("source already enumerated")
)

// ConfigurationError names the component whose configuration was rejected.
type ConfigurationError struct {
	Component string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: invalid configuration: %s", e.Component, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConfigErrorf builds a ConfigurationError for component.
func ConfigErrorf(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}
