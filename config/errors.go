package config

import "fmt"

// ConfigError reports an unusable configuration. It is always fatal: the
// simulation is never started once a ConfigError is returned.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ResourceInitError reports that a synchronization resource could not be
// created. It aborts the run before any worker is spawned.
type ResourceInitError struct {
	Resource string
	Err      error
}

func (e *ResourceInitError) Error() string {
	return fmt.Sprintf("cannot initialize %s: %v", e.Resource, e.Err)
}

func (e *ResourceInitError) Unwrap() error {
	return e.Err
}
