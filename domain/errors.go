package domain

import (
	"fmt"
	"time"
)

// BackendError is a terminal failure reported by the generation backend.
type BackendError struct {
	Backend string
	JobID   string
	Status  string
	Payload string
}

func (e *BackendError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s job %s %s: %s", e.Backend, e.JobID, e.Status, e.Payload)
	}
	return fmt.Sprintf("%s backend %s: %s", e.Backend, e.Status, e.Payload)
}

// TimeoutError is returned when a queued job does not reach a terminal
// state in time.
type TimeoutError struct {
	Backend string
	JobID   string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s job %s timed out after %s", e.Backend, e.JobID, e.After)
}

// ConfigError means the service cannot be built from its configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
