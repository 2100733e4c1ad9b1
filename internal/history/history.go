// Package history keeps a local record of publish runs.
//
// Runs are not idempotent: every run creates new suffix-qualified resources.
// The history is how an operator finds what earlier runs created.
package history

import (
	"time"
)

// Run status values
const (
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled_back"
)

// Store defines the interface for run history storage
type Store interface {
	// Save records a run
	Save(run *Run) error

	// Get returns a run by ID
	Get(id string) (*Run, error)

	// List returns runs newest first; limit <= 0 means all
	List(limit int) ([]Run, error)

	// Cleanup removes runs older than the given duration
	Cleanup(olderThan time.Duration) (int, error)
}

// Run is one publish invocation
type Run struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Sink       string        `json:"sink"`
	Suffix     string        `json:"suffix"`
	NamePrefix string        `json:"name_prefix,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	User       string        `json:"user,omitempty"`
	ConfigPath string        `json:"config_path,omitempty"`

	// Outputs maps secret name to identifier, as printed by the run
	Outputs map[string]string `json:"outputs,omitempty"`
	// Published lists names whose resources were created by this run
	Published []string `json:"published,omitempty"`
	// PassedThrough lists names that referenced existing resources
	PassedThrough []string `json:"passed_through,omitempty"`
	// RolledBack lists identifiers deleted after a failure
	RolledBack []string `json:"rolled_back,omitempty"`
}
