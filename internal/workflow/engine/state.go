package engine

import (
	"time"

	"github.com/kingrea/modgraph/internal/workflow"
)

// State captures what the engine persists between runs: the last configuration
// that resolved successfully, so the first pass after a restart still computes
// the reset list against it.
type State struct {
	Generation    uint64                 `json:"generation"`
	ResolutionID  string                 `json:"resolution_id"`
	Configuration workflow.Configuration `json:"configuration"`
	Reset         []string               `json:"reset,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Status summarises the engine for health endpoints and the CLI.
type Status struct {
	Ready        bool      `json:"ready"`
	Generation   uint64    `json:"generation"`
	ResolutionID string    `json:"resolution_id,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at,omitempty"`
	Threads      []string  `json:"threads,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
}
