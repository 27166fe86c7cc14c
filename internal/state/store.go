// Package state persists run history and retained draws in an embedded
// SQLite database. A run row is created when a sampler invocation starts,
// completed or failed when it ends; draws are written in one transaction on
// success so a failed run never leaves a partial bundle behind.
package state

import (
	"time"

	"github.com/calder-labs/kiln/internal/draws"
)

// RunStatus is the lifecycle state of a sampling run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one sampler invocation.
type Run struct {
	ID          string
	Model       string
	Status      RunStatus
	Iterations  int
	BurnIn      int
	Chains      int
	Thin        int
	Seed        int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Store is the run/draw persistence boundary.
type Store interface {
	CreateRun(run *Run) error
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	LatestRun(modelName string) (*Run, error)
	SaveBundle(runID string, b *draws.Bundle) error
	LoadBundle(runID string) (*draws.Bundle, error)
	Close() error
}
