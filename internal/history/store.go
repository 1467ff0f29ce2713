// Package history persists one row per build or publish run, plus the
// timings of its stages, so past runs can be listed with "docpublish history".
package history

import (
	"context"
	"time"
)

// Run is one invocation of build, publish or ci.
type Run struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	FailedStep string
	ExitCode   int
	Commit     string
	Figures    int
	Message    string
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Stage is the timing of one step of a run.
type Stage struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Result   string
}

// Store defines the interface for persisting and retrieving runs.
type Store interface {
	// Record inserts or replaces a run.
	Record(ctx context.Context, run Run) error
	// AppendStage adds a stage timing to a run.
	AppendStage(ctx context.Context, runID string, stage Stage) error
	// Get returns one run by id.
	Get(ctx context.Context, id string) (Run, error)
	// Stages returns the stages of a run in execution order.
	Stages(ctx context.Context, runID string) ([]Stage, error)
	// Recent returns the newest runs first.
	Recent(ctx context.Context, limit int) ([]Run, error)
	// Close closes the store and releases resources.
	Close() error
}

// NoopStore discards everything; used when history is disabled.
type NoopStore struct{}

func (NoopStore) Record(context.Context, Run) error                { return nil }
func (NoopStore) AppendStage(context.Context, string, Stage) error { return nil }
func (NoopStore) Get(context.Context, string) (Run, error)         { return Run{}, ErrNotFound }
func (NoopStore) Stages(context.Context, string) ([]Stage, error)  { return nil, nil }
func (NoopStore) Recent(context.Context, int) ([]Run, error)       { return nil, nil }
func (NoopStore) Close() error                                     { return nil }
