package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultSkipped ResultLabel = "skipped"
	ResultFailed  ResultLabel = "failed"
)

// OutcomeLabel enumerates the final status of a run.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
	OutcomeSkipped OutcomeLabel = "skipped" // guard rejected the run
)

// Recorder defines observability hooks for build and publish runs.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(kind string, d time.Duration)
	IncRunOutcome(kind string, outcome OutcomeLabel)
	SetFiguresCopied(n int)
	SetLastSuccess(kind string, t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)   {}
func (NoopRecorder) IncRunOutcome(string, OutcomeLabel)         {}
func (NoopRecorder) SetFiguresCopied(int)                       {}
func (NoopRecorder) SetLastSuccess(string, time.Time)           {}
