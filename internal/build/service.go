package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
	"git.home.luguber.info/inful/docpublish/internal/verify"
)

// BuildService is the canonical interface for executing documentation builds.
type BuildService interface {
	// Run executes a complete build: preflight, clean, site, api, assets,
	// relocate, cleanup and verify.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs needed for a build.
type BuildRequest struct {
	Config *config.Config
	Paths  config.Paths

	// RunID correlates the build with an enclosing run. When empty the build
	// owns its run: it generates an id and records the run in history.
	RunID string

	Options BuildOptions
}

// BuildOptions configures build behavior.
type BuildOptions struct {
	// GenerateFigures runs the figure scripts even when figures.generate is off.
	GenerateFigures bool

	// SkipVerify disables the broken image scan for this build.
	SkipVerify bool

	// Quiet suppresses the guidance printed after a successful build.
	Quiet bool
}

// StageName identifies one step of the pipeline.
type StageName string

const (
	StagePreflight StageName = "preflight"
	StageFigures   StageName = "figures"
	StageClean     StageName = "clean"
	StageSite      StageName = "site"
	StageAPI       StageName = "api"
	StageAssets    StageName = "assets"
	StageRelocate  StageName = "relocate"
	StageCleanup   StageName = "cleanup"
	StageVerify    StageName = "verify"
)

// StageResult is the timing and outcome of one stage.
type StageResult struct {
	Name     StageName
	Started  time.Time
	Duration time.Duration
	Result   metrics.ResultLabel
}

// BuildResult contains the outcome of a build.
type BuildResult struct {
	RunID      string
	Status     BuildStatus
	OutputPath string

	Stages      []StageResult
	FailedStage StageName

	// Tools lists the resolved generators with their detected versions.
	Tools []toolchain.Resolved

	// Scripts lists the figure scripts that ran.
	Scripts []string

	// Figures lists the image files copied into the API tree.
	Figures []string

	Verification verify.Report

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Stage returns the result of the named stage and whether it ran.
func (r *BuildResult) Stage(name StageName) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates the build completed successfully.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates the build encountered an error.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the build was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
