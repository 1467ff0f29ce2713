package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/figures"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/fsops"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/observability"
	"git.home.luguber.info/inful/docpublish/internal/process"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
	"git.home.luguber.info/inful/docpublish/internal/verify"
)

// RunKind is the history and metrics label of a build.
const RunKind = "build"

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	runner   process.Runner
	checker  *toolchain.Checker
	recorder metrics.Recorder
	history  history.Store
	out      io.Writer
	now      func() time.Time
}

// NewBuildService creates a build service that runs real commands and records nothing.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		runner:   process.NewExecRunner(),
		checker:  toolchain.NewChecker(),
		recorder: metrics.NoopRecorder{},
		history:  history.NoopStore{},
		out:      os.Stdout,
		now:      time.Now,
	}
}

// WithRunner sets the subprocess runner.
func (s *DefaultBuildService) WithRunner(r process.Runner) *DefaultBuildService {
	s.runner = r
	return s
}

// WithChecker sets the preflight tool checker.
func (s *DefaultBuildService) WithChecker(c *toolchain.Checker) *DefaultBuildService {
	s.checker = c
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithHistory sets the run history store.
func (s *DefaultBuildService) WithHistory(h history.Store) *DefaultBuildService {
	if h == nil {
		h = history.NoopStore{}
	}
	s.history = h
	return s
}

// WithOutput sets where the post-build guidance is printed.
func (s *DefaultBuildService) WithOutput(w io.Writer) *DefaultBuildService {
	s.out = w
	return s
}

// Run executes the complete build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := s.now()
	owned := req.RunID == ""
	if owned {
		req.RunID = uuid.NewString()
	}

	result := &BuildResult{
		RunID:      req.RunID,
		StartTime:  startTime,
		OutputPath: req.Paths.OutputRoot,
	}

	ctx = observability.WithRunID(ctx, req.RunID)
	if owned {
		ctx = observability.WithKind(ctx, RunKind)
	}

	var err error
	if req.Config == nil {
		err = errors.ConfigError("config required").Build()
	} else {
		err = s.execute(ctx, req, result)
	}

	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(startTime)
	switch {
	case err == nil:
		result.Status = BuildStatusSuccess
	case stderrors.Is(err, context.Canceled):
		result.Status = BuildStatusCancelled
	default:
		result.Status = BuildStatusFailed
	}

	s.recordOutcome(ctx, result, err, owned)

	if err != nil {
		return result, err
	}
	observability.InfoContext(ctx, "Build completed",
		logfields.Path(result.OutputPath),
		logfields.Count(len(result.Figures)),
		logfields.Duration(result.Duration))
	if !req.Options.Quiet {
		s.printGuidance(req)
	}
	return result, nil
}

func (s *DefaultBuildService) execute(ctx context.Context, req BuildRequest, result *BuildResult) error {
	cfg, paths := req.Config, req.Paths
	generate := cfg.Figures.Generate || req.Options.GenerateFigures

	// Stage 1: preflight. Nothing on disk changes before every tool resolves.
	if err := s.stage(ctx, result, StagePreflight, func(ctx context.Context) error {
		tools := toolchain.BuildTools(cfg)
		if generate {
			tools = append(tools, toolchain.Tool{Name: "figure script interpreter", Command: cfg.Tools.Python})
		}
		report, err := s.checker.Check(ctx, tools...)
		result.Tools = report.Tools
		return err
	}); err != nil {
		return err
	}
	s.appendHistory(ctx, result.RunID, s.preflightRecord(result))

	// Stage 2: figure scripts (optional), writing into the figure source folder.
	if generate {
		if err := s.stage(ctx, result, StageFigures, func(ctx context.Context) error {
			ran, err := figures.NewGenerator(s.runner, cfg.Tools.Python).Generate(ctx, paths.FigureSource, cfg.Figures.Scripts)
			result.Scripts = ran
			return err
		}); err != nil {
			return err
		}
	} else {
		s.skip(ctx, result, StageFigures)
	}

	// Stage 3: clean output root.
	if err := s.stage(ctx, result, StageClean, func(context.Context) error {
		return fsops.Recreate(paths.OutputRoot)
	}); err != nil {
		return err
	}

	// Stage 4: general site.
	if err := s.stage(ctx, result, StageSite, func(ctx context.Context) error {
		_, err := s.runner.Run(ctx, SiteInvocation(cfg, paths))
		return err
	}); err != nil {
		return err
	}

	// Stage 5: API reference into the scratch directory.
	if err := s.stage(ctx, result, StageAPI, func(ctx context.Context) error {
		if _, err := s.runner.Run(ctx, APIInvocation(cfg, paths)); err != nil {
			return err
		}
		if info, err := os.Stat(paths.APIStagingDir); err != nil || !info.IsDir() {
			return errors.BuildError("API generator produced no output for package "+paths.Package).
				WithContext("path", paths.APIStagingDir).
				Build()
		}
		return nil
	}); err != nil {
		return err
	}

	// Stage 6: figure assets into the API tree.
	if err := s.stage(ctx, result, StageAssets, func(ctx context.Context) error {
		copied, err := s.copyFigures(ctx, cfg, paths)
		result.Figures = copied
		return err
	}); err != nil {
		return err
	}

	// Stage 7: relocate the API tree next to the site output.
	if err := s.stage(ctx, result, StageRelocate, func(context.Context) error {
		return fsops.Move(paths.APIStagingDir, paths.APIDir)
	}); err != nil {
		return err
	}

	// Stage 8: drop the scratch parent, which must be empty by now.
	if err := s.stage(ctx, result, StageCleanup, func(context.Context) error {
		return fsops.RemoveEmptyDir(paths.APITempDir)
	}); err != nil {
		return err
	}

	// Stage 9: broken image scan.
	if !cfg.Verify.IsEnabled() || req.Options.SkipVerify {
		s.skip(ctx, result, StageVerify)
		return nil
	}
	return s.stage(ctx, result, StageVerify, func(ctx context.Context) error {
		report, err := s.verify(paths)
		result.Verification = report
		if err != nil {
			return err
		}
		for _, f := range report.Findings {
			observability.WarnContext(ctx, "Broken image reference", slog.String("kind", string(f.Kind)), logfields.Path(f.File), slog.String("reference", f.Reference))
		}
		if !report.OK() && cfg.Verify.Strict {
			return errors.ValidationError(fmt.Sprintf("%d broken image reference(s)", len(report.Findings))).
				WithContext("first", report.Findings[0].String()).
				Build()
		}
		return nil
	})
}

// SiteInvocation is the static-site generator command for cfg.
func SiteInvocation(cfg *config.Config, paths config.Paths) process.Invocation {
	args := []string{"build", "--config-file", paths.SiteConfig, "--site-dir", paths.OutputRoot}
	return process.Invocation{
		Tool:    cfg.Tools.Site.Command,
		Command: cfg.Tools.Site.Command,
		Args:    append(args, cfg.Tools.Site.Args...),
		Dir:     paths.Root,
	}
}

// APIInvocation is the API-doc generator command for cfg. It runs from the
// package's parent directory so the package imports by name.
func APIInvocation(cfg *config.Config, paths config.Paths) process.Invocation {
	args := []string{"--html", "--config", "sort_identifiers=False", "--output-dir", paths.APITempDir}
	args = append(args, cfg.Tools.API.Args...)
	args = append(args, paths.Package)

	pythonPath := paths.PackageParent
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		pythonPath += string(os.PathListSeparator) + existing
	}
	return process.Invocation{
		Tool:    cfg.Tools.API.Command,
		Command: cfg.Tools.API.Command,
		Args:    args,
		Dir:     paths.PackageParent,
		Env:     []string{"PYTHONPATH=" + pythonPath},
	}
}

func (s *DefaultBuildService) copyFigures(ctx context.Context, cfg *config.Config, paths config.Paths) ([]string, error) {
	if err := fsops.MkdirAll(paths.StagedImageDir()); err != nil {
		return nil, err
	}
	copied, err := fsops.CopyMatching(paths.FigureSource, paths.FigureGlob, paths.StagedImageDir())
	switch {
	case stderrors.Is(err, fsops.ErrSourceMissing):
		if cfg.Figures.Require {
			return nil, errors.ValidationError("figure source folder does not exist: "+paths.FigureSource).
				WithCause(err).
				Build()
		}
		observability.WarnContext(ctx, "Figure source folder missing; image folder left empty", logfields.Path(paths.FigureSource))
		return nil, nil
	case err != nil:
		return copied, err
	}

	if len(copied) == 0 {
		if cfg.Figures.Require {
			return nil, errors.ValidationError(fmt.Sprintf("no files matching %s in %s", paths.FigureGlob, paths.FigureSource)).Build()
		}
		observability.WarnContext(ctx, "No figures matched; image folder left empty",
			logfields.Path(paths.FigureSource), slog.String("pattern", paths.FigureGlob))
		return copied, nil
	}
	s.recorder.SetFiguresCopied(len(copied))
	observability.InfoContext(ctx, "Copied figures",
		logfields.Source(paths.FigureSource),
		logfields.Target(paths.ImageDir()),
		logfields.Count(len(copied)))
	return copied, nil
}

func (s *DefaultBuildService) verify(paths config.Paths) (verify.Report, error) {
	report, err := verify.HTMLImages(paths.APIDir)
	if err != nil {
		return report, errors.WrapError(err, errors.CategoryBuild, "failed to scan API reference").Build()
	}
	md, err := verify.MarkdownImages(verify.DocsDir(paths.SiteConfig))
	if err != nil {
		return report, errors.WrapError(err, errors.CategoryBuild, "failed to scan documentation sources").Build()
	}
	report.Merge(md)
	return report, nil
}

// stage runs fn as the named stage, timing it and recording the outcome.
func (s *DefaultBuildService) stage(ctx context.Context, result *BuildResult, name StageName, fn func(ctx context.Context) error) error {
	ctx = observability.WithStage(ctx, string(name))
	started := s.now()
	observability.DebugContext(ctx, "Stage started")

	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	d := s.now().Sub(started)

	label := metrics.ResultSuccess
	if err != nil {
		label = metrics.ResultFailed
		result.FailedStage = name
	}
	s.recorder.ObserveStageDuration(string(name), d)
	s.recorder.IncStageResult(string(name), label)
	result.Stages = append(result.Stages, StageResult{Name: name, Started: started, Duration: d, Result: label})
	// Preflight is recorded once the tools resolved; a failed preflight writes nothing.
	if name != StagePreflight {
		s.appendHistory(ctx, result.RunID, history.Stage{Name: string(name), Started: started, Duration: d, Result: string(label)})
	}

	if err != nil {
		observability.ErrorContext(ctx, "Stage failed", logfields.Duration(d), logfields.Error(err))
		return err
	}
	observability.DebugContext(ctx, "Stage completed", logfields.Duration(d))
	return nil
}

// preflightRecord returns the buffered history record of the preflight stage.
func (s *DefaultBuildService) preflightRecord(result *BuildResult) history.Stage {
	for _, st := range result.Stages {
		if st.Name == StagePreflight {
			return history.Stage{Name: string(st.Name), Started: st.Started, Duration: st.Duration, Result: string(st.Result)}
		}
	}
	return history.Stage{Name: string(StagePreflight), Started: s.now(), Result: string(metrics.ResultSuccess)}
}

func (s *DefaultBuildService) skip(ctx context.Context, result *BuildResult, name StageName) {
	s.recorder.IncStageResult(string(name), metrics.ResultSkipped)
	result.Stages = append(result.Stages, StageResult{Name: name, Started: s.now(), Result: metrics.ResultSkipped})
	s.appendHistory(ctx, result.RunID, history.Stage{Name: string(name), Started: s.now(), Result: string(metrics.ResultSkipped)})
}

func (s *DefaultBuildService) appendHistory(ctx context.Context, runID string, st history.Stage) {
	if err := s.history.AppendStage(ctx, runID, st); err != nil {
		observability.WarnContext(ctx, "Failed to record stage", logfields.Error(err))
	}
}

func (s *DefaultBuildService) recordOutcome(ctx context.Context, result *BuildResult, err error, owned bool) {
	s.recorder.ObserveRunDuration(RunKind, result.Duration)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
	} else {
		s.recorder.SetLastSuccess(RunKind, result.EndTime)
	}
	s.recorder.IncRunOutcome(RunKind, outcome)

	if !owned || result.FailedStage == StagePreflight {
		return
	}
	run := history.Run{
		ID:         result.RunID,
		Kind:       RunKind,
		StartedAt:  result.StartTime,
		FinishedAt: result.EndTime,
		Outcome:    string(outcome),
		FailedStep: string(result.FailedStage),
		ExitCode:   errors.ExitCode(err),
		Figures:    len(result.Figures),
	}
	if err != nil {
		run.Message = err.Error()
	}
	if herr := s.history.Record(ctx, run); herr != nil {
		observability.WarnContext(ctx, "Failed to record run", logfields.Error(herr))
	}
}

// printGuidance tells the user where the result is and how to preview it.
func (s *DefaultBuildService) printGuidance(req BuildRequest) {
	if s.out == nil {
		return
	}
	index := filepath.ToSlash(filepath.Join(req.Paths.OutputRoot, "index.html"))
	if !strings.HasPrefix(index, "/") {
		index = "/" + index
	}
	site := req.Config.Tools.Site.Command
	_, _ = fmt.Fprintf(s.out, "Documentation written to %s\n", req.Paths.OutputRoot)
	_, _ = fmt.Fprintf(s.out, "  open file://%s in a browser\n", index)
	_, _ = fmt.Fprintf(s.out, "  or preview the site with: %s serve --config-file %s\n", site, req.Paths.SiteConfig)
	_, _ = fmt.Fprintln(s.out, "  or serve the complete output with: docpublish serve")
}
