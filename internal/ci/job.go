// Package ci runs the publish job: guard, provision, build, publish. It owns
// the run record for the whole job and reports the outcome to the metrics
// recorder, the history store and the notifier.
package ci

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/build"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/observability"
	"git.home.luguber.info/inful/docpublish/internal/publish"
)

// Run kinds.
const (
	KindCI      = "ci"
	KindPublish = "publish"
)

// Stage names recorded by the job itself; build stages are recorded by the build.
const (
	StageProvision = "provision"
	StageBuild     = "build"
	StagePublish   = "publish"
)

// Publisher pushes a finished build.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (*publish.Result, error)
}

// Provisioner prepares the environment.
type Provisioner interface {
	Run(ctx context.Context, root string, steps []config.ProvisionStep) error
}

// textfileWriter is implemented by recorders that can export their registry.
type textfileWriter interface {
	WriteTextfile(path string) error
}

// Request describes one job.
type Request struct {
	Config *config.Config
	Paths  config.Paths
	// Repository overrides the CI-provided triggering repository.
	Repository    string
	SkipProvision bool
	Build         build.BuildOptions
}

// Result summarizes a job.
type Result struct {
	RunID       string
	Kind        string
	Decision    publish.Decision
	Skipped     bool
	FailedStage string
	Build       *build.BuildResult
	Publish     *publish.Result
	ExitCode    int
	StartTime   time.Time
	EndTime     time.Time
}

// Job wires the steps together.
type Job struct {
	builder     build.BuildService
	publisher   Publisher
	provisioner Provisioner
	recorder    metrics.Recorder
	history     history.Store
	notifier    notify.Notifier
	getenv      func(string) string
	now         func() time.Time
}

// NewJob creates a job with noop observability.
func NewJob(builder build.BuildService, publisher Publisher, provisioner Provisioner) *Job {
	return &Job{
		builder:     builder,
		publisher:   publisher,
		provisioner: provisioner,
		recorder:    metrics.NoopRecorder{},
		history:     history.NoopStore{},
		notifier:    notify.NoopNotifier{},
		getenv:      os.Getenv,
		now:         time.Now,
	}
}

// WithRecorder sets the metrics recorder.
func (j *Job) WithRecorder(r metrics.Recorder) *Job {
	if r != nil {
		j.recorder = r
	}
	return j
}

// WithHistory sets the run history store.
func (j *Job) WithHistory(h history.Store) *Job {
	if h != nil {
		j.history = h
	}
	return j
}

// WithNotifier sets the run event notifier.
func (j *Job) WithNotifier(n notify.Notifier) *Job {
	if n != nil {
		j.notifier = n
	}
	return j
}

// WithEnv replaces the environment lookup.
func (j *Job) WithEnv(getenv func(string) string) *Job {
	j.getenv = getenv
	return j
}

// Run executes the full job. A repository other than the canonical one turns
// the job into a no-op that succeeds.
func (j *Job) Run(ctx context.Context, req Request) (*Result, error) {
	return j.run(ctx, KindCI, req, func(ctx context.Context, res *Result) error {
		if !req.SkipProvision && len(req.Config.Provision.Steps) > 0 {
			if err := j.stage(ctx, res, StageProvision, func(ctx context.Context) error {
				return j.provisioner.Run(ctx, req.Paths.Root, req.Config.Provision.Steps)
			}); err != nil {
				return err
			}
		}

		err := j.stage(ctx, res, StageBuild, func(ctx context.Context) error {
			br, err := j.builder.Run(ctx, build.BuildRequest{
				Config:  req.Config,
				Paths:   req.Paths,
				RunID:   res.RunID,
				Options: req.Build,
			})
			res.Build = br
			return err
		})
		if err != nil {
			if res.Build != nil && res.Build.FailedStage != "" {
				res.FailedStage = string(res.Build.FailedStage)
			}
			return err
		}
		return j.publish(ctx, req, res)
	})
}

// Publish pushes an existing build, subject to the same guard.
func (j *Job) Publish(ctx context.Context, req Request) (*Result, error) {
	return j.run(ctx, KindPublish, req, func(ctx context.Context, res *Result) error {
		return j.publish(ctx, req, res)
	})
}

func (j *Job) publish(ctx context.Context, req Request, res *Result) error {
	return j.stage(ctx, res, StagePublish, func(ctx context.Context) error {
		pr, err := j.publisher.Publish(ctx, publish.Request{
			Config:     req.Config,
			Paths:      req.Paths,
			Repository: res.Decision.Repository,
		})
		res.Publish = pr
		return err
	})
}

func (j *Job) run(ctx context.Context, kind string, req Request, body func(context.Context, *Result) error) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Kind: kind, StartTime: j.now()}
	ctx = observability.WithKind(observability.WithRunID(ctx, res.RunID), kind)

	if req.Config == nil {
		err := errors.ConfigError("config required").Build()
		res.ExitCode = errors.ExitCode(err)
		return res, err
	}

	guard := publish.Guard{Canonical: req.Config.Publish.CanonicalRepository}
	res.Decision = guard.Check(publish.TriggeringRepository(req.Repository, j.getenv))
	if !res.Decision.Allowed {
		res.Skipped = true
		res.EndTime = j.now()
		observability.InfoContext(ctx, "Not the canonical repository; nothing to do",
			logfields.Repository(res.Decision.Repository),
			slog.String("reason", res.Decision.Reason))
		j.recorder.IncRunOutcome(kind, metrics.OutcomeSkipped)
		return res, nil
	}
	observability.InfoContext(ctx, "Starting job",
		logfields.Repository(res.Decision.Repository),
		slog.String("reason", res.Decision.Reason))

	err := body(ctx, res)
	res.EndTime = j.now()
	res.ExitCode = errors.ExitCode(err)
	j.finish(ctx, req, res, err)
	return res, err
}

// stage runs fn, timing it and recording the result.
func (j *Job) stage(ctx context.Context, res *Result, name string, fn func(ctx context.Context) error) error {
	ctx = observability.WithStage(ctx, name)
	start := j.now()
	err := fn(ctx)
	d := j.now().Sub(start)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
		if res.FailedStage == "" {
			res.FailedStage = name
		}
		observability.ErrorContext(ctx, "Stage failed", logfields.Error(err))
	}
	j.recorder.ObserveStageDuration(name, d)
	j.recorder.IncStageResult(name, result)
	if herr := j.history.AppendStage(ctx, res.RunID, history.Stage{Name: name, Started: start, Duration: d, Result: string(result)}); herr != nil {
		observability.WarnContext(ctx, "Failed to record stage", logfields.Error(herr))
	}
	return err
}

func (j *Job) finish(ctx context.Context, req Request, res *Result, err error) {
	duration := res.EndTime.Sub(res.StartTime)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
	} else {
		j.recorder.SetLastSuccess(res.Kind, res.EndTime)
	}
	j.recorder.ObserveRunDuration(res.Kind, duration)
	j.recorder.IncRunOutcome(res.Kind, outcome)

	run := history.Run{
		ID:         res.RunID,
		Kind:       res.Kind,
		StartedAt:  res.StartTime,
		FinishedAt: res.EndTime,
		Outcome:    string(outcome),
		FailedStep: res.FailedStage,
		ExitCode:   res.ExitCode,
	}
	if res.Publish != nil {
		run.Commit = res.Publish.Commit
	}
	if res.Build != nil {
		run.Figures = len(res.Build.Figures)
	}
	if err != nil {
		run.Message = err.Error()
	}
	if herr := j.history.Record(ctx, run); herr != nil {
		observability.WarnContext(ctx, "Failed to record run", logfields.Error(herr))
	}

	notify.Send(ctx, j.notifier, notify.Event{
		RunID:      res.RunID,
		Kind:       res.Kind,
		Outcome:    string(outcome),
		Repository: res.Decision.Repository,
		Branch:     req.Config.Publish.Branch,
		Commit:     run.Commit,
		FailedStep: res.FailedStage,
		ExitCode:   res.ExitCode,
		Figures:    run.Figures,
		DurationMS: duration.Milliseconds(),
		Timestamp:  res.EndTime,
	})

	j.writeTextfile(ctx, req)

	if err == nil {
		observability.InfoContext(ctx, "Job completed", logfields.Duration(duration))
	}
}

func (j *Job) writeTextfile(ctx context.Context, req Request) {
	path := req.Config.Metrics.Textfile
	w, ok := j.recorder.(textfileWriter)
	if path == "" || !ok {
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.Paths.Root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		observability.WarnContext(ctx, "Failed to create metrics directory", logfields.Path(path), logfields.Error(err))
		return
	}
	if err := w.WriteTextfile(path); err != nil {
		observability.WarnContext(ctx, "Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}
