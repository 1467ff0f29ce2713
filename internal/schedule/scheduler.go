// Package schedule runs a documentation job periodically, either on a fixed
// interval or on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Task is one scheduled run.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler. A run that is still in progress when
// the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running task.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery registers task to run every interval. Returns the job ID.
func (s *Scheduler) ScheduleEvery(ctx context.Context, name string, interval time.Duration, task Task) (string, error) {
	if interval <= 0 {
		return "", errors.ValidationError("schedule interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	return s.add(ctx, name, gocron.DurationJob(interval), task)
}

// ScheduleCron registers task on a five-field cron expression. Returns the job ID.
func (s *Scheduler) ScheduleCron(ctx context.Context, name, expr string, task Task) (string, error) {
	return s.add(ctx, name, gocron.CronJob(expr, false), task)
}

// Schedule registers task according to cfg: the interval when set, otherwise the cron expression.
func (s *Scheduler) Schedule(ctx context.Context, name string, cfg config.ScheduleConfig, task Task) (string, error) {
	switch {
	case cfg.Interval > 0:
		return s.ScheduleEvery(ctx, name, cfg.Interval, task)
	case cfg.Cron != "":
		return s.ScheduleCron(ctx, name, cfg.Cron, task)
	default:
		return "", errors.ConfigError("no schedule configured: set schedule.interval or schedule.cron").Build()
	}
}

// NextRun returns when the job with id fires next.
func (s *Scheduler) NextRun(id string) (time.Time, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid job id %q: %w", id, err)
	}
	for _, j := range s.scheduler.Jobs() {
		if j.ID() == parsed {
			return j.NextRun()
		}
	}
	return time.Time{}, fmt.Errorf("job %s not found", id)
}

func (s *Scheduler) add(ctx context.Context, name string, def gocron.JobDefinition, task Task) (string, error) {
	job, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(func() { s.execute(ctx, name, task) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "failed to create scheduled job").
			WithContext("name", name).
			Build()
	}
	return job.ID().String(), nil
}

// execute is called by gocron for each tick.
func (s *Scheduler) execute(ctx context.Context, name string, task Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	slog.Info("Executing scheduled job", slog.String("job", name))
	if err := task(ctx); err != nil {
		slog.Error("Scheduled job failed",
			slog.String("job", name),
			logfields.ExitCode(errors.ExitCode(err)),
			logfields.Error(err))
		return
	}
	slog.Info("Scheduled job finished", slog.String("job", name), logfields.Duration(time.Since(start)))
}
