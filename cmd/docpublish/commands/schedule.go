package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/build"
	"git.home.luguber.info/inful/docpublish/internal/ci"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/schedule"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	Every      string `help:"Override schedule.interval (e.g. 30m)"`
	Cron       string `help:"Override schedule.cron (five fields)"`
	Publish    bool   `help:"Run the full CI job instead of a plain build"`
	Repository string `help:"Triggering repository for the publish guard"`
}

func (c *ScheduleCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	cfg := p.cfg.Schedule
	if c.Every != "" || c.Cron != "" {
		if err := c.override(&cfg); err != nil {
			return err
		}
	}
	publishing := c.Publish || cfg.Publish

	job, cleanup := g.newJob(p)
	defer cleanup()
	task := func(ctx context.Context) error {
		if publishing {
			_, err := job.Run(ctx, ci.Request{Config: p.cfg, Paths: p.paths, Repository: c.Repository, SkipProvision: true,
				Build: build.BuildOptions{GenerateFigures: p.cfg.Figures.Generate, Quiet: true}})
			return err
		}
		store := p.openHistory()
		defer closeHistory(store)
		rec := newRecorder(p.cfg.Metrics.Textfile != "")
		_, err := g.buildService(rec, store).Run(ctx, build.BuildRequest{Config: p.cfg, Paths: p.paths,
			Options: build.BuildOptions{GenerateFigures: p.cfg.Figures.Generate, Quiet: true}})
		writeTextfile(p, rec)
		return err
	}

	s, err := schedule.NewScheduler()
	if err != nil {
		return err
	}
	name := "build"
	if publishing {
		name = "ci"
	}
	id, err := s.Schedule(g.Context, name, cfg, task)
	if err != nil {
		_ = s.Stop()
		return err
	}
	s.Start()
	if next, err := s.NextRun(id); err == nil {
		_, _ = fmt.Fprintf(g.Out, "Scheduled %s; next run at %s (Ctrl+C to stop)\n", name, next.Format("2006-01-02 15:04:05"))
	}

	<-g.Context.Done()
	return s.Stop()
}

func (c *ScheduleCmd) override(cfg *config.ScheduleConfig) error {
	cfg.Interval, cfg.Cron = 0, c.Cron
	if c.Every != "" {
		d, err := time.ParseDuration(c.Every)
		if err != nil {
			return errors.ValidationError("invalid --every duration").WithCause(err).Build()
		}
		cfg.Interval = d
	}
	return nil
}
