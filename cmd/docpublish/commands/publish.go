package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docpublish/internal/ci"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/provision"
	"git.home.luguber.info/inful/docpublish/internal/publish"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Repository string `help:"Triggering repository as owner/name (defaults to GITHUB_REPOSITORY)"`
}

func (c *PublishCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	job, cleanup := g.newJob(p)
	defer cleanup()

	res, err := job.Publish(g.Context, ci.Request{Config: p.cfg, Paths: p.paths, Repository: c.Repository})
	report(g, res)
	return err
}

// CICmd implements the 'ci' command.
type CICmd struct {
	Repository    string `help:"Triggering repository as owner/name (defaults to GITHUB_REPOSITORY)"`
	SkipProvision bool   `name:"skip-provision" help:"Do not run the provision steps"`
	Figures       bool   `help:"Regenerate the figures before building"`
}

func (c *CICmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	job, cleanup := g.newJob(p)
	defer cleanup()

	bc := BuildCmd{Figures: c.Figures, Quiet: true}
	res, err := job.Run(g.Context, ci.Request{
		Config:        p.cfg,
		Paths:         p.paths,
		Repository:    c.Repository,
		SkipProvision: c.SkipProvision,
		Build:         bc.options(p),
	})
	report(g, res)
	return err
}

// newJob assembles the CI job for p. The returned func releases the history
// store and the notifier connection.
func (g *Global) newJob(p *project) (*ci.Job, func()) {
	store := p.openHistory()
	rec := newRecorder(p.cfg.Metrics.Textfile != "")

	var notifier notify.Notifier = notify.NoopNotifier{}
	if n, err := notify.New(p.cfg.Notify); err != nil {
		slog.Warn("Notifications disabled", logfields.Error(err))
	} else {
		notifier = n
	}

	job := ci.NewJob(
		g.buildService(rec, store),
		publish.NewPublisher().WithEnv(g.Getenv),
		provision.New(g.Runner),
	).
		WithRecorder(rec).
		WithHistory(store).
		WithNotifier(notifier).
		WithEnv(g.Getenv)

	return job, func() {
		_ = notifier.Close()
		closeHistory(store)
	}
}

func report(g *Global, res *ci.Result) {
	if res == nil {
		return
	}
	switch {
	case res.Skipped:
		_, _ = fmt.Fprintf(g.Out, "Skipped: %s\n", res.Decision.Reason)
	case res.Publish != nil && res.ExitCode == 0:
		_, _ = fmt.Fprintf(g.Out, "Published %s to %s (%s)\n", shortHash(res.Publish.Commit), res.Publish.Branch, res.Publish.Remote)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

