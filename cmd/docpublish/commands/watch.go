package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docpublish/internal/build"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/server"
	"git.home.luguber.info/inful/docpublish/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Figures    bool `help:"Regenerate the figures on every rebuild"`
	SkipVerify bool `name:"skip-verify" help:"Skip the broken image reference scan"`
	NoInitial  bool `name:"no-initial" help:"Do not build before watching"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	return runWatch(g, p, newRecorder(p.cfg.Metrics.Textfile != ""), nil, *c)
}

// runWatch builds once, then rebuilds on change until the context ends.
// Build failures are reported and watching continues.
func runWatch(g *Global, p *project, rec metrics.Recorder, srv *server.Server, opts WatchCmd) error {
	store := p.openHistory()
	defer closeHistory(store)
	svc := g.buildService(rec, store)

	rebuild := func(ctx context.Context) error {
		res, err := svc.Run(ctx, build.BuildRequest{
			Config: p.cfg,
			Paths:  p.paths,
			Options: build.BuildOptions{
				GenerateFigures: opts.Figures || p.cfg.Figures.Generate,
				SkipVerify:      opts.SkipVerify,
				Quiet:           true,
			},
		})
		if srv != nil && res != nil {
			srv.SetBuildStatus(res.RunID, string(res.Status), res.EndTime, err)
		}
		writeTextfile(p, rec)
		return err
	}

	if !opts.NoInitial {
		if err := rebuild(g.Context); err != nil {
			slog.Warn("Initial build failed; waiting for changes", logfields.Error(err))
		}
	}

	w, err := watch.New(watch.Sources(p.cfg, p.paths), []string{p.paths.OutputRoot, p.paths.StateDir}, p.cfg.Watch.Debounce, rebuild)
	if err != nil {
		return err
	}
	return w.Run(g.Context)
}
