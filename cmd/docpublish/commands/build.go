package commands

import (
	"git.home.luguber.info/inful/docpublish/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Figures    bool `help:"Regenerate the figures by running the figure scripts first"`
	SkipVerify bool `name:"skip-verify" help:"Skip the broken image reference scan"`
	Quiet      bool `short:"q" help:"Do not print the preview guidance"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	store := p.openHistory()
	defer closeHistory(store)
	rec := newRecorder(p.cfg.Metrics.Textfile != "")

	_, err = g.buildService(rec, store).Run(g.Context, build.BuildRequest{
		Config:  p.cfg,
		Paths:   p.paths,
		Options: b.options(p),
	})
	writeTextfile(p, rec)
	return err
}

func (b *BuildCmd) options(p *project) build.BuildOptions {
	return build.BuildOptions{
		GenerateFigures: b.Figures || p.cfg.Figures.Generate,
		SkipVerify:      b.SkipVerify,
		Quiet:           b.Quiet,
	}
}
