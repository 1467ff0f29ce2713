package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	dir, err := config.ResolveRoot(root.Root)
	if err != nil {
		return err
	}
	path := root.Config
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	_, _ = fmt.Fprintf(g.Out, "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.Out, "initialized successfully")
	return nil
}
