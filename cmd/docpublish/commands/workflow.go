package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/workflow"
)

// WorkflowCmd implements the 'workflow' command.
type WorkflowCmd struct {
	Output string `short:"o" help:"Destination (defaults to workflow.path under the project root)"`
	Stdout bool   `help:"Print the workflow instead of writing it"`
	Force  bool   `help:"Overwrite an existing workflow file"`
}

func (c *WorkflowCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	if c.Stdout {
		data, err := workflow.Render(p.cfg)
		if err != nil {
			return err
		}
		_, err = g.Out.Write(data)
		return err
	}

	path := c.Output
	if path == "" {
		path = p.cfg.Workflow.Path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.paths.Root, path)
	}
	if err := workflow.Write(p.cfg, path, c.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Wrote %s\n", path)
	return nil
}
