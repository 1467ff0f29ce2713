package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/docpublish/internal/toolchain"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Figures bool `help:"Also require the interpreter used for figure scripts"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	tools := toolchain.BuildTools(p.cfg)
	if c.Figures || p.cfg.Figures.Generate {
		tools = append(tools, toolchain.Tool{Name: "figure interpreter", Command: p.cfg.Tools.Python})
	}

	report, err := g.checker().Check(g.Context, tools...)
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TOOL\tCOMMAND\tVERSION\tPATH")
	for _, r := range report.Tools {
		v := r.Version
		if v == "" {
			v = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Command, v, r.Path)
	}
	_ = tw.Flush()
	return err
}
