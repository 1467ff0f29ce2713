package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" default:"20" help:"Number of runs to list"`
	RunID string `arg:"" optional:"" name:"run" help:"Show the stages of one run"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}
	if p.cfg.History.Disabled {
		return errors.ConfigError("run history is disabled (history.disabled)").Build()
	}
	store := p.openHistory()
	defer closeHistory(store)

	if c.RunID != "" {
		return c.showRun(g, store)
	}

	runs, err := store.Recent(g.Context, c.Limit)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to read history").Build()
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(g.Out, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tSTARTED\tDURATION\tOUTCOME\tEXIT\tFAILED STEP\tCOMMIT")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond),
			r.Outcome, r.ExitCode, dash(r.FailedStep), dash(shortHash(r.Commit)))
	}
	return tw.Flush()
}

func (c *HistoryCmd) showRun(g *Global, store history.Store) error {
	run, err := store.Get(g.Context, c.RunID)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNotFound, "run not found").WithContext("run", c.RunID).Build()
	}
	stages, err := store.Stages(g.Context, c.RunID)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to read stages").Build()
	}

	_, _ = fmt.Fprintf(g.Out, "Run %s (%s): %s, exit %d\n", run.ID, run.Kind, run.Outcome, run.ExitCode)
	if run.Message != "" {
		_, _ = fmt.Fprintf(g.Out, "  %s\n", run.Message)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STAGE\tRESULT\tDURATION")
	for _, s := range stages {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Result, s.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
