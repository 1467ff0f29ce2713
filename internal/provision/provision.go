// Package provision prepares the CI environment before a build by running the
// configured install steps in order.
package provision

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/observability"
	"git.home.luguber.info/inful/docpublish/internal/process"
)

// Provisioner runs provision steps through a process runner.
type Provisioner struct {
	runner process.Runner
}

// New returns a provisioner using runner.
func New(runner process.Runner) *Provisioner {
	return &Provisioner{runner: runner}
}

// Invocation converts a step into a command anchored at root.
func Invocation(step config.ProvisionStep, root string) process.Invocation {
	dir := root
	if step.Dir != "" {
		dir = step.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
	}
	name := step.Name
	if name == "" {
		name = step.Command[0]
	}
	return process.Invocation{
		Tool:    name,
		Command: step.Command[0],
		Args:    step.Command[1:],
		Dir:     dir,
	}
}

// Run executes steps one at a time. The first failing step stops the run and
// its error, carrying the step's exit status, is returned.
func (p *Provisioner) Run(ctx context.Context, root string, steps []config.ProvisionStep) error {
	for i, step := range steps {
		inv := Invocation(step, root)
		observability.InfoContext(ctx, "Provisioning", logfields.Stage(inv.Tool), logfields.Count(i+1))
		if _, err := p.runner.Run(ctx, inv); err != nil {
			observability.ErrorContext(ctx, "Provision step failed", logfields.Tool(inv.Tool), logfields.Error(err))
			return err
		}
	}
	return nil
}
