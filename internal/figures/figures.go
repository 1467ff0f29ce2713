// Package figures regenerates documentation figures by running the Python
// scripts that live next to them.
package figures

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/process"
)

// Generator runs figure scripts one at a time.
type Generator struct {
	runner      process.Runner
	interpreter string
}

// NewGenerator returns a generator that runs scripts with interpreter.
func NewGenerator(runner process.Runner, interpreter string) *Generator {
	return &Generator{runner: runner, interpreter: interpreter}
}

// Scripts lists the scripts in dir matching pattern, in lexical order.
func Scripts(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid figure script pattern").
			WithContext("pattern", pattern).
			Build()
	}
	sort.Strings(matches)
	return matches, nil
}

// Generate runs every script in dir with dir as working directory, since the
// scripts save their PNGs next to themselves. The first failing script stops
// the run and its exit status is returned in the error.
func (g *Generator) Generate(ctx context.Context, dir, pattern string) ([]string, error) {
	scripts, err := Scripts(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		slog.Warn("No figure scripts found", logfields.Path(dir), slog.String("pattern", pattern))
		return nil, nil
	}

	ran := make([]string, 0, len(scripts))
	for _, script := range scripts {
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		slog.Info("Generating figures", slog.String("script", script))
		_, err := g.runner.Run(ctx, process.Invocation{
			Tool:    script,
			Command: g.interpreter,
			Args:    []string{script},
			Dir:     dir,
			Env:     []string{"MPLBACKEND=Agg"},
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, script)
	}
	return ran, nil
}
