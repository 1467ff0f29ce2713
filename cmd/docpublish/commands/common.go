package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/build"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/process"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

// LogLevelEnv overrides the log level ("debug", "info", "warn", "error").
const LogLevelEnv = "DOCPUBLISH_LOG_LEVEL"

// Global carries the process-wide dependencies commands run against.
type Global struct {
	Context context.Context
	Out     io.Writer
	Err     io.Writer
	Getenv  func(string) string
	Runner  process.Runner
	Lookup  toolchain.Lookup // nil resolves tools from PATH
}

// DefaultGlobal wires the real process environment.
func DefaultGlobal(ctx context.Context) *Global {
	return &Global{
		Context: ctx,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Getenv:  os.Getenv,
		Runner:  process.NewExecRunner(),
	}
}

// CLI definition & global flags.
type CLI struct {
	Root    string           `help:"Project root (defaults to the directory holding the docpublish executable)" env:"DOCPUBLISH_ROOT" type:"path"`
	Config  string           `short:"c" help:"Configuration file path, relative to the project root" default:"docpublish.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" default:"1" help:"Build the site and the API reference into the output root"`
	Check    CheckCmd    `cmd:"" help:"Check that the documentation tools are installed"`
	Publish  PublishCmd  `cmd:"" help:"Publish the existing build to the publish branch"`
	CI       CICmd       `cmd:"" name:"ci" help:"Provision, build and publish (the CI entry point)"`
	Serve    ServeCmd    `cmd:"" help:"Serve the output root over HTTP for previewing"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild whenever the documentation sources change"`
	Schedule ScheduleCmd `cmd:"" help:"Run builds or the CI job periodically"`
	History  HistoryCmd  `cmd:"" help:"List recent runs"`
	Workflow WorkflowCmd `cmd:"" help:"Write the CI workflow definition"`
	Init     InitCmd     `cmd:"" help:"Write a configuration file with the defaults"`
	Ver      VersionCmd  `cmd:"" name:"version" help:"Print version information"`

	getenv func(string) string
	errOut io.Writer
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	w := c.errOut
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose, c.getenv)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honors --verbose first, then DOCPUBLISH_LOG_LEVEL.
func parseLogLevel(verbose bool, getenv func(string) string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	switch strings.ToLower(strings.TrimSpace(getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Execute parses args, runs the selected command and returns the exit code.
func Execute(args []string, g *Global) int {
	cli := &CLI{getenv: g.Getenv, errOut: g.Err}
	exitCode := -1
	parser, err := kong.New(cli,
		kong.Name("docpublish"),
		kong.Description("Build the plottools documentation and publish it to the gh-pages branch."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Writers(g.Out, g.Err),
		kong.Exit(func(code int) { exitCode = code }),
		kong.Bind(g),
	)
	if err != nil {
		return errors.NewCLIErrorAdapter(false, nil).WithOutput(g.Err).Report(
			errors.WrapError(err, errors.CategoryInternal, "invalid command line model").Build())
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help or --version
		return exitCode
	}
	if err != nil {
		return errors.NewCLIErrorAdapter(false, nil).WithOutput(g.Err).Report(
			errors.WrapError(err, errors.CategoryValidation, "invalid arguments").Build())
	}

	runErr := kctx.Run(g, cli)
	return errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).WithOutput(g.Err).Report(runErr)
}

// project is the resolved state every project-bound command starts from.
type project struct {
	cfg   *config.Config
	paths config.Paths
}

func loadProject(root *CLI) (*project, error) {
	dir, err := config.ResolveRoot(root.Root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir, root.Config)
	if err != nil {
		return nil, err
	}
	paths, err := cfg.Resolve(dir)
	if err != nil {
		return nil, err
	}
	slog.Debug("Project resolved", logfields.Path(paths.Root), slog.String("config", root.Config))
	return &project{cfg: cfg, paths: paths}, nil
}

// openHistory returns the run store; a noop store when history is disabled.
func (p *project) openHistory() history.Store {
	if p.cfg.History.Disabled {
		return history.NoopStore{}
	}
	return history.NewLazyStore(p.cfg.HistoryPath(p.paths))
}

// newRecorder returns a Prometheus recorder on a fresh registry, or the noop
// recorder when nothing would ever read the metrics.
func newRecorder(enabled bool) metrics.Recorder {
	if !enabled {
		return metrics.NoopRecorder{}
	}
	return metrics.NewPrometheusRecorder(prom.NewRegistry())
}

func (g *Global) checker() *toolchain.Checker {
	c := toolchain.NewChecker()
	if g.Lookup != nil {
		c = c.WithLookup(g.Lookup)
	}
	return c
}

func (g *Global) buildService(rec metrics.Recorder, store history.Store) *build.DefaultBuildService {
	return build.NewBuildService().
		WithRunner(g.Runner).
		WithChecker(g.checker()).
		WithRecorder(rec).
		WithHistory(store).
		WithOutput(g.Out)
}

func closeHistory(store history.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close history", logfields.Error(err))
	}
}

// writeTextfile exports rec when the configuration asks for it.
func writeTextfile(p *project, rec metrics.Recorder) {
	path := p.cfg.Metrics.Textfile
	pr, ok := rec.(*metrics.PrometheusRecorder)
	if path == "" || !ok {
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.paths.Root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		slog.Warn("Failed to create metrics directory", logfields.Path(path), logfields.Error(err))
		return
	}
	if err := pr.WriteTextfile(path); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}
