package ci

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/build"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/process"
	"git.home.luguber.info/inful/docpublish/internal/process/processtest"
	"git.home.luguber.info/inful/docpublish/internal/provision"
	"git.home.luguber.info/inful/docpublish/internal/publish"
	"git.home.luguber.info/inful/docpublish/internal/toolchain"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

type project struct {
	cfg      *config.Config
	paths    config.Paths
	runner   *processtest.FakeRunner
	remote   string
	history  *history.SQLiteStore
	notifier *recordingNotifier
	recorder *metrics.PrometheusRecorder
	job      *Job
}

// newProject lays out a plottools checkout whose generators are faked and
// whose publish remote is a local bare repository.
func newProject(t *testing.T, repository string) *project {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Publish.CanonicalRepository = "bendalab/plottools"
	paths, err := cfg.Resolve(root)
	require.NoError(t, err)

	write := func(path, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write(paths.SiteConfig, "site_name: plottools\n")
	write(filepath.Join(paths.PackageSource, "__init__.py"), "")
	write(filepath.Join(paths.FigureSource, "a.png"), "png")

	remote := filepath.Join(t.TempDir(), "remote.git")
	_, err = gogit.PlainInit(remote, true)
	require.NoError(t, err)
	cfg.Publish.RemoteURL = remote

	runner := processtest.NewFakeRunner().
		Handle("mkdocs", func(process.Invocation) (int, error) {
			write(filepath.Join(paths.OutputRoot, "index.html"), "<html></html>")
			return 0, nil
		}).
		Handle("pdoc3", func(process.Invocation) (int, error) {
			write(filepath.Join(paths.APIStagingDir, "index.html"), "<html></html>")
			return 0, nil
		})

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	recorder := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
	notifier := &recordingNotifier{}
	env := envMap(map[string]string{publish.RepositoryEnv: repository})

	builder := build.NewBuildService().
		WithRunner(runner).
		WithChecker(toolchain.NewChecker().WithLookup(func(cmd string) (string, error) {
			if cmd == "mkdocs" || cmd == "pdoc3" {
				return "/usr/bin/" + cmd, nil
			}
			return "", exec.ErrNotFound
		})).
		WithHistory(store)
	job := NewJob(builder, publish.NewPublisher().WithEnv(env), provision.New(runner)).
		WithRecorder(recorder).
		WithHistory(store).
		WithNotifier(notifier).
		WithEnv(env)

	return &project{
		cfg: cfg, paths: paths, runner: runner, remote: remote,
		history: store, notifier: notifier, recorder: recorder, job: job,
	}
}

func (p *project) request() Request {
	return Request{Config: p.cfg, Paths: p.paths, Build: build.BuildOptions{Quiet: true}}
}

func (p *project) remoteHead(t *testing.T) (plumbing.Hash, bool) {
	t.Helper()
	repo, err := gogit.PlainOpen(p.remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(p.cfg.Publish.Branch), true)
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return ref.Hash(), true
}

func TestRun_CanonicalRepositoryPublishes(t *testing.T) {
	p := newProject(t, "bendalab/plottools")

	res, err := p.job.Run(t.Context(), p.request())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 0, res.ExitCode)
	require.NotNil(t, res.Publish)

	head, ok := p.remoteHead(t)
	require.True(t, ok)
	assert.Equal(t, res.Publish.Commit, head.String())

	// provision steps run before the generators
	cmds := p.runner.Commands()
	require.GreaterOrEqual(t, len(cmds), 5)
	assert.Equal(t, []string{"python3", "python3", "python3"}, cmds[:3])
	assert.Equal(t, []string{"mkdocs", "pdoc3"}, cmds[len(cmds)-2:])

	run, err := p.history.Get(t.Context(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, KindCI, run.Kind)
	assert.Equal(t, "success", run.Outcome)
	assert.Equal(t, res.Publish.Commit, run.Commit)
	assert.Equal(t, 1, run.Figures)

	stages, err := p.history.Stages(t.Context(), res.RunID)
	require.NoError(t, err)
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, StageProvision)
	assert.Contains(t, names, string(build.StageSite))
	assert.Contains(t, names, StagePublish)

	require.Len(t, p.notifier.events, 1)
	assert.Equal(t, "success", p.notifier.events[0].Outcome)
	assert.Equal(t, "bendalab/plottools", p.notifier.events[0].Repository)
}

func TestRun_ForkDoesNothing(t *testing.T) {
	p := newProject(t, "someone/plottools")

	res, err := p.job.Run(t.Context(), p.request())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, res.ExitCode)

	assert.Empty(t, p.runner.Calls)
	assert.NoDirExists(t, p.paths.OutputRoot)
	_, ok := p.remoteHead(t)
	assert.False(t, ok)

	runs, err := p.history.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, p.notifier.events)
}

func TestRun_ProvisionFailureAborts(t *testing.T) {
	p := newProject(t, "bendalab/plottools")
	p.runner.Fail("python3", 4)

	res, err := p.job.Run(t.Context(), p.request())
	require.Error(t, err)
	assert.Equal(t, 4, res.ExitCode)
	assert.Equal(t, StageProvision, res.FailedStage)
	assert.Equal(t, []string{"python3"}, p.runner.Commands())
	assert.NoDirExists(t, p.paths.OutputRoot)
}

func TestRun_BuildFailureDoesNotPublish(t *testing.T) {
	p := newProject(t, "bendalab/plottools")
	p.runner.Fail("mkdocs", 3)

	res, err := p.job.Run(t.Context(), Request{Config: p.cfg, Paths: p.paths, SkipProvision: true, Build: build.BuildOptions{Quiet: true}})
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, string(build.StageSite), res.FailedStage)
	assert.Nil(t, res.Publish)
	_, ok := p.remoteHead(t)
	assert.False(t, ok)

	run, err := p.history.Get(t.Context(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Outcome)
	assert.Equal(t, 3, run.ExitCode)
}

func TestRun_RejectedCredentialsLeaveRemoteUnchanged(t *testing.T) {
	p := newProject(t, "bendalab/plottools")

	_, err := p.job.Run(t.Context(), Request{Config: p.cfg, Paths: p.paths, SkipProvision: true, Build: build.BuildOptions{Quiet: true}})
	require.NoError(t, err)
	before, ok := p.remoteHead(t)
	require.True(t, ok)

	p.cfg.Publish.RemoteURL = "https://github.com/bendalab/plottools.git"
	res, err := p.job.Publish(t.Context(), p.request())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAuth))
	assert.Equal(t, 5, res.ExitCode)

	after, ok := p.remoteHead(t)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestPublish_WritesMetricsTextfile(t *testing.T) {
	p := newProject(t, "bendalab/plottools")
	p.cfg.Metrics.Textfile = "metrics/docpublish.prom"
	require.NoError(t, os.MkdirAll(p.paths.OutputRoot, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(p.paths.OutputRoot, "index.html"), []byte("x"), 0o600))

	res, err := p.job.Publish(t.Context(), p.request())
	require.NoError(t, err)
	assert.Equal(t, KindPublish, res.Kind)

	data, err := os.ReadFile(filepath.Join(p.paths.Root, "metrics", "docpublish.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "docpublish_run_outcomes_total")
}

func TestRun_NilConfig(t *testing.T) {
	job := NewJob(nil, nil, nil)
	res, err := job.Run(t.Context(), Request{})
	require.Error(t, err)
	assert.Equal(t, 7, res.ExitCode)
}
