package provision

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/process/processtest"
)

func TestRun_StepsInOrder(t *testing.T) {
	runner := processtest.NewFakeRunner()
	root := t.TempDir()

	err := New(runner).Run(t.Context(), root, config.Default().Provision.Steps)
	require.NoError(t, err)

	require.Len(t, runner.Calls, 3)
	assert.Equal(t, []string{"-m", "pip", "install", "--upgrade", "pip"}, runner.Calls[0].Args)
	assert.Equal(t, []string{"-m", "pip", "install", "mkdocs", "pdoc3"}, runner.Calls[1].Args)
	assert.Equal(t, []string{"-m", "pip", "install", "-e", "."}, runner.Calls[2].Args)
	for _, c := range runner.Calls {
		assert.Equal(t, root, c.Dir)
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	runner := processtest.NewFakeRunner().Fail("pip", 9)
	steps := []config.ProvisionStep{
		{Name: "apt", Command: []string{"apt-get", "install", "-y", "libpng-dev"}},
		{Name: "pip", Command: []string{"pip", "install", "mkdocs"}},
		{Name: "never", Command: []string{"true"}},
	}

	err := New(runner).Run(t.Context(), t.TempDir(), steps)
	require.Error(t, err)
	assert.Equal(t, 9, errors.ExitCode(err))
	assert.Equal(t, []string{"apt-get", "pip"}, runner.Commands())
}

func TestInvocation_RelativeDir(t *testing.T) {
	inv := Invocation(config.ProvisionStep{Command: []string{"make"}, Dir: "docs"}, "/proj")
	assert.Equal(t, filepath.Join("/proj", "docs"), inv.Dir)
	assert.Equal(t, "make", inv.Tool)
	assert.Empty(t, inv.Args)
}
