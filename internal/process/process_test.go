package process

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_SuccessStreamsOutput(t *testing.T) {
	requireShell(t)
	var stdout, stderr bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &stderr}

	res, err := r.Run(context.Background(), Invocation{Command: "sh", Args: []string{"-c", "echo out; echo warn >&2"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "warn\n", stderr.String())
	assert.Equal(t, "warn\n", res.Stderr)
}

func TestExecRunner_PropagatesExitStatus(t *testing.T) {
	requireShell(t)
	var stderr bytes.Buffer
	r := &ExecRunner{Stderr: &stderr}

	res, err := r.Run(context.Background(), Invocation{Tool: "mkdocs", Command: "sh", Args: []string{"-c", "echo 'Config file not found' >&2; exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "Config file not found\n", stderr.String(), "diagnostics pass through verbatim")

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategorySubprocess, classified.Category())
	assert.Equal(t, 3, classified.ExitCode())
	assert.Equal(t, "mkdocs exited with status 3", classified.Message())
}

func TestExecRunner_WorkingDirectoryAndEnv(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	var stdout bytes.Buffer
	r := &ExecRunner{Stdout: &stdout}

	_, err := r.Run(context.Background(), Invocation{Command: "sh", Args: []string{"-c", "pwd; echo $DOCPUBLISH_X"}, Dir: dir, Env: []string{"DOCPUBLISH_X=yes"}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], strings.TrimPrefix(dir, "/private"))
	assert.Equal(t, "yes", lines[1])
}

func TestExecRunner_MissingCommandIsToolError(t *testing.T) {
	r := &ExecRunner{}
	_, err := r.Run(context.Background(), Invocation{Command: "docpublish-no-such-command"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTool))
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	tb := &tailBuffer{limit: 4}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "defg", tb.String())
}
