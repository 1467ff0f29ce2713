package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "missing tool", err: ToolError("pdoc3 not found").Build(), expected: 2},
		{name: "subprocess propagates exit status", err: SubprocessError("mkdocs build failed", 3).Build(), expected: 3},
		{name: "subprocess without status", err: NewError(CategorySubprocess, "killed").Build(), expected: 2},
		{name: "validation", err: ValidationError("bad glob").Build(), expected: 2},
		{name: "auth", err: AuthError("token missing").Build(), expected: 5},
		{name: "config", err: ConfigError("bad yaml").Build(), expected: 7},
		{name: "git", err: GitError("push rejected").Build(), expected: 8},
		{name: "filesystem", err: FileSystemError("permission denied").Build(), expected: 11},
		{name: "wrapped classified", err: fmt.Errorf("outer: %w", AuthError("nope").Build()), expected: 5},
		{name: "unclassified error", err: stderrors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	assert.Empty(t, adapter.FormatError(nil))
	assert.Equal(t, "Error: boom", adapter.FormatError(stderrors.New("boom")))

	tool := ToolError("pdoc3 not found; install it with: pip install pdoc3").Build()
	assert.Equal(t, "Error: pdoc3 not found; install it with: pip install pdoc3", adapter.FormatError(tool))

	fs := WrapError(stderrors.New("permission denied"), CategoryFileSystem, "remove output directory").Build()
	assert.Equal(t, "Error: remove output directory: permission denied", adapter.FormatError(fs))

	sub := SubprocessError("mkdocs exited with status 1", 1).WithCause(stderrors.New("exit status 1")).Build()
	assert.Equal(t, "Error: mkdocs exited with status 1", adapter.FormatError(sub))
}

func TestCLIErrorAdapter_ReportWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.Default()).WithOutput(&buf)

	code := adapter.Report(ToolError("pdoc3 not found").Build())

	require.Equal(t, 2, code)
	assert.Equal(t, "Error: pdoc3 not found\n", buf.String())
	assert.Equal(t, 0, adapter.Report(nil))
}
