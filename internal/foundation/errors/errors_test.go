package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	cause := stderrors.New("exit status 2")
	err := SubprocessError("pdoc3 failed", 2).
		WithCause(cause).
		WithContext("tool", "pdoc3").
		Build()

	assert.Equal(t, CategorySubprocess, err.Category())
	assert.Equal(t, SeverityFatal, err.Severity())
	assert.Equal(t, 2, err.ExitCode())
	assert.Equal(t, "[subprocess:fatal] pdoc3 failed: exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)

	tool, ok := err.Context().GetString("tool")
	require.True(t, ok)
	assert.Equal(t, "pdoc3", tool)
}

func TestClassifiedError_WithContextDoesNotMutateOriginal(t *testing.T) {
	base := FileSystemError("copy failed").WithContext("src", "a").Build()
	derived := base.WithContext("dst", "b")

	_, ok := base.Context().Get("dst")
	assert.False(t, ok)
	v, ok := derived.Context().GetString("dst")
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestAsClassifiedFindsWrappedError(t *testing.T) {
	inner := GitError("push rejected").Build()
	wrapped := fmt.Errorf("publish: %w", inner)

	got, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, HasCategory(wrapped, CategoryGit))
	assert.False(t, HasCategory(stderrors.New("plain"), CategoryInternal))
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{"x": 1, "y": 2}
	b := ErrorContext{"y": 3}

	merged := a.Merge(b)
	assert.Equal(t, 1, merged["x"])
	assert.Equal(t, 3, merged["y"])
	assert.Equal(t, 2, a["y"])

	var empty ErrorContext
	assert.Equal(t, b, empty.Merge(b))
}
