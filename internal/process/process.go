// Package process runs external commands synchronously and turns their exit
// status into classified errors. Output streams through to the caller's
// writers unmodified; the tail of stderr is also kept for the error context.
package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// stderrTail bounds how much diagnostic text is kept in memory per command.
const stderrTail = 4096

// Invocation describes one external command.
type Invocation struct {
	Tool    string // display name, defaults to Command
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
}

func (i Invocation) name() string {
	if i.Tool != "" {
		return i.Tool
	}
	return i.Command
}

// String renders the command line for logs and guidance output.
func (i Invocation) String() string {
	return strings.TrimSpace(i.Command + " " + strings.Join(i.Args, " "))
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
}

// Runner executes invocations. Implementations must block until the command exits.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner wired to the process's own stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts the command and waits for it. A non-zero exit yields a
// subprocess error carrying the command's exit status.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	// #nosec G204 -- commands come from the project configuration
	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	tail := &tailBuffer{limit: stderrTail}
	cmd.Stdout = orDiscard(r.Stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(r.Stderr), tail)

	slog.Debug("Running command", logfields.Tool(inv.name()), slog.String("command", inv.String()), logfields.Path(inv.Dir))
	start := time.Now()
	err := cmd.Run()
	res := Result{Stderr: tail.String(), Duration: time.Since(start)}

	if err == nil {
		slog.Debug("Command finished", logfields.Tool(inv.name()), logfields.Duration(res.Duration))
		return res, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		code := res.ExitCode
		if code <= 0 {
			// killed by a signal or the context
			code = 2
		}
		return res, errors.SubprocessError(fmt.Sprintf("%s exited with status %d", inv.name(), res.ExitCode), code).
			WithCause(err).
			WithContext("tool", inv.name()).
			WithContext("command", inv.String()).
			WithContext("stderr", res.Stderr).
			Build()
	}
	if stderrors.Is(err, exec.ErrNotFound) {
		return res, errors.ToolError(inv.name()+" not found").WithCause(err).WithContext("tool", inv.name()).Build()
	}
	return res, errors.WrapError(err, errors.CategorySubprocess, "failed to start "+inv.name()).
		Fatal().
		WithContext("tool", inv.name()).
		Build()
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
