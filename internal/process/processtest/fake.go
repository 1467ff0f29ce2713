// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/process"
)

// Handler simulates a command. Returning a non-zero code fails the invocation.
type Handler func(inv process.Invocation) (exitCode int, err error)

// FakeRunner records invocations and dispatches them to per-command handlers.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]Handler
	Calls    []process.Invocation
}

// NewFakeRunner returns a runner where unknown commands succeed without effect.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]Handler)}
}

// Handle registers h for command.
func (f *FakeRunner) Handle(command string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = h
	return f
}

// Fail makes command exit with code.
func (f *FakeRunner) Fail(command string, code int) *FakeRunner {
	return f.Handle(command, func(process.Invocation) (int, error) { return code, nil })
}

// Commands returns the command names in call order.
func (f *FakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.Command)
	}
	return out
}

// Run implements process.Runner.
func (f *FakeRunner) Run(_ context.Context, inv process.Invocation) (process.Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, inv)
	h := f.handlers[inv.Command]
	f.mu.Unlock()

	if h == nil {
		return process.Result{}, nil
	}
	code, err := h(inv)
	if err != nil {
		return process.Result{ExitCode: code}, err
	}
	if code != 0 {
		msg := fmt.Sprintf("%s exited with status %d", inv.Command, code)
		return process.Result{ExitCode: code, Stderr: msg}, errors.SubprocessError(msg, code).
			WithContext("tool", inv.Command).
			Build()
	}
	return process.Result{}, nil
}
