// Package toolchain checks that the external generators are installed before
// a build touches the filesystem.
package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Tool is an external command a build depends on.
type Tool struct {
	Name        string
	Command     string
	InstallHint string
}

// Resolved is a tool found on PATH.
type Resolved struct {
	Tool
	Path    string
	Version string
}

// Report is the outcome of a successful check.
type Report struct {
	Tools []Resolved
}

// Lookup finds a command; replaced in tests.
type Lookup func(command string) (string, error)

// Checker resolves tools with a lookup function.
type Checker struct {
	lookup        Lookup
	detectVersion bool
}

// NewChecker returns a checker backed by exec.LookPath.
func NewChecker() *Checker {
	return &Checker{lookup: exec.LookPath, detectVersion: true}
}

// WithLookup swaps the lookup function and disables version probing.
func (c *Checker) WithLookup(l Lookup) *Checker {
	c.lookup = l
	c.detectVersion = false
	return c
}

// BuildTools returns the generators a build needs, API generator first.
func BuildTools(cfg *config.Config) []Tool {
	return []Tool{
		{Name: "API-doc generator", Command: cfg.Tools.API.Command, InstallHint: cfg.Tools.API.InstallHint},
		{Name: "static-site generator", Command: cfg.Tools.Site.Command, InstallHint: cfg.Tools.Site.InstallHint},
	}
}

// Check resolves every tool. The first missing tool produces a tool error
// naming the command and its remediation.
func (c *Checker) Check(ctx context.Context, tools ...Tool) (Report, error) {
	var report Report
	for _, t := range tools {
		path, err := c.lookup(t.Command)
		if err != nil {
			msg := fmt.Sprintf("%s not found in PATH", t.Command)
			if t.InstallHint != "" {
				msg += "; install it with: " + t.InstallHint
			}
			return report, errors.ToolError(msg).
				WithCause(err).
				WithContext("tool", t.Command).
				Build()
		}
		r := Resolved{Tool: t, Path: path}
		if c.detectVersion {
			r.Version = DetectVersion(ctx, path)
		}
		slog.Debug("Tool resolved", logfields.Tool(t.Command), logfields.Path(path), slog.String("version", r.Version))
		report.Tools = append(report.Tools, r)
	}
	return report, nil
}

var versionRegex = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// DetectVersion runs "<path> --version" and extracts the first version number.
// Best effort: failures return an empty string.
func DetectVersion(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// #nosec G204 -- path comes from exec.LookPath
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	return ParseVersion(string(out))
}

// ParseVersion extracts a dotted version from tool output, e.g.
// "mkdocs, version 1.6.1 from ..." or "pdoc 0.11.6".
func ParseVersion(output string) string {
	if m := versionRegex.FindStringSubmatch(output); len(m) >= 2 {
		return m[1]
	}
	return strings.TrimSpace(output)
}
