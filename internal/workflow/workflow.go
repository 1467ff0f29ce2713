// Package workflow renders the CI job definition that runs "docpublish ci" on
// every push. The YAML is built from nodes so key order stays stable.
package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// Render returns the GitHub Actions workflow for cfg.
func Render(cfg *config.Config) ([]byte, error) {
	doc := mapping(
		"name", scalar(cfg.Workflow.Name),
		"on", mapping(
			"push", mapping("branches", flowSeq(cfg.Workflow.Branches...)),
			"workflow_dispatch", mapping(),
		),
		"permissions", mapping("contents", scalar("write")),
		"jobs", mapping("docs", job(cfg)),
	)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to render workflow").Build()
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to render workflow").Build()
	}
	return buf.Bytes(), nil
}

func job(cfg *config.Config) *yaml.Node {
	w := cfg.Workflow
	steps := seq(
		mapping("uses", scalar("actions/checkout@v4")),
		mapping(
			"uses", scalar("actions/setup-python@v5"),
			"with", mapping("python-version", quoted(w.PythonVersion)),
		),
	)
	if len(w.SystemPackages) > 0 {
		steps.Content = append(steps.Content, mapping(
			"name", scalar("Install system packages"),
			"run", scalar("sudo apt-get update && sudo apt-get install -y "+strings.Join(w.SystemPackages, " ")),
		))
	}
	steps.Content = append(steps.Content,
		mapping(
			"uses", scalar("actions/setup-go@v5"),
			"with", mapping("go-version", quoted(w.GoVersion)),
		),
		mapping(
			"name", scalar("Install docpublish"),
			"run", scalar("go install "+w.Install),
		),
		mapping(
			"name", scalar("Build and publish documentation"),
			"run", scalar(`docpublish ci --root "$GITHUB_WORKSPACE"`),
			"env", mapping(cfg.Publish.TokenEnv, scalar("${{ secrets.GITHUB_TOKEN }}")),
		),
	)

	pairs := []any{}
	if c := cfg.Publish.CanonicalRepository; c != "" {
		pairs = append(pairs, "if", scalar(fmt.Sprintf("github.repository == '%s'", c)))
	}
	pairs = append(pairs, "runs-on", scalar("ubuntu-latest"), "steps", steps)
	return mapping(pairs...)
}

// Write renders the workflow to path, refusing to replace an existing file
// unless force is set.
func Write(cfg *config.Config, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError("workflow already exists: " + path + " (use --force to overwrite)").Build()
	}
	data, err := Render(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create workflow directory").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write workflow").
			WithContext("path", path).
			Build()
	}
	return nil
}

// mapping builds a mapping node from alternating keys (string) and values (*yaml.Node).
func mapping(pairs ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Content = append(n.Content, scalar(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return n
}

func seq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

func flowSeq(values ...string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		n.Content = append(n.Content, scalar(v))
	}
	return n
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// quoted forces a string scalar so versions like 3.10 are not read as numbers.
func quoted(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}
