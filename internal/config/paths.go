package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// Paths holds every absolute location a run touches. It is computed once at
// start-up and passed to each step; nothing downstream consults the working directory.
type Paths struct {
	Root          string
	Package       string
	PackageSource string
	PackageParent string
	SiteConfig    string
	OutputRoot    string
	APITempDir    string
	APIStagingDir string // <APITempDir>/<Package>, as written by the API generator
	APIDir        string
	ImageFolder   string
	FigureSource  string
	FigureGlob    string
	StateDir      string
}

// StagedImageDir is the image folder inside the API generator's output, before relocation.
func (p Paths) StagedImageDir() string { return filepath.Join(p.APIStagingDir, p.ImageFolder) }

// ImageDir is the image folder inside the relocated API tree.
func (p Paths) ImageDir() string { return filepath.Join(p.APIDir, p.ImageFolder) }

// Resolve computes absolute paths for cfg anchored at root.
func (c *Config) Resolve(root string) (Paths, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, errors.WrapError(err, errors.CategoryConfig, "failed to resolve project root").
			WithContext("root", root).
			Build()
	}
	join := func(rel string) string {
		if filepath.IsAbs(rel) {
			return filepath.Clean(rel)
		}
		return filepath.Join(absRoot, rel)
	}

	p := c.Project
	out := join(p.BuildRoot)
	source := join(p.Source)
	tmp := filepath.Join(out, p.APITempDir)
	paths := Paths{
		Root:          absRoot,
		Package:       p.Package,
		PackageSource: source,
		PackageParent: filepath.Dir(source),
		SiteConfig:    join(p.SiteConfig),
		OutputRoot:    out,
		APITempDir:    tmp,
		APIStagingDir: filepath.Join(tmp, p.Package),
		APIDir:        filepath.Join(out, p.APIDir),
		ImageFolder:   p.ImageFolder,
		FigureSource:  join(p.FigureSource),
		FigureGlob:    p.FigureGlob,
		StateDir:      filepath.Join(absRoot, ".docpublish"),
	}
	if err := paths.checkOutputRoot(); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

// checkOutputRoot rejects an output root that would take project inputs with
// it when it is recreated.
func (p Paths) checkOutputRoot() error {
	for _, input := range []struct{ name, path string }{
		{"project root", p.Root},
		{"project.source", p.PackageSource},
		{"project.site_config", p.SiteConfig},
		{"project.figure_source", p.FigureSource},
		{"state directory", p.StateDir},
	} {
		if within(p.OutputRoot, input.path) {
			return errors.ValidationError(
				fmt.Sprintf("project.build_root must not contain the %s", input.name)).
				WithContext("build_root", p.OutputRoot).
				WithContext("path", input.path).
				Build()
		}
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// HistoryPath returns the absolute history database path.
func (c *Config) HistoryPath(paths Paths) string {
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(paths.Root, c.History.Path)
}

// ResolveRoot returns the project root: the explicit value when given, otherwise
// the directory of the running executable with symlinks resolved.
func ResolveRoot(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryConfig, "invalid project root").Build()
		}
		return abs, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRuntime, "cannot locate executable").Build()
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRuntime, "cannot resolve executable path").Build()
	}
	return filepath.Dir(resolved), nil
}
