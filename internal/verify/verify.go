// Package verify scans a finished build for image references that point at
// files which do not exist, in the generated API HTML and in the Markdown
// sources of the general site.
package verify

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Kind tells which scanner produced a finding.
type Kind string

const (
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
)

// Finding is one broken image reference.
type Finding struct {
	Kind      Kind
	File      string // relative to the scanned root
	Reference string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: missing image %q", f.File, f.Reference)
}

// Report collects findings of one or more scans.
type Report struct {
	FilesScanned int
	Findings     []Finding
}

// OK reports whether no broken reference was found.
func (r Report) OK() bool { return len(r.Findings) == 0 }

// Merge appends other to r.
func (r *Report) Merge(other Report) {
	r.FilesScanned += other.FilesScanned
	r.Findings = append(r.Findings, other.Findings...)
}

func (r *Report) sort() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		if r.Findings[i].File != r.Findings[j].File {
			return r.Findings[i].File < r.Findings[j].File
		}
		return r.Findings[i].Reference < r.Findings[j].Reference
	})
}

// scan walks root, feeding files with the given extension to extract and
// checking each returned local reference against the filesystem.
func scan(root, ext string, kind Kind, extract func(data []byte) ([]string, error)) (Report, error) {
	var report Report
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return report, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs, err := extract(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		report.FilesScanned++
		rel, _ := filepath.Rel(root, path)
		for _, ref := range refs {
			target, ok := localTarget(filepath.Dir(path), ref)
			if !ok {
				continue
			}
			if _, err := os.Stat(target); err != nil {
				report.Findings = append(report.Findings, Finding{Kind: kind, File: filepath.ToSlash(rel), Reference: ref})
			}
		}
		return nil
	})
	report.sort()
	return report, err
}

// localTarget resolves a relative reference against dir. Absolute URLs,
// site-absolute paths and data URIs are not checked.
func localTarget(dir, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil || p == "" {
		return "", false
	}
	return filepath.Join(dir, filepath.FromSlash(p)), true
}

// DocsDir returns the MkDocs source directory named by siteConfig
// ("docs_dir", default "docs"), resolved against the config's directory.
func DocsDir(siteConfig string) string {
	base := filepath.Dir(siteConfig)
	var cfg struct {
		DocsDir string `yaml:"docs_dir"`
	}
	if data, err := os.ReadFile(siteConfig); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			slog.Debug("Failed to parse site config",
				logfields.Path(siteConfig), logfields.Error(err))
		}
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = "docs"
	}
	if filepath.IsAbs(cfg.DocsDir) {
		return cfg.DocsDir
	}
	return filepath.Join(base, cfg.DocsDir)
}
