package verify

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestHTMLImages(t *testing.T) {
	api := t.TempDir()
	write(t, filepath.Join(api, "figures", "ticks-delta.png"), "png")
	write(t, filepath.Join(api, "ticks.html"), `<html><body>
<img src="figures/ticks-delta.png">
<img src="figures/ticks-missing.png" alt="gone">
<img src="https://example.com/logo.png">
<img src="data:image/png;base64,AAAA">
<img src="/absolute.png">
</body></html>`)
	write(t, filepath.Join(api, "sub", "index.html"), `<p><img src="../figures/ticks-delta.png"><img src="figures/nope%20here.png"></p>`)

	report, err := HTMLImages(api)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesScanned)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, Finding{Kind: KindHTML, File: "sub/index.html", Reference: "figures/nope%20here.png"}, report.Findings[0])
	assert.Equal(t, Finding{Kind: KindHTML, File: "ticks.html", Reference: "figures/ticks-missing.png"}, report.Findings[1])
	assert.False(t, report.OK())
}

func TestHTMLImages_MissingRootIsEmpty(t *testing.T) {
	report, err := HTMLImages(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Zero(t, report.FilesScanned)
}

func TestMarkdownImages(t *testing.T) {
	docs := t.TempDir()
	write(t, filepath.Join(docs, "figures", "colors.png"), "png")
	write(t, filepath.Join(docs, "index.md"), "# plottools\n\n![colors](figures/colors.png)\n\n![gone](figures/gone.png \"title\")\n\n[link](figures/not-an-image.png)\n")
	write(t, filepath.Join(docs, "guide", "axes.md"), "![up](../figures/colors.png) ![remote](https://example.com/x.png)\n")

	report, err := MarkdownImages(docs)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesScanned)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "index.md", report.Findings[0].File)
	assert.Equal(t, "figures/gone.png", report.Findings[0].Reference)
	assert.Equal(t, `index.md: missing image "figures/gone.png"`, report.Findings[0].String())
}

func TestReportMerge(t *testing.T) {
	a := Report{FilesScanned: 1, Findings: []Finding{{File: "a"}}}
	a.Merge(Report{FilesScanned: 2, Findings: []Finding{{File: "b"}}})
	assert.Equal(t, 3, a.FilesScanned)
	assert.Len(t, a.Findings, 2)
}

func TestDocsDir(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(root, "mkdocs.yml")

	assert.Equal(t, filepath.Join(root, "docs"), DocsDir(cfg), "missing config falls back to docs")

	write(t, cfg, "site_name: plottools\ndocs_dir: doc\nmarkdown_extensions:\n  - pymdownx.emoji:\n      emoji_index: !!python/name:material.extensions.emoji.twemoji\n")
	assert.Equal(t, filepath.Join(root, "doc"), DocsDir(cfg))
}

func TestDocsDir_MalformedConfigIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	root := t.TempDir()
	cfg := filepath.Join(root, "mkdocs.yml")
	write(t, cfg, "site_name: [plottools\n")

	assert.Equal(t, filepath.Join(root, "docs"), DocsDir(cfg))
	assert.Contains(t, logs.String(), "Failed to parse site config")
	assert.Contains(t, logs.String(), "mkdocs.yml")
}
