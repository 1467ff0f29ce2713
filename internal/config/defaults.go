package config

import "time"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ProjectDefaultApplier fills in the layout of the plottools repository.
type ProjectDefaultApplier struct{}

func (ProjectDefaultApplier) Domain() string { return "project" }

func (ProjectDefaultApplier) ApplyDefaults(cfg *Config) error {
	p := &cfg.Project
	setDefault(&p.Package, "plottools")
	setDefault(&p.Source, "src/"+p.Package)
	setDefault(&p.SiteConfig, "mkdocs.yml")
	setDefault(&p.BuildRoot, "site")
	setDefault(&p.FigureSource, "docs/figures")
	setDefault(&p.FigureGlob, "*.png")
	setDefault(&p.ImageFolder, "figures")
	setDefault(&p.APIDir, "api")
	setDefault(&p.APITempDir, "api-tmp")
	return nil
}

// ToolsDefaultApplier selects MkDocs and pdoc3.
type ToolsDefaultApplier struct{}

func (ToolsDefaultApplier) Domain() string { return "tools" }

func (ToolsDefaultApplier) ApplyDefaults(cfg *Config) error {
	t := &cfg.Tools
	setDefault(&t.Site.Command, "mkdocs")
	setDefault(&t.Site.InstallHint, "pip install mkdocs")
	setDefault(&t.API.Command, "pdoc3")
	setDefault(&t.API.InstallHint, "pip install pdoc3")
	setDefault(&t.Python, "python3")
	setDefault(&cfg.Figures.Scripts, "*.py")
	return nil
}

// PublishDefaultApplier targets the gh-pages branch with the GitHub Actions token.
type PublishDefaultApplier struct{}

func (PublishDefaultApplier) Domain() string { return "publish" }

func (PublishDefaultApplier) ApplyDefaults(cfg *Config) error {
	p := &cfg.Publish
	setDefault(&p.Branch, "gh-pages")
	setDefault(&p.TokenEnv, "GITHUB_TOKEN")
	setDefault(&p.AuthorName, "docpublish")
	setDefault(&p.AuthorEmail, "docpublish@users.noreply.github.com")
	setDefault(&p.Message, "Publish documentation")

	if len(cfg.Provision.Steps) == 0 {
		py := cfg.Tools.Python
		cfg.Provision.Steps = []ProvisionStep{
			{Name: "upgrade pip", Command: []string{py, "-m", "pip", "install", "--upgrade", "pip"}},
			{Name: "install documentation tools", Command: []string{py, "-m", "pip", "install", "mkdocs", "pdoc3"}},
			{Name: "install project", Command: []string{py, "-m", "pip", "install", "-e", "."}},
		}
	}
	return nil
}

// RuntimeDefaultApplier covers history, notifications, watch and workflow rendering.
type RuntimeDefaultApplier struct{}

func (RuntimeDefaultApplier) Domain() string { return "runtime" }

func (RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	setDefault(&cfg.History.Path, ".docpublish/history.db")
	setDefault(&cfg.Notify.Subject, "docpublish.runs")
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	w := &cfg.Workflow
	setDefault(&w.Name, "Documentation")
	setDefault(&w.PythonVersion, "3.11")
	setDefault(&w.GoVersion, "1.24")
	setDefault(&w.Install, "git.home.luguber.info/inful/docpublish/cmd/docpublish@latest")
	setDefault(&w.Path, ".github/workflows/docs.yml")
	if len(w.Branches) == 0 {
		w.Branches = []string{"main"}
	}
	if len(w.SystemPackages) == 0 {
		w.SystemPackages = []string{"libatlas-base-dev", "libfreetype6-dev", "libpng-dev"}
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		ProjectDefaultApplier{},
		ToolsDefaultApplier{},
		PublishDefaultApplier{},
		RuntimeDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
