package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// DefaultFile is the configuration file name looked up under the project root.
const DefaultFile = "docpublish.yaml"

// Config represents the application configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Tools     ToolsConfig     `yaml:"tools"`
	Figures   FiguresConfig   `yaml:"figures"`
	Verify    VerifyConfig    `yaml:"verify"`
	Publish   PublishConfig   `yaml:"publish"`
	Provision ProvisionConfig `yaml:"provision"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	History   HistoryConfig   `yaml:"history"`
	Notify    NotifyConfig    `yaml:"notify"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Watch     WatchConfig     `yaml:"watch"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
}

// ProjectConfig names the inputs and outputs of a build, all relative to the project root.
type ProjectConfig struct {
	Package      string `yaml:"package"`
	Source       string `yaml:"source"`
	SiteConfig   string `yaml:"site_config"`
	BuildRoot    string `yaml:"build_root"`
	FigureSource string `yaml:"figure_source"`
	FigureGlob   string `yaml:"figure_glob"`
	ImageFolder  string `yaml:"image_folder"`
	APIDir       string `yaml:"api_dir"`
	APITempDir   string `yaml:"api_temp_dir"`
}

// ToolConfig describes one external command.
type ToolConfig struct {
	Command     string   `yaml:"command"`
	InstallHint string   `yaml:"install_hint"`
	Args        []string `yaml:"args,omitempty"` // appended after the built-in arguments
}

// ToolsConfig groups the generators and the interpreter used for figure scripts.
type ToolsConfig struct {
	Site   ToolConfig `yaml:"site"`
	API    ToolConfig `yaml:"api"`
	Python string     `yaml:"python"`
}

// FiguresConfig controls figure script execution and the asset copy policy.
type FiguresConfig struct {
	Generate bool   `yaml:"generate"`
	Scripts  string `yaml:"scripts"`
	// Require turns an empty or missing figure folder into a build failure.
	Require bool `yaml:"require"`
}

// VerifyConfig controls the broken image reference scan.
type VerifyConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	Strict  bool  `yaml:"strict"`
}

// IsEnabled reports whether verification runs; it defaults to on.
func (v VerifyConfig) IsEnabled() bool { return v.Enabled == nil || *v.Enabled }

// PublishConfig describes the publish branch and its remote.
type PublishConfig struct {
	CanonicalRepository string `yaml:"canonical_repository"`
	RemoteURL           string `yaml:"remote_url"`
	Branch              string `yaml:"branch"`
	TokenEnv            string `yaml:"token_env"`
	SSHKey              string `yaml:"ssh_key,omitempty"` // private key for ssh remotes
	AuthorName          string `yaml:"author_name"`
	AuthorEmail         string `yaml:"author_email"`
	Message             string `yaml:"message"`
}

// ProvisionStep is a single environment preparation command.
type ProvisionStep struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir,omitempty"`
}

// ProvisionConfig lists the steps run before a CI build.
type ProvisionConfig struct {
	Steps []ProvisionStep `yaml:"steps"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// NotifyConfig enables NATS run events when NATSURL is set.
type NotifyConfig struct {
	NATSURL   string `yaml:"nats_url"`
	Subject   string `yaml:"subject"`
	JetStream bool   `yaml:"jetstream"` // publish with JetStream acknowledgement
}

// ScheduleConfig drives the periodic runner; exactly one of Interval and Cron may be set.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	Cron     string        `yaml:"cron"`
	Publish  bool          `yaml:"publish"`
}

// WatchConfig tunes the rebuild-on-change loop.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Paths    []string      `yaml:"paths,omitempty"`
}

// WorkflowConfig parameterizes the rendered CI job definition.
type WorkflowConfig struct {
	Name           string   `yaml:"name"`
	PythonVersion  string   `yaml:"python_version"`
	GoVersion      string   `yaml:"go_version"`
	SystemPackages []string `yaml:"system_packages"`
	Install        string   `yaml:"install"`
	Branches       []string `yaml:"branches"`
	Path           string   `yaml:"path"`
}

// Load reads the configuration file at path (relative paths resolve against root).
// A missing file yields the defaults; .env files under root are loaded first so
// ${VAR} references in the YAML can use them.
func Load(root, path string) (*Config, error) {
	if err := loadEnvFiles(root); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load .env file").Fatal().Build()
	}

	if path == "" {
		path = DefaultFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse configuration").
				Fatal().
				WithContext("path", path).
				Build()
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read configuration").
			Fatal().
			WithContext("path", path).
			Build()
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with the default values spelled out.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Publish.CanonicalRepository = "owner/plottools"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example configuration").Build()
	}
	header := "# docpublish configuration. Paths are relative to the directory holding this file.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write configuration").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
