package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateProject,
		c.validateTools,
		c.validateSchedule,
		c.validateProvision,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateProject() error {
	p := c.Project
	for field, name := range map[string]string{
		"project.package":      p.Package,
		"project.image_folder": p.ImageFolder,
		"project.api_dir":      p.APIDir,
		"project.api_temp_dir": p.APITempDir,
	} {
		if err := validateSimpleName(field, name); err != nil {
			return err
		}
	}
	if p.APIDir == p.APITempDir {
		return errors.ValidationError("project.api_dir and project.api_temp_dir must differ").Build()
	}
	if !doublestar.ValidatePattern(p.FigureGlob) {
		return errors.ValidationError(fmt.Sprintf("invalid project.figure_glob %q", p.FigureGlob)).Build()
	}
	if strings.Contains(p.FigureGlob, "/") {
		return errors.ValidationError("project.figure_glob must match file names, not paths").Build()
	}
	if filepath.Clean(p.BuildRoot) == "." {
		return errors.ValidationError("project.build_root must not be the project root").Build()
	}
	return nil
}

// validateSimpleName rejects names that would place an artifact outside its parent.
func validateSimpleName(field, name string) error {
	switch {
	case name == "":
		return errors.ValidationError(field + " is required").Build()
	case name == "." || name == "..", strings.ContainsAny(name, `/\`):
		return errors.ValidationError(fmt.Sprintf("%s must be a plain directory name, got %q", field, name)).Build()
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.Site.Command == "" || c.Tools.API.Command == "" {
		return errors.ValidationError("tools.site.command and tools.api.command are required").Build()
	}
	if c.Figures.Generate && c.Tools.Python == "" {
		return errors.ValidationError("tools.python is required when figures.generate is set").Build()
	}
	if !doublestar.ValidatePattern(c.Figures.Scripts) {
		return errors.ValidationError(fmt.Sprintf("invalid figures.scripts %q", c.Figures.Scripts)).Build()
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Interval < 0 {
		return errors.ValidationError("schedule.interval must not be negative").Build()
	}
	if c.Schedule.Interval > 0 && c.Schedule.Cron != "" {
		return errors.ValidationError("schedule.interval and schedule.cron are mutually exclusive").Build()
	}
	return nil
}

func (c *Config) validateProvision() error {
	for i, step := range c.Provision.Steps {
		if len(step.Command) == 0 || step.Command[0] == "" {
			return errors.ValidationError(fmt.Sprintf("provision.steps[%d] has no command", i)).Build()
		}
	}
	return nil
}
