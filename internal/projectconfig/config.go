// Package projectconfig provides the ProjectConfig struct and loader for
// .posegen.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spboyer/posegen/internal/hooks"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = ".posegen.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultCatalog  = "poses.json"
	DefaultTemplate = "prompt.txt"
	DefaultStyles   = "styles/"
	DefaultOutput   = "output/"

	DefaultEngine       = "replicate"
	DefaultModel        = "google/nano-banana"
	DefaultWorkers      = 4
	DefaultAspectRatio  = "3:4"
	DefaultOutputFormat = "jpg"

	DefaultNormalizeFields = "description"
)

// PathsConfig holds the input and output locations of a project.
type PathsConfig struct {
	Catalog  string `yaml:"catalog,omitempty"`
	Template string `yaml:"template,omitempty"`
	Styles   string `yaml:"styles,omitempty"`
	Output   string `yaml:"output,omitempty"`
}

// DefaultsConfig holds default generation parameters.
type DefaultsConfig struct {
	Engine       string `yaml:"engine,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
	AspectRatio  string `yaml:"aspect_ratio,omitempty"`
	OutputFormat string `yaml:"output_format,omitempty"`
	Verbose      *bool  `yaml:"verbose,omitempty"`
}

// StylesConfig selects the style reference image.
type StylesConfig struct {
	// Default is a path, or a file name inside Paths.Styles.
	Default string `yaml:"default,omitempty"`
}

// NormalizeConfig holds settings for the normalize command.
type NormalizeConfig struct {
	Rules  string   `yaml:"rules,omitempty"`
	Fields []string `yaml:"fields,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .posegen.yaml.
type ProjectConfig struct {
	Paths     PathsConfig       `yaml:"paths,omitempty"`
	Defaults  DefaultsConfig    `yaml:"defaults,omitempty"`
	Styles    StylesConfig      `yaml:"styles,omitempty"`
	Normalize NormalizeConfig   `yaml:"normalize,omitempty"`
	Hooks     hooks.HooksConfig `yaml:"hooks,omitempty"`

	// Dir is the directory holding the config file, or the start directory
	// when no file was found. Relative paths are resolved against it.
	Dir string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Catalog:  DefaultCatalog,
			Template: DefaultTemplate,
			Styles:   DefaultStyles,
			Output:   DefaultOutput,
		},
		Defaults: DefaultsConfig{
			Engine:       DefaultEngine,
			Model:        DefaultModel,
			Workers:      DefaultWorkers,
			AspectRatio:  DefaultAspectRatio,
			OutputFormat: DefaultOutputFormat,
			Verbose:      boolPtr(false),
		},
		Normalize: NormalizeConfig{
			Fields: []string{DefaultNormalizeFields},
		},
	}
}

// Load finds .posegen.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", startDir, err)
	}
	cfg.Dir = absDir

	data, configDir, err := findConfigFile(absDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	cfg.Dir = configDir
	cfg.resolveHookDirs()
	return cfg, nil
}

// findConfigFile walks up from dir looking for .posegen.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, string, error) {
	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, dir, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Catalog != "" {
		dst.Paths.Catalog = src.Paths.Catalog
	}
	if src.Paths.Template != "" {
		dst.Paths.Template = src.Paths.Template
	}
	if src.Paths.Styles != "" {
		dst.Paths.Styles = src.Paths.Styles
	}
	if src.Paths.Output != "" {
		dst.Paths.Output = src.Paths.Output
	}

	// Defaults
	if src.Defaults.Engine != "" {
		dst.Defaults.Engine = src.Defaults.Engine
	}
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}
	if src.Defaults.AspectRatio != "" {
		dst.Defaults.AspectRatio = src.Defaults.AspectRatio
	}
	if src.Defaults.OutputFormat != "" {
		dst.Defaults.OutputFormat = src.Defaults.OutputFormat
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}

	// Styles
	if src.Styles.Default != "" {
		dst.Styles.Default = src.Styles.Default
	}

	// Normalize
	if src.Normalize.Rules != "" {
		dst.Normalize.Rules = src.Normalize.Rules
	}
	if len(src.Normalize.Fields) > 0 {
		dst.Normalize.Fields = src.Normalize.Fields
	}

	// Hooks
	if len(src.Hooks.BeforeRun) > 0 {
		dst.Hooks.BeforeRun = src.Hooks.BeforeRun
	}
	if len(src.Hooks.AfterRun) > 0 {
		dst.Hooks.AfterRun = src.Hooks.AfterRun
	}
}

// Resolve returns p relative to the config directory, unless it's absolute or empty.
func (c *ProjectConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// resolveHookDirs anchors hook working directories at the config directory.
// Hooks without one run in the config directory itself.
func (c *ProjectConfig) resolveHookDirs() {
	for _, list := range [][]hooks.HookConfig{c.Hooks.BeforeRun, c.Hooks.AfterRun} {
		for i := range list {
			if list[i].WorkingDirectory == "" {
				list[i].WorkingDirectory = c.Dir
				continue
			}
			list[i].WorkingDirectory = c.Resolve(list[i].WorkingDirectory)
		}
	}
}

// DefaultStylePath resolves Styles.Default. A bare file name is looked up
// inside the styles directory. Returns "" when no default is configured.
func (c *ProjectConfig) DefaultStylePath() string {
	d := c.Styles.Default
	if d == "" {
		return ""
	}
	if filepath.Base(d) == d {
		return filepath.Join(c.Resolve(c.Paths.Styles), d)
	}
	return c.Resolve(d)
}

func boolPtr(b bool) *bool {
	return &b
}
