package config

import "path/filepath"

// DefaultWorkers bounds the number of generation calls in flight.
const DefaultWorkers = 4

// RunConfig holds the settings of a single batch run.
type RunConfig struct {
	catalogPath  string
	templatePath string
	stylePath    string
	styleName    string
	outputRoot   string
	workers      int
	model        string
	aspectRatio  string
	outputFormat string
	verbose      bool
}

// Option configures a RunConfig.
type Option func(*RunConfig)

// NewRunConfig creates a RunConfig for the given catalog and template files.
func NewRunConfig(catalogPath, templatePath string, opts ...Option) *RunConfig {
	cfg := &RunConfig{
		catalogPath:  catalogPath,
		templatePath: templatePath,
		outputRoot:   "output",
		workers:      DefaultWorkers,
		outputFormat: "jpg",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithStyle sets the style reference image. The style name defaults to the
// file name without its extension.
func WithStyle(path string) Option {
	return func(c *RunConfig) {
		c.stylePath = path
		if c.styleName == "" && path != "" {
			base := filepath.Base(path)
			c.styleName = base[:len(base)-len(filepath.Ext(base))]
		}
	}
}

// WithStyleName overrides the style name derived from the style path.
func WithStyleName(name string) Option {
	return func(c *RunConfig) { c.styleName = name }
}

// WithOutputRoot sets the directory that holds run directories. Empty keeps "output".
func WithOutputRoot(dir string) Option {
	return func(c *RunConfig) {
		if dir != "" {
			c.outputRoot = dir
		}
	}
}

// WithWorkers sets the pool size. Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(c *RunConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithModel records the provider model reference in the run summary.
func WithModel(model string) Option {
	return func(c *RunConfig) { c.model = model }
}

// WithAspectRatio sets the aspect ratio requested from the provider.
func WithAspectRatio(ratio string) Option {
	return func(c *RunConfig) { c.aspectRatio = ratio }
}

// WithOutputFormat sets the image format and file extension. Empty keeps "jpg".
func WithOutputFormat(format string) Option {
	return func(c *RunConfig) {
		if format != "" {
			c.outputFormat = format
		}
	}
}

// WithVerbose enables detailed progress output.
func WithVerbose(v bool) Option {
	return func(c *RunConfig) { c.verbose = v }
}

// CatalogPath is the catalog file to load.
func (c *RunConfig) CatalogPath() string { return c.catalogPath }

// TemplatePath is the prompt template file.
func (c *RunConfig) TemplatePath() string { return c.templatePath }

// StylePath is the style reference image.
func (c *RunConfig) StylePath() string { return c.stylePath }

// StyleName names the style in the run directory and summary.
func (c *RunConfig) StyleName() string { return c.styleName }

// OutputRoot is the directory that holds run directories.
func (c *RunConfig) OutputRoot() string { return c.outputRoot }

// Workers is the number of generations in flight.
func (c *RunConfig) Workers() int { return c.workers }

// Model is the provider model reference.
func (c *RunConfig) Model() string { return c.model }

// AspectRatio is the requested aspect ratio.
func (c *RunConfig) AspectRatio() string { return c.aspectRatio }

// OutputFormat is the image format and file extension.
func (c *RunConfig) OutputFormat() string { return c.outputFormat }

// Verbose reports whether detailed progress is shown.
func (c *RunConfig) Verbose() bool { return c.verbose }
