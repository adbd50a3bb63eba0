package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spboyer/posegen/internal/config"
	"github.com/spboyer/posegen/internal/execution"
	"github.com/spboyer/posegen/internal/hooks"
	"github.com/spboyer/posegen/internal/orchestration"
	"github.com/spboyer/posegen/internal/projectconfig"
	"github.com/spboyer/posegen/internal/style"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	projectDir   string
	catalogPath  string
	templatePath string
	stylePath    string
	stylesDir    string
	pick         bool
	outputRoot   string
	workers      int
	engine       string
	model        string
	aspectRatio  string
	poseFilters  []string
	verbose      bool
	strict       bool
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one image per pose in the catalog",
		Long: `Generate one image per pose in the catalog.

Each pose is rendered into the prompt template, sent to the image generation
service together with the style reference image, and the result is saved as
{index}-{sanskrit}-{english}-{id}.jpg in a new output directory named after the
start time and the style.

Defaults come from .posegen.yaml (searched from the project directory upward).
The replicate engine reads REPLICATE_API_TOKEN from the environment or .env.

The style image is chosen from, in order:
  1. --style
  2. styles.default in .posegen.yaml
  3. an interactive list of the images in the styles directory (also with --pick)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.projectDir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().StringVarP(&opts.catalogPath, "catalog", "c", "", "Pose catalog, JSON or YAML (default: paths.catalog)")
	cmd.Flags().StringVarP(&opts.templatePath, "template", "t", "", "Prompt template file (default: paths.template)")
	cmd.Flags().StringVarP(&opts.stylePath, "style", "s", "", "Style reference image")
	cmd.Flags().StringVar(&opts.stylesDir, "styles-dir", "", "Directory of style images to pick from (default: paths.styles)")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "Always pick the style image interactively")
	cmd.Flags().StringVarP(&opts.outputRoot, "output", "o", "", "Output root directory (default: paths.output)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent generations (default: 4)")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "Generation engine: replicate, mock (default: defaults.engine)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model reference as owner/name (default: defaults.model)")
	cmd.Flags().StringVar(&opts.aspectRatio, "aspect-ratio", "", "Aspect ratio of the images (default: defaults.aspect_ratio)")
	cmd.Flags().StringArrayVar(&opts.poseFilters, "pose", nil, "Only generate poses whose name or section matches this glob (can be repeated)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with code 1 when any pose fails")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	project, err := loadProject(opts.projectDir)
	if err != nil {
		return err
	}

	stylePath, err := resolveStylePath(cmd.InOrStdin(), cmd.ErrOrStderr(), opts, project)
	if err != nil {
		return err
	}

	engineName := firstNonEmpty(opts.engine, project.Defaults.Engine)
	modelRef := firstNonEmpty(opts.model, project.Defaults.Model)
	aspectRatio := firstNonEmpty(opts.aspectRatio, project.Defaults.AspectRatio)
	workers := opts.workers
	if workers <= 0 {
		workers = project.Defaults.Workers
	}
	verbose := opts.verbose || (project.Defaults.Verbose != nil && *project.Defaults.Verbose)

	client, modelLabel, err := generationClientFactory(engineName, modelRef, aspectRatio, project.Defaults.OutputFormat)
	if err != nil {
		return err
	}

	cfg := config.NewRunConfig(
		firstNonEmpty(opts.catalogPath, project.Resolve(project.Paths.Catalog)),
		firstNonEmpty(opts.templatePath, project.Resolve(project.Paths.Template)),
		config.WithStyle(stylePath),
		config.WithOutputRoot(firstNonEmpty(opts.outputRoot, project.Resolve(project.Paths.Output))),
		config.WithWorkers(workers),
		config.WithModel(modelLabel),
		config.WithAspectRatio(aspectRatio),
		config.WithOutputFormat(project.Defaults.OutputFormat),
		config.WithVerbose(verbose),
	)

	out := cmd.OutOrStdout()

	hookRunner := &hooks.Runner{}
	if verbose {
		hookRunner.Output = out
	}

	runner := orchestration.NewBatchRunner(cfg, client,
		orchestration.WithJobFilters(opts.poseFilters...),
		orchestration.WithHooks(project.Hooks, hookRunner),
	)

	if verbose {
		runner.OnProgress(verboseProgressListener(out))
	} else {
		runner.OnProgress(simpleProgressListener(out))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Catalog: %s\n", cfg.CatalogPath())
	fmt.Fprintf(out, "Style:   %s\n", cfg.StyleName())
	fmt.Fprintf(out, "Engine:  %s\n", engineName)
	fmt.Fprintf(out, "Model:   %s\n", modelLabel)
	fmt.Fprintf(out, "Workers: %d\n\n", cfg.Workers())

	summary, err := runner.Run(ctx)
	if summary != nil {
		printSummary(out, summary)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if summary.Failed > 0 && opts.strict {
		return &JobFailureError{
			Message: fmt.Sprintf("run completed with %d of %d pose(s) failed", summary.Failed, summary.Total),
		}
	}
	return nil
}

// loadProject reads .posegen.yaml and the .env file next to it.
func loadProject(dir string) (*projectconfig.ProjectConfig, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}

	project, err := projectconfig.Load(dir)
	if err != nil {
		return nil, err
	}

	if err := projectconfig.LoadEnv(project.Dir); err != nil {
		return nil, err
	}
	return project, nil
}

// resolveStylePath picks the style image: --style, then styles.default, then
// an interactive choice among the images of the styles directory.
func resolveStylePath(in io.Reader, out io.Writer, opts *generateOptions, project *projectconfig.ProjectConfig) (string, error) {
	if !opts.pick {
		if opts.stylePath != "" {
			return opts.stylePath, nil
		}
		if p := project.DefaultStylePath(); p != "" {
			return p, nil
		}
	}

	dir := firstNonEmpty(opts.stylesDir, project.Resolve(project.Paths.Styles))
	paths, err := style.Discover(dir)
	if err != nil {
		return "", err
	}

	if len(paths) == 1 {
		return paths[0], nil
	}
	return style.Pick(in, out, paths)
}

// generationClientFactory is swapped out in tests.
var generationClientFactory = newGenerationClient

// newGenerationClient returns the client for engine and the model label
// recorded in the summary.
func newGenerationClient(engine, model, aspectRatio, outputFormat string) (execution.GenerationClient, string, error) {
	switch engine {
	case "mock":
		return execution.NewMockEngine(), execution.MockModel, nil
	case "replicate":
		token := projectconfig.APIToken()
		if token == "" {
			return nil, "", fmt.Errorf("%s is not set (export it or add it to .env)", projectconfig.TokenEnvVar)
		}

		replicateEngine, err := execution.NewReplicateEngineBuilder(model, &execution.ReplicateEngineBuilderOptions{
			Token:        token,
			AspectRatio:  aspectRatio,
			OutputFormat: outputFormat,
		}).Build()
		if err != nil {
			return nil, "", err
		}
		return replicateEngine, replicateEngine.Model(), nil
	default:
		return nil, "", fmt.Errorf("unknown engine type: %s", engine)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
