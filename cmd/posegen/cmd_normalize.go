package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spboyer/posegen/internal/catalog"
	"github.com/spboyer/posegen/internal/normalize"
	"github.com/spf13/cobra"
)

func newNormalizeCommand() *cobra.Command {
	var (
		projectDir string
		rulesPath  string
		fields     []string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "normalize [catalog]",
		Short: "Rewrite pose text fields with regular expression rules",
		Long: `Rewrite pose text fields with an ordered list of regular expression rules.

Rules are read from a YAML file:

  rules:
    - name: second-person
      pattern: "\\byour\\b"
      replace: "their"

and applied in file order. Without --rules only whitespace is cleaned up.
The result is written to --output, or to stdout. The output format follows the
extension of the output file, or of the input when writing to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := loadProject(projectDir)
			if err != nil {
				return err
			}

			input := project.Resolve(project.Paths.Catalog)
			if len(args) == 1 {
				input = args[0]
			}
			if rulesPath == "" {
				rulesPath = project.Resolve(project.Normalize.Rules)
			}
			if len(fields) == 0 {
				fields = project.Normalize.Fields
			}

			if err := normalize.CheckFields(fields); err != nil {
				return err
			}

			rules, err := normalize.LoadRules(rulesPath)
			if err != nil {
				return err
			}

			cat, err := catalog.LoadFile(input)
			if err != nil {
				return err
			}

			changed, err := normalize.Catalog(cat, rules, fields)
			if err != nil {
				return err
			}

			ext := filepath.Ext(input)
			if outputPath != "" {
				ext = filepath.Ext(outputPath)
			}

			data, err := catalog.Encode(cat, ext)
			if err != nil {
				return err
			}

			if outputPath == "" {
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			} else if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outputPath, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Normalized %d field value(s) with %d rule(s)\n", changed, len(rules))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML rules file (default: normalize.rules, or whitespace cleanup only)")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Pose field to rewrite, can be repeated (default: description)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
