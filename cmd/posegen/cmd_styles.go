package main

import (
	"fmt"
	"path/filepath"

	"github.com/spboyer/posegen/internal/style"
	"github.com/spf13/cobra"
)

func newStylesCommand() *cobra.Command {
	var projectDir string

	cmd := &cobra.Command{
		Use:   "styles [dir]",
		Short: "List the style reference images",
		Long: `List the .jpg, .jpeg and .png images that can be used as style references.

With no arguments the styles directory from .posegen.yaml is listed. The
configured default style is marked with *.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := loadProject(projectDir)
			if err != nil {
				return err
			}

			dir := project.Resolve(project.Paths.Styles)
			if len(args) == 1 {
				dir = args[0]
			}

			paths, err := style.Discover(dir)
			if err != nil {
				return err
			}

			defaultStyle := project.DefaultStylePath()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Styles in %s:\n", dir)
			for _, p := range paths {
				marker := " "
				if defaultStyle != "" && filepath.Clean(defaultStyle) == filepath.Clean(p) {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s\n", marker, padRight(style.Name(p), 24), filepath.Base(p))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "dir", "", "Project directory (default: current directory)")
	return cmd
}
