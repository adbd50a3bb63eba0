package style

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Pick asks the user to choose one of paths and returns the chosen path.
// Non-terminal input (pipes, tests) falls back to huh's accessible mode,
// which reads a plain option number.
func Pick(in io.Reader, out io.Writer, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoStyles
	}

	options := make([]huh.Option[string], 0, len(paths))
	for _, p := range paths {
		options = append(options, huh.NewOption(Name(p), p))
	}

	selected := paths[0]
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Style").
				Description("Reference image sent with every pose").
				Options(options...).
				Value(&selected),
		),
	).
		WithInput(in).
		WithOutput(out)

	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("style selection failed: %w", err)
	}
	return selected, nil
}
