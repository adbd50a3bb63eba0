package template

import (
	"fmt"
	"os"
	"strings"

	"github.com/spboyer/posegen/internal/models"
)

// Placeholder tokens recognized in prompt templates.
const (
	TokenSanskrit    = "{{sanskrit}}"
	TokenTranslation = "{{translation}}"
	TokenEtymology   = "{{etymology}}"
	TokenDescription = "{{description}}"
	TokenAnatomical  = "{{anatomical}}"
)

// Tokens lists every recognized placeholder.
var Tokens = []string{TokenSanskrit, TokenTranslation, TokenEtymology, TokenDescription, TokenAnatomical}

// Render replaces every occurrence of the five pose tokens in tmpl with the
// matching pose field. Replacement happens in a single pass, so values that
// themselves contain tokens are not expanded again. Unknown tokens are left
// as-is.
func Render(tmpl string, pose models.Pose) string {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	r := strings.NewReplacer(
		TokenSanskrit, pose.Sanskrit,
		TokenTranslation, pose.Translation,
		TokenEtymology, pose.Etymology,
		TokenDescription, pose.Description,
		TokenAnatomical, pose.Anatomical,
	)
	return r.Replace(tmpl)
}

// Load reads a prompt template from disk.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("template: read %s: %w", path, err)
	}
	return string(data), nil
}
