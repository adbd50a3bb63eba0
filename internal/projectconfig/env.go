package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// TokenEnvVar holds the API token of the image generation service.
const TokenEnvVar = "REPLICATE_API_TOKEN"

// LoadEnv reads a .env file from dir into the process environment. Variables
// that are already set win over the file. A missing file isn't an error.
func LoadEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", p, err)
	}

	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("loading %s: %w", p, err)
	}
	return nil
}

// APIToken returns the generation service token, or "" when unset.
func APIToken() string {
	return os.Getenv(TokenEnvVar)
}
