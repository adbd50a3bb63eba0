// Package catalog loads pose catalogs and flattens them into indexed jobs.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/posegen/internal/models"
	"github.com/spboyer/posegen/internal/validation"
	"gopkg.in/yaml.v3"
)

// ErrMalformedCatalog is returned when the document has no sections list or a
// pose is missing a required field.
var ErrMalformedCatalog = errors.New("malformed catalog")

// LoadFile reads a catalog from path. Files ending in .yaml or .yml are read
// as YAML, everything else as JSON.
func LoadFile(path string) (*models.PoseCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	raw, err := decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCatalog, path, err)
	}

	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Decode parses catalog bytes without validating them. ext selects the format
// the same way LoadFile does.
func Decode(data []byte, ext string) (any, error) {
	return decode(data, ext)
}

func decode(data []byte, ext string) (any, error) {
	var raw any
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	}
	return raw, nil
}

// Parse validates raw structured data and maps it onto a PoseCatalog. It has
// no side effects.
func Parse(raw any) (*models.PoseCatalog, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedCatalog)
	}

	if errs := validation.ValidateCatalog(raw); len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n  %s", ErrMalformedCatalog, strings.Join(errs, "\n  "))
	}

	var cat models.PoseCatalog
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &cat,
		// numbers and booleans in text fields become strings
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	return &cat, nil
}

// Flatten assigns each pose a 1-based index in document order, counting across
// sections, and returns the resulting jobs.
func Flatten(cat *models.PoseCatalog) []models.Job {
	jobs := make([]models.Job, 0, cat.PoseCount())
	for _, section := range cat.Sections {
		for _, pose := range section.Poses {
			jobs = append(jobs, models.Job{
				Index:   len(jobs) + 1,
				Section: section.Name,
				Pose:    pose,
			})
		}
	}
	return jobs
}

// Load reads path and flattens it in one step.
func Load(path string) ([]models.Job, error) {
	cat, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Flatten(cat), nil
}

// Encode writes cat in the format selected by ext: YAML for .yaml or .yml,
// indented JSON otherwise.
func Encode(cat *models.PoseCatalog, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cat); err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(cat, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), nil
	}
}
