// Package style loads the style reference image sent with every generation
// request and helps the user choose one.
package style

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// ErrNoStyles is returned when a style directory holds no usable images.
var ErrNoStyles = errors.New("no style images found")

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Image is a style reference image held in memory for a whole run.
type Image struct {
	Name     string
	Path     string
	MimeType string
	Data     []byte

	dataURL string
}

// Load reads the image at path once and precomputes its data URL.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("style image %s is empty", path)
	}

	mimeType, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		// sniffed types may carry parameters, e.g. "text/plain; charset=utf-8"
		mimeType, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}

	return &Image{
		Name:     Name(path),
		Path:     path,
		MimeType: mimeType,
		Data:     data,
		dataURL:  dataurl.New(data, mimeType).String(),
	}, nil
}

// DataURL returns the image encoded as a base64 data URL.
func (i *Image) DataURL() string {
	return i.dataURL
}

// Name is the file name of path without its extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover lists the .jpg, .jpeg and .png files directly inside dir, sorted by
// name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading style directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := mimeByExt[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoStyles, dir)
	}

	sort.Strings(paths)
	return paths, nil
}
