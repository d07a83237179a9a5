// Package library enumerates the on-disk material swatch folders.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Material categories.
const (
	MaterialFabric  = "fabric"
	MaterialLeather = "leather"
)

var (
	// ErrNotFound is returned for unknown materials or missing swatch files.
	ErrNotFound = errors.New("swatch not found")
	// ErrInvalidName is returned for names that would escape the material folder.
	ErrInvalidName = errors.New("invalid swatch name")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Library resolves swatches under <root>/cover/<material>.
type Library struct {
	root string
}

// New creates a Library rooted at the assets directory.
func New(root string) *Library {
	return &Library{root: root}
}

// Materials lists the supported material categories.
func Materials() []string {
	return []string{MaterialFabric, MaterialLeather}
}

// Dir returns the folder holding swatches of the given material.
func (l *Library) Dir(material string) (string, error) {
	switch material {
	case MaterialFabric, MaterialLeather:
		return filepath.Join(l.root, "cover", material), nil
	default:
		return "", fmt.Errorf("%w: unknown material %q", ErrNotFound, material)
	}
}

// List returns the swatch file names of a material sorted by name. A missing
// folder yields an empty list.
func (l *Library) List(material string) ([]string, error) {
	dir, err := l.Dir(material)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves a swatch name to its file path.
func (l *Library) Path(material, name string) (string, error) {
	dir, err := l.Dir(material)
	if err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}

// Read returns the raw bytes of a swatch.
func (l *Library) Read(material, name string) ([]byte, error) {
	path, err := l.Path(material, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, material, name)
		}
		return nil, fmt.Errorf("failed to read swatch %s: %w", path, err)
	}
	return data, nil
}
