package rules

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed defaults/*.yaml
var bundled embed.FS

// Defaults compiles the bundled L1, L2 and L3 page definitions.
func Defaults() (Set, error) {
	sub, err := fs.Sub(bundled, "defaults")
	if err != nil {
		return nil, fmt.Errorf("rules: open bundled definitions: %w", err)
	}
	return LoadFS(sub)
}

// WriteDefaults copies the bundled definitions into dir and returns the paths
// written. Existing files are left alone unless overwrite is set.
func WriteDefaults(dir string, overwrite bool) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("rules: definitions directory is empty")
	}
	entries, err := fs.ReadDir(bundled, "defaults")
	if err != nil {
		return nil, fmt.Errorf("rules: list bundled definitions: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rules: prepare %s: %w", dir, err)
	}
	var written []string
	for _, entry := range entries {
		target := filepath.Join(dir, entry.Name())
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, fmt.Errorf("rules: stat %s: %w", target, err)
			}
		}
		data, err := bundled.ReadFile(path.Join("defaults", entry.Name()))
		if err != nil {
			return written, fmt.Errorf("rules: read bundled %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return written, fmt.Errorf("rules: write %s: %w", target, err)
		}
		written = append(written, target)
	}
	return written, nil
}
