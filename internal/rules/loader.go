package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// ParseDefinitionYAML decodes a page definition from YAML bytes.
func ParseDefinitionYAML(data []byte) (PageDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return PageDefinition{}, fmt.Errorf("rules: definition payload is empty")
	}
	var def PageDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return PageDefinition{}, fmt.Errorf("rules: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionReader reads page definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader) (PageDefinition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return PageDefinition{}, fmt.Errorf("rules: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile loads a page definition from an explicit file path.
func LoadDefinitionFile(path string) (PageDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return PageDefinition{}, fmt.Errorf("rules: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return PageDefinition{}, fmt.Errorf("rules: %s: %w", path, parseErr)
	}
	return def, nil
}

// Set holds one compiled page per level.
type Set map[taxonomy.Level]*Page

// Levels returns the levels present in the set, top down.
func (s Set) Levels() []taxonomy.Level {
	var out []taxonomy.Level
	for _, level := range taxonomy.Levels {
		if _, ok := s[level]; ok {
			out = append(out, level)
		}
	}
	return out
}

// LoadFS reads every *.yaml and *.yml definition at the top of fsys. Two
// definitions for the same level are rejected.
func LoadFS(fsys fs.FS) (Set, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("rules: list definitions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	set := Set{}
	sources := map[taxonomy.Level]string{}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("rules: read %s: %w", name, err)
		}
		def, err := ParseDefinitionYAML(data)
		if err != nil {
			return nil, fmt.Errorf("rules: %s: %w", name, err)
		}
		if prev, dup := sources[def.Level]; dup {
			return nil, fmt.Errorf("rules: %s and %s both define level %s", prev, name, def.Level)
		}
		page, err := Compile(def)
		if err != nil {
			return nil, fmt.Errorf("rules: %s: %w", name, err)
		}
		sources[def.Level] = name
		set[def.Level] = page
	}
	return set, nil
}

// LoadDir loads definitions from dir, falling back to the bundled defaults
// when dir does not exist.
func LoadDir(dir string) (Set, error) {
	if dir == "" {
		return Defaults()
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults()
		}
		return nil, fmt.Errorf("rules: stat %s: %w", dir, err)
	}
	return LoadFS(os.DirFS(dir))
}
