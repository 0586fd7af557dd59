// Package sections generates the structured page sections that are computed
// rather than read: subsector tabs, service cards and the experts widget.
package sections

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/sectorpages/internal/taxonomy"
)

//go:embed defaults/services.yaml
var bundled embed.FS

var catalogValidate = validator.New()

// Service is one consulting offer in the catalog.
type Service struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// Catalog lists the services and which entity names offer them.
type Catalog struct {
	Services []Service          `yaml:"services" validate:"required,dive"`
	Mapping  map[string][]string `yaml:"mapping"`
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Catalog{}, fmt.Errorf("sections: catalog payload is empty")
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("sections: decode catalog: %w", err)
	}
	if err := catalogValidate.Struct(cat); err != nil {
		return Catalog{}, fmt.Errorf("sections: invalid catalog: %w", err)
	}
	seen := map[string]bool{}
	for _, svc := range cat.Services {
		if seen[svc.ID] {
			return Catalog{}, fmt.Errorf("sections: duplicate service id %s", svc.ID)
		}
		seen[svc.ID] = true
	}
	return cat, nil
}

// DefaultCatalog returns the bundled catalog.
func DefaultCatalog() (Catalog, error) {
	data, err := bundled.ReadFile("defaults/services.yaml")
	if err != nil {
		return Catalog{}, fmt.Errorf("sections: read bundled catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalog reads the catalog at path, or the bundled one if path does not
// exist.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCatalog()
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("sections: read %s: %w", path, err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w (%s)", err, path)
	}
	return cat, nil
}

// WriteDefaultCatalog writes the bundled catalog to path unless a file is
// already there. It reports whether it wrote anything.
func WriteDefaultCatalog(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := bundled.ReadFile("defaults/services.yaml")
	if err != nil {
		return false, fmt.Errorf("sections: read bundled catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("sections: prepare %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("sections: write %s: %w", path, err)
	}
	return true, nil
}

// Service returns the service with id.
func (c Catalog) Service(id string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// ServiceIDs returns the ids offered by e. The most specific mapped name wins:
// category, then subsector, then sector. A name mapped to an empty list stops
// the fallback.
func (c Catalog) ServiceIDs(e *taxonomy.Entity) []string {
	var candidates []string
	switch e.Level {
	case taxonomy.L3:
		candidates = []string{e.Category, e.Subsector, e.Sector}
	case taxonomy.L2:
		candidates = []string{e.Subsector, e.Sector}
	default:
		candidates = []string{e.Sector}
	}
	for _, name := range candidates {
		if ids, ok := c.Mapping[name]; ok {
			return append([]string(nil), ids...)
		}
	}
	return nil
}
