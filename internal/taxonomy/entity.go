// Package taxonomy loads the three-level sector taxonomy and resolves the
// expert sets attached to each entity.
package taxonomy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Level identifies an entity's depth in the taxonomy.
type Level string

const (
	L1 Level = "L1"
	L2 Level = "L2"
	L3 Level = "L3"
)

// Levels lists every valid level from the top down.
var Levels = []Level{L1, L2, L3}

// ParseLevel accepts L1, L2 or L3 (case-insensitive).
func ParseLevel(value string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(value)))
	if !level.Valid() {
		return "", fmt.Errorf("taxonomy: invalid level %q", value)
	}
	return level, nil
}

// ParseLevels parses a comma separated list such as "L1,L2".
func ParseLevels(value string) ([]Level, error) {
	var out []Level
	seen := map[Level]bool{}
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		level, err := ParseLevel(part)
		if err != nil {
			return nil, err
		}
		if !seen[level] {
			seen[level] = true
			out = append(out, level)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("taxonomy: no levels in %q", value)
	}
	return out, nil
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l == L1 || l == L2 || l == L3
}

// Key identifies an entity. Unused components are empty.
type Key struct {
	Level     Level
	Sector    string
	Subsector string
	Category  string
}

func (k Key) String() string {
	parts := []string{k.Sector}
	if k.Subsector != "" {
		parts = append(parts, k.Subsector)
	}
	if k.Category != "" {
		parts = append(parts, k.Category)
	}
	return string(k.Level) + ":" + strings.Join(parts, "/")
}

// Entity is one sector, subsector or category row.
type Entity struct {
	Level      Level
	Sector     string
	Subsector  string
	Category   string
	Slug       string
	Attributes AttributeSet
}

// Name is the sector for L1, the subsector for L2 and the category for L3.
func (e *Entity) Name() string {
	switch e.Level {
	case L1:
		return e.Sector
	case L2:
		return e.Subsector
	case L3:
		return e.Category
	}
	return ""
}

// Key returns the identity key for the entity.
func (e *Entity) Key() Key {
	switch e.Level {
	case L1:
		return Key{Level: L1, Sector: e.Sector}
	case L2:
		return Key{Level: L2, Sector: e.Sector, Subsector: e.Subsector}
	default:
		return Key{Level: e.Level, Sector: e.Sector, Subsector: e.Subsector, Category: e.Category}
	}
}

// Parent returns the key of the enclosing entity, if any.
func (e *Entity) Parent() (Key, bool) {
	switch e.Level {
	case L2:
		return Key{Level: L1, Sector: e.Sector}, true
	case L3:
		return Key{Level: L2, Sector: e.Sector, Subsector: e.Subsector}, true
	}
	return Key{}, false
}

// IsChildOf reports whether e sits directly below parent.
func (e *Entity) IsChildOf(parent *Entity) bool {
	key, ok := e.Parent()
	return ok && key == parent.Key()
}

// RelDir is the entity's content directory relative to the data root.
func (e *Entity) RelDir() string {
	switch e.Level {
	case L1:
		return e.Sector
	case L2:
		return filepath.Join(e.Sector, e.Subsector)
	default:
		return filepath.Join(e.Sector, e.Subsector, e.Category)
	}
}

func (e *Entity) String() string {
	return e.Key().String()
}

// Children returns the direct children of parent in taxonomy order.
func Children(entities []Entity, parent *Entity) []*Entity {
	var out []*Entity
	for i := range entities {
		if entities[i].IsChildOf(parent) {
			out = append(out, &entities[i])
		}
	}
	return out
}

// Filter returns pointers to the entities whose level is listed.
func Filter(entities []Entity, levels ...Level) []*Entity {
	want := map[Level]bool{}
	for _, l := range levels {
		want[l] = true
	}
	var out []*Entity
	for i := range entities {
		if want[entities[i].Level] {
			out = append(out, &entities[i])
		}
	}
	return out
}

// DirLayout maps entities onto directories below Root.
type DirLayout struct {
	Root string
}

// Dir returns the absolute content directory for e.
func (l DirLayout) Dir(e *Entity) string {
	return filepath.Join(l.Root, e.RelDir())
}

// Path joins a content file name onto the entity directory.
func (l DirLayout) Path(e *Entity, name string) string {
	return filepath.Join(l.Dir(e), filepath.FromSlash(name))
}

// FS exposes the entity directory as a read-only file system.
func (l DirLayout) FS(e *Entity) fs.FS {
	return os.DirFS(l.Dir(e))
}
