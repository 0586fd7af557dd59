// Package rules loads the per-level page definitions and turns them into
// content update rules for a single taxonomy entity.
package rules

import (
	"fmt"
	"strings"

	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// DefaultImageWidth is used when an image rule omits its width.
const DefaultImageWidth = 1440

// DefaultTemplatePrefix names template pages by level: sector-level-1 and so on.
const DefaultTemplatePrefix = "sector-level-"

// PageDefinition declares the template page and the ordered rules for every
// entity of one level.
type PageDefinition struct {
	ID          string         `yaml:"id"`
	Level       taxonomy.Level `yaml:"level"`
	Template    string         `yaml:"template,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Rules       []RuleSpec     `yaml:"rules"`
}

// RuleSpec is one declarative update. Exactly one of Value, ValueFrom,
// ValueFile or Image must be set.
type RuleSpec struct {
	Path      string     `yaml:"path"`
	Value     *string    `yaml:"value,omitempty"`
	ValueFrom string     `yaml:"value_from,omitempty"`
	ValueFile string     `yaml:"value_file,omitempty"`
	Image     *ImageSpec `yaml:"image,omitempty"`
	Multiple  bool       `yaml:"multiple,omitempty"`
}

// ImageSpec names a local image, the templated optimized name and the width.
type ImageSpec struct {
	File  string `yaml:"file"`
	Name  string `yaml:"name"`
	Width int    `yaml:"width,omitempty"`
}

// Clone returns a deep copy of the definition.
func (def PageDefinition) Clone() PageDefinition {
	clone := def
	if len(def.Rules) > 0 {
		clone.Rules = make([]RuleSpec, len(def.Rules))
		for i, rule := range def.Rules {
			clone.Rules[i] = rule.Clone()
		}
	}
	return clone
}

// Clone returns a deep copy of the rule.
func (r RuleSpec) Clone() RuleSpec {
	clone := r
	if r.Value != nil {
		value := *r.Value
		clone.Value = &value
	}
	if r.Image != nil {
		image := *r.Image
		clone.Image = &image
	}
	return clone
}

// Validate ensures the definition is self-consistent.
func (def PageDefinition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("rules: id is required")
	}
	if !def.Level.Valid() {
		return fmt.Errorf("rules %s: invalid level %q", def.ID, def.Level)
	}
	if def.Template == "" {
		return fmt.Errorf("rules %s: template is required", def.ID)
	}
	if len(def.Rules) == 0 {
		return fmt.Errorf("rules %s: at least one rule is required", def.ID)
	}
	for idx, rule := range def.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules %s rule[%d]: %w", def.ID, idx, err)
		}
	}
	return nil
}

// Validate ensures the rule has a parsable path and exactly one source.
func (r RuleSpec) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if _, err := document.ParseSelector(r.Path); err != nil {
		return err
	}
	sources := 0
	if r.Value != nil {
		sources++
	}
	if r.ValueFrom != "" {
		sources++
	}
	if r.ValueFile != "" {
		sources++
	}
	if r.Image != nil {
		sources++
		if r.Image.File == "" || r.Image.Name == "" {
			return fmt.Errorf("%s: image file and name are required", r.Path)
		}
		if r.Image.Width < 0 {
			return fmt.Errorf("%s: image width must be >= 0", r.Path)
		}
	}
	if sources != 1 {
		return fmt.Errorf("%s: exactly one of value, value_from, value_file or image is required (got %d)", r.Path, sources)
	}
	return nil
}

// Normalized clones the definition, fills defaults and validates the result.
func (def PageDefinition) Normalized() (PageDefinition, error) {
	clone := def.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if level, err := taxonomy.ParseLevel(string(clone.Level)); err == nil {
		clone.Level = level
	}
	if clone.ID == "" && clone.Level.Valid() {
		clone.ID = strings.ToLower(string(clone.Level))
	}
	clone.Template = strings.TrimSpace(clone.Template)
	if clone.Template == "" && clone.Level.Valid() {
		clone.Template = DefaultTemplatePrefix + strings.TrimPrefix(string(clone.Level), "L")
	}
	for i := range clone.Rules {
		rule := &clone.Rules[i]
		rule.Path = strings.TrimSpace(rule.Path)
		rule.ValueFrom = strings.TrimSpace(rule.ValueFrom)
		rule.ValueFile = strings.TrimSpace(rule.ValueFile)
		if rule.Image != nil && rule.Image.Width == 0 {
			rule.Image.Width = DefaultImageWidth
		}
	}
	if err := clone.Validate(); err != nil {
		return PageDefinition{}, err
	}
	return clone, nil
}
