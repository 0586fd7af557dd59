package rules

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/gosimple/slug"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// Generator names understood by the bundled definitions.
const (
	GenSubsectorTabs = "subsector_tabs"
	GenServices      = "services"
	GenExpertsWidget = "experts_widget"
)

// Generator computes a structured value for an entity, such as a tab list or
// a shortcode.
type Generator interface {
	Generate(ctx context.Context, e *taxonomy.Entity) (any, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, e *taxonomy.Entity) (any, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, e *taxonomy.Entity) (any, error) {
	return f(ctx, e)
}

// Generators maps value_from names to their implementation.
type Generators map[string]Generator

// Funcs are available to value and image name templates.
var Funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"slug":  slug.Make,
}

// TemplateData is the entity view exposed to value templates.
type TemplateData struct {
	Name      string
	Level     string
	Sector    string
	Subsector string
	Category  string
	Slug      string
}

// NewTemplateData builds the template view of e.
func NewTemplateData(e *taxonomy.Entity) TemplateData {
	return TemplateData{
		Name:      e.Name(),
		Level:     string(e.Level),
		Sector:    e.Sector,
		Subsector: e.Subsector,
		Category:  e.Category,
		Slug:      e.Slug,
	}
}

type compiledRule struct {
	spec  RuleSpec
	path  document.Selector
	value *template.Template
	image *template.Template
}

// Page is a validated definition with its selectors and templates parsed. It
// is immutable and safe for concurrent use.
type Page struct {
	def   PageDefinition
	rules []compiledRule
}

// Compile parses every selector and template in def.
func Compile(def PageDefinition) (*Page, error) {
	def, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	page := &Page{def: def, rules: make([]compiledRule, 0, len(def.Rules))}
	for idx, spec := range def.Rules {
		name := fmt.Sprintf("%s[%d]", def.ID, idx)
		compiled := compiledRule{spec: spec}
		compiled.path, err = document.ParseSelector(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("rules %s: %w", name, err)
		}
		if spec.Value != nil {
			compiled.value, err = template.New(name).Funcs(Funcs).Option("missingkey=error").Parse(*spec.Value)
			if err != nil {
				return nil, fmt.Errorf("rules %s: value: %w", name, err)
			}
		}
		if spec.Image != nil {
			compiled.image, err = template.New(name + ".image").Funcs(Funcs).Option("missingkey=error").Parse(spec.Image.Name)
			if err != nil {
				return nil, fmt.Errorf("rules %s: image name: %w", name, err)
			}
		}
		page.rules = append(page.rules, compiled)
	}
	return page, nil
}

// Definition returns a copy of the normalized definition.
func (p *Page) Definition() PageDefinition {
	return p.def.Clone()
}

// Level is the taxonomy level the page serves.
func (p *Page) Level() taxonomy.Level {
	return p.def.Level
}

// Template is the slug of the template page.
func (p *Page) Template() string {
	return p.def.Template
}

// Generators lists the value_from names the page needs, in rule order.
func (p *Page) Generators() []string {
	var out []string
	seen := map[string]bool{}
	for _, rule := range p.rules {
		name := rule.spec.ValueFrom
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Build turns the page into update rules for e. Generators run here, so a
// generator failure (such as a missing tab description) fails the entity.
func (p *Page) Build(ctx context.Context, e *taxonomy.Entity, gens Generators) ([]content.UpdateRule, error) {
	if e.Level != p.def.Level {
		return nil, fmt.Errorf("rules %s: entity %s has level %s", p.def.ID, e, e.Level)
	}
	data := NewTemplateData(e)
	out := make([]content.UpdateRule, 0, len(p.rules))
	for idx, rule := range p.rules {
		var src content.Source
		switch {
		case rule.value != nil:
			text, err := render(rule.value, data)
			if err != nil {
				return nil, fmt.Errorf("rules %s[%d]: %w", p.def.ID, idx, err)
			}
			src = content.Literal(text)
		case rule.spec.ValueFrom != "":
			gen, ok := gens[rule.spec.ValueFrom]
			if !ok || gen == nil {
				return nil, fmt.Errorf("rules %s[%d]: unknown generator %q", p.def.ID, idx, rule.spec.ValueFrom)
			}
			value, err := gen.Generate(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("rules %s[%d]: %s: %w", p.def.ID, idx, rule.spec.ValueFrom, err)
			}
			src = content.Literal(value)
		case rule.spec.ValueFile != "":
			src = content.FileContent(rule.spec.ValueFile)
		case rule.image != nil:
			name, err := render(rule.image, data)
			if err != nil {
				return nil, fmt.Errorf("rules %s[%d]: %w", p.def.ID, idx, err)
			}
			src = content.AssetSource(rule.spec.Image.File, name, rule.spec.Image.Width)
		}
		out = append(out, content.UpdateRule{Path: rule.path, Source: src, AllowMultiple: rule.spec.Multiple})
	}
	return out, nil
}

func render(tmpl *template.Template, data TemplateData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
