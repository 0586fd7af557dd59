package document

import (
	"strconv"
	"strings"
)

// StepKind distinguishes the two step variants.
type StepKind int

const (
	// FieldStep selects a named entry of a map node.
	FieldStep StepKind = iota
	// IndexStep selects a position inside a list node.
	IndexStep
)

// Step is one hop of a selector.
type Step struct {
	Kind  StepKind
	Name  string
	Index int
}

// Field builds a named field step.
func Field(name string) Step {
	return Step{Kind: FieldStep, Name: name}
}

// Index builds a list index step.
func Index(n int) Step {
	return Step{Kind: IndexStep, Index: n}
}

func (s Step) String() string {
	if s.Kind == IndexStep {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return "." + s.Name
}

// Selector is an ordered sequence of steps. The zero value addresses the root.
type Selector struct {
	text  string
	steps []Step
}

// NewSelector builds a selector from explicit steps.
func NewSelector(steps ...Step) Selector {
	clone := make([]Step, len(steps))
	copy(clone, steps)
	return Selector{steps: clone}
}

// MustParseSelector is ParseSelector for selectors known at compile time.
func MustParseSelector(text string) Selector {
	sel, err := ParseSelector(text)
	if err != nil {
		panic(err)
	}
	return sel
}

// ParseSelector turns text such as "$[0].elements[1].settings.title" or
// "[0].elements.[1].settings.title" into a selector.
func ParseSelector(text string) (Selector, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Selector{}, malformed(text, 0, "selector is empty")
	}
	pos := 0
	bareName := true
	if raw[0] == '$' {
		pos = 1
		bareName = false
	}
	var steps []Step
	for pos < len(raw) {
		switch raw[pos] {
		case '[':
			step, next, err := parseIndex(text, raw, pos)
			if err != nil {
				return Selector{}, err
			}
			steps = append(steps, step)
			pos = next
		case '.':
			pos++
			if pos >= len(raw) {
				return Selector{}, malformed(text, pos, "selector ends with '.'")
			}
			if raw[pos] == '[' {
				continue
			}
			name, next, err := parseName(text, raw, pos)
			if err != nil {
				return Selector{}, err
			}
			steps = append(steps, Field(name))
			pos = next
		default:
			if !bareName {
				return Selector{}, malformed(text, pos, "expected '.' or '['")
			}
			name, next, err := parseName(text, raw, pos)
			if err != nil {
				return Selector{}, err
			}
			steps = append(steps, Field(name))
			pos = next
		}
		bareName = false
	}
	return Selector{text: raw, steps: steps}, nil
}

func parseIndex(text, raw string, pos int) (Step, int, error) {
	end := strings.IndexByte(raw[pos:], ']')
	if end < 0 {
		return Step{}, 0, malformed(text, pos, "unterminated '['")
	}
	body := raw[pos+1 : pos+end]
	if body == "" {
		return Step{}, 0, malformed(text, pos, "empty index")
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return Step{}, 0, malformed(text, pos+1+i, "index must be a non-negative integer")
		}
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return Step{}, 0, malformed(text, pos+1, "index out of range")
	}
	return Index(n), pos + end + 1, nil
}

func parseName(text, raw string, pos int) (string, int, error) {
	start := pos
	for pos < len(raw) && raw[pos] != '.' && raw[pos] != '[' {
		if raw[pos] == ']' {
			return "", 0, malformed(text, pos, "unexpected ']'")
		}
		pos++
	}
	if pos == start {
		return "", 0, malformed(text, start, "empty field name")
	}
	return raw[start:pos], pos, nil
}

// Steps returns a copy of the selector's steps.
func (s Selector) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// Len reports the number of steps.
func (s Selector) Len() int {
	return len(s.steps)
}

// String returns the source text, or a canonical rendering for selectors
// built from steps.
func (s Selector) String() string {
	if s.text != "" {
		return s.text
	}
	var b strings.Builder
	b.WriteByte('$')
	for _, step := range s.steps {
		b.WriteString(step.String())
	}
	return b.String()
}

// Location is a matched node plus enough context to overwrite it in place.
type Location struct {
	parent any
	step   Step
	root   bool
	value  any
}

// Value returns the node found at the location.
func (l Location) Value() any {
	return l.value
}

// IsRoot reports whether the location is the document root.
func (l Location) IsRoot() bool {
	return l.root
}

// Evaluate walks the document from the root. A step that does not fit the
// current node ends the walk with no result; it is not an error.
func (d *Document) Evaluate(sel Selector) []Location {
	if d == nil {
		return nil
	}
	if len(sel.steps) == 0 {
		return []Location{{root: true, value: d.root}}
	}
	current := d.root
	var loc Location
	for _, step := range sel.steps {
		switch step.Kind {
		case FieldStep:
			node, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			child, ok := node[step.Name]
			if !ok {
				return nil
			}
			loc = Location{parent: node, step: step, value: child}
			current = child
		case IndexStep:
			node, ok := current.([]any)
			if !ok || step.Index < 0 || step.Index >= len(node) {
				return nil
			}
			loc = Location{parent: node, step: step, value: node[step.Index]}
			current = node[step.Index]
		default:
			return nil
		}
	}
	return []Location{loc}
}
