package document

import "fmt"

// Patch replaces the node(s) addressed by sel with value. It fails with
// NoMatchError when nothing matches and with AmbiguousMatchError when more
// than one location matches and allowMultiple is false. The document is
// mutated in place; clone it first when isolation is needed.
func (d *Document) Patch(sel Selector, value any, allowMultiple bool) error {
	if d == nil {
		return fmt.Errorf("document: patch on nil document")
	}
	node, err := Normalize(value)
	if err != nil {
		return err
	}
	return d.replace(sel, d.Evaluate(sel), node, allowMultiple)
}

func (d *Document) replace(sel Selector, locations []Location, node any, allowMultiple bool) error {
	switch {
	case len(locations) == 0:
		return &NoMatchError{Selector: sel.String()}
	case len(locations) > 1 && !allowMultiple:
		return &AmbiguousMatchError{Selector: sel.String(), Count: len(locations)}
	}
	for i, loc := range locations {
		replacement := node
		if i > 0 {
			replacement = CloneValue(node)
		}
		if err := d.set(loc, replacement); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) set(loc Location, value any) error {
	if loc.root {
		d.root = value
		return nil
	}
	switch parent := loc.parent.(type) {
	case map[string]any:
		parent[loc.step.Name] = value
	case []any:
		parent[loc.step.Index] = value
	default:
		return fmt.Errorf("document: location parent is %T", loc.parent)
	}
	return nil
}
