package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document owns the root node of a content tree.
type Document struct {
	root any
}

// New wraps an already decoded tree. The value is normalized so that nested
// Go structs and typed slices become plain maps and lists.
func New(root any) (*Document, error) {
	normalized, err := Normalize(root)
	if err != nil {
		return nil, err
	}
	return &Document{root: normalized}, nil
}

// Parse decodes JSON into a document. Numbers are kept as json.Number so
// identifiers survive a round trip unchanged.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("document: payload is empty")
	}
	root, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return &Document{root: root}, nil
}

// Root exposes the root node. Callers must not retain it across patches.
func (d *Document) Root() any {
	if d == nil {
		return nil
	}
	return d.root
}

// Clone returns a deep copy that shares no mutable state with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{root: CloneValue(d.root)}
}

// MarshalJSON encodes the tree compactly without HTML escaping.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Encode("")
}

// Encode serializes the tree. Map keys are written in sorted order so equal
// trees always produce identical bytes.
func (d *Document) Encode(indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	var root any
	if d != nil {
		root = d.root
	}
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CloneValue deep-copies maps and lists; scalars are returned as is.
func CloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = CloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = CloneValue(child)
		}
		return out
	default:
		return v
	}
}

// Normalize converts an arbitrary Go value into the plain node vocabulary.
// Plain trees are deep-copied; anything else goes through a JSON round trip.
func Normalize(value any) (any, error) {
	if isPlain(value) {
		return CloneValue(value), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("document: normalize %T: %w", value, err)
	}
	out, err := decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("document: normalize %T: %w", value, err)
	}
	return out, nil
}

func isPlain(value any) bool {
	switch v := value.(type) {
	case nil, string, bool, json.Number, float64:
		return true
	case map[string]any:
		for _, child := range v {
			if !isPlain(child) {
				return false
			}
		}
		return true
	case []any:
		for _, child := range v {
			if !isPlain(child) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}
	return root, nil
}
