package document

import "fmt"

// MalformedSelectorError reports selector text that is not a sequence of
// field and index steps.
type MalformedSelectorError struct {
	Text   string
	Offset int
	Reason string
}

func (e *MalformedSelectorError) Error() string {
	return fmt.Sprintf("document: malformed selector %q at offset %d: %s", e.Text, e.Offset, e.Reason)
}

func malformed(text string, offset int, reason string) error {
	return &MalformedSelectorError{Text: text, Offset: offset, Reason: reason}
}

// NoMatchError reports a selector that addressed nothing in the document.
type NoMatchError struct {
	Selector string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("document: no match for selector %s", e.Selector)
}

// AmbiguousMatchError reports more matches than the caller allowed.
type AmbiguousMatchError struct {
	Selector string
	Count    int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("document: selector %s matched %d locations; multiple matches not allowed", e.Selector, e.Count)
}
