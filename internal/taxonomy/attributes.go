package taxonomy

import "strings"

// AttributeSet is a de-duplicating sequence that remembers first-seen order,
// so output built from it is reproducible. Sets are small (a handful of
// expert names) and membership is checked linearly.
type AttributeSet struct {
	items []string
}

// NewAttributeSet builds a set from items, dropping blanks and duplicates.
func NewAttributeSet(items ...string) AttributeSet {
	var s AttributeSet
	s.Add(items...)
	return s
}

// ParseAttributes splits a comma separated list.
func ParseAttributes(raw string) AttributeSet {
	return NewAttributeSet(strings.Split(raw, ",")...)
}

// Add appends items that are not already present.
func (s *AttributeSet) Add(items ...string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || s.Contains(item) {
			continue
		}
		s.items = append(s.items, item)
	}
}

// Union adds every member of other, keeping s's existing order first.
func (s *AttributeSet) Union(other AttributeSet) {
	s.Add(other.items...)
}

// Contains reports membership.
func (s AttributeSet) Contains(item string) bool {
	for _, existing := range s.items {
		if existing == item {
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (s AttributeSet) Len() int {
	return len(s.items)
}

// Empty reports whether the set has no members.
func (s AttributeSet) Empty() bool {
	return len(s.items) == 0
}

// Items returns a copy of the members in order.
func (s AttributeSet) Items() []string {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns a set that shares no storage with s.
func (s AttributeSet) Clone() AttributeSet {
	return AttributeSet{items: s.Items()}
}

func (s AttributeSet) String() string {
	return strings.Join(s.items, ", ")
}
