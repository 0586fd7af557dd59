// Package identity maps expert names onto CMS user identifiers.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID accepts both numeric and string identifiers when decoding.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *UserID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("identity: user id %s: %w", trimmed, err)
	}
	*id = UserID(n.String())
	return nil
}

// User is one entry of the directory snapshot.
type User struct {
	ID          UserID `json:"ID"`
	Login       string `json:"user_login"`
	DisplayName string `json:"display_name"`
	Email       string `json:"user_email,omitempty"`
}

// Directory is a read-only snapshot of CMS users in the order supplied.
type Directory []User

// ParseDirectory decodes the JSON emitted by `wp user list --format=json`.
func ParseDirectory(data []byte) (Directory, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var dir Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("identity: decode user list: %w", err)
	}
	return dir, nil
}

// Resolve returns the id of the first user whose display name or login
// contains name, compared case-insensitively. There is no scoring: directory
// order breaks ties. An empty name matches the first user, so callers filter
// blanks before asking.
func (d Directory) Resolve(name string) (string, bool) {
	needle := strings.ToLower(name)
	for _, user := range d {
		if strings.Contains(strings.ToLower(user.DisplayName), needle) ||
			strings.Contains(strings.ToLower(user.Login), needle) {
			return string(user.ID), true
		}
	}
	return "", false
}

// Lookup is the immutable name → id table built once per run and shared by
// all workers.
type Lookup struct {
	ids     map[string]string
	missing []string
}

// BuildLookup resolves every distinct non-blank name against dir.
func BuildLookup(dir Directory, names []string) *Lookup {
	l := &Lookup{ids: map[string]string{}}
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if id, ok := dir.Resolve(name); ok {
			l.ids[name] = id
		} else {
			l.missing = append(l.missing, name)
		}
	}
	return l
}

// ID returns the resolved id for name.
func (l *Lookup) ID(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	id, ok := l.ids[strings.TrimSpace(name)]
	return id, ok
}

// IDs resolves names in order, returning the ids found and the names that
// were not.
func (l *Lookup) IDs(names []string) (ids, missing []string) {
	for _, name := range names {
		if id, ok := l.ID(name); ok {
			ids = append(ids, id)
		} else {
			missing = append(missing, name)
		}
	}
	return ids, missing
}

// Missing lists names with no directory match, in first-seen order.
func (l *Lookup) Missing() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.missing...)
}

// ExpertWidget renders the experts shortcode for a list of user ids.
func ExpertWidget(ids []string) string {
	return fmt.Sprintf(`[red_experts_widget user_ids="%s"]`, strings.Join(ids, ","))
}
