// Package snapshot keeps the local copy of every generated page document next
// to the entity's content files.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// FileName is the snapshot file written in each entity directory.
const FileName = "elementor_data.json"

// State describes a snapshot on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// Result describes one write.
type Result struct {
	Path      string
	Checksum  string
	Changed   bool
	WrittenAt time.Time
}

// CheckResult describes a snapshot found on disk.
type CheckResult struct {
	Path     string
	State    State
	Checksum string
	Err      error
}

// Store manages snapshot IO rooted at the content directory.
type Store struct {
	layout taxonomy.DirLayout
	indent string
	now    func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for write timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithIndent overrides the four-space indent.
func WithIndent(indent string) StoreOption {
	return func(s *Store) {
		s.indent = indent
	}
}

// NewStore builds a store over layout.
func NewStore(layout taxonomy.DirLayout, opts ...StoreOption) *Store {
	store := &Store{
		layout: layout,
		indent: "    ",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Path is the snapshot location for e.
func (s *Store) Path(e *taxonomy.Entity) string {
	return s.layout.Path(e, FileName)
}

// Write persists doc for e. Identical content is not rewritten.
func (s *Store) Write(e *taxonomy.Entity, doc *document.Document) (Result, error) {
	path := s.Path(e)
	encoded, err := doc.Encode(s.indent)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("snapshot: %s: %w", e, err)
	}
	encoded = append(encoded, '\n')
	result := Result{Path: path, Checksum: checksum(encoded), WrittenAt: s.now()}
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, encoded) {
		return result, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if err := writeAtomic(path, encoded); err != nil {
		return result, fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	result.Changed = true
	return result, nil
}

// Check inspects the snapshot for e.
func (s *Store) Check(e *taxonomy.Entity) (CheckResult, error) {
	path := s.Path(e)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Path: path, State: StateMissing}, nil
		}
		return CheckResult{Path: path, State: StateError, Err: err}, err
	}
	if _, err := document.Parse(data); err != nil {
		return CheckResult{Path: path, State: StateInvalid, Err: err}, err
	}
	return CheckResult{Path: path, State: StateReady, Checksum: checksum(data)}, nil
}

// Read loads the snapshot for e.
func (s *Store) Read(e *taxonomy.Entity) (*document.Document, error) {
	data, err := os.ReadFile(s.Path(e))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: %w", e, err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: %w", e, err)
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
