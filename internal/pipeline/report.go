package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrReportNotFound is returned when no run has been recorded yet.
var ErrReportNotFound = errors.New("pipeline: run report not found")

// Status is the outcome of one entity.
type Status string

const (
	StatusUpdated Status = "updated"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// RunStatus summarizes the whole run.
type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunPartial  RunStatus = "partial"
	RunAborted  RunStatus = "aborted"
)

// EntityResult records what happened to one entity.
type EntityResult struct {
	Entity        string        `json:"entity"`
	Level         string        `json:"level"`
	Slug          string        `json:"slug"`
	Status        Status        `json:"status"`
	PageID        string        `json:"page_id,omitempty"`
	Created       bool          `json:"created,omitempty"`
	Snapshot      string        `json:"snapshot,omitempty"`
	Changed       bool          `json:"changed,omitempty"`
	Applied       int           `json:"applied"`
	SkippedAssets int           `json:"skipped_assets,omitempty"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
}

// Report is the persisted record of a run.
type Report struct {
	RunID          string         `json:"run_id"`
	Mode           Mode           `json:"mode"`
	Levels         []string       `json:"levels"`
	Status         RunStatus      `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Entities       []EntityResult `json:"entities"`
	MissingExperts []string       `json:"missing_experts,omitempty"`
	FlushError     string         `json:"flush_error,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Counts tallies entity outcomes.
func (r *Report) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, res := range r.Entities {
		counts[res.Status]++
	}
	return counts
}

// Failed lists the failed entity results.
func (r *Report) Failed() []EntityResult {
	var out []EntityResult
	for _, res := range r.Entities {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Repository stores the last run report within the state directory.
type Repository struct {
	path string
}

// NewRepository creates a repository writing stateDir/last-run.json.
func NewRepository(stateDir string) *Repository {
	return &Repository{path: filepath.Join(stateDir, "last-run.json")}
}

// Path returns the report file location.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted report if present.
func (r *Repository) Load() (*Report, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("pipeline: decode %s: %w", r.path, err)
	}
	return &report, nil
}

// Save writes the report to disk.
func (r *Repository) Save(report *Report) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, append(encoded, '\n'), 0o644)
}
