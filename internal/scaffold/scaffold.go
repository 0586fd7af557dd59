// Package scaffold prepares the content directory tree and reports which
// content files authors still have to write.
package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// ExpectedFiles lists the text files each level's pages read.
func ExpectedFiles(level taxonomy.Level) []string {
	switch level {
	case taxonomy.L1:
		return []string{"hero-heading.txt", "hero-byline.txt", "expert-names.txt"}
	case taxonomy.L2, taxonomy.L3:
		return []string{"tab-description.txt", "hero-heading.txt", "second-fold-description.txt", "expert-names.txt"}
	}
	return nil
}

// Report summarizes one Ensure call. Paths are absolute.
type Report struct {
	Created  []string
	Existing []string
	Missing  []string
}

// Complete reports whether every expected file is present.
func (r Report) Complete() bool {
	return len(r.Missing) == 0
}

// Ensure creates each entity's directory and lists missing content files.
// It never writes placeholder content.
func Ensure(layout taxonomy.DirLayout, entities []taxonomy.Entity) (Report, error) {
	var report Report
	for i := range entities {
		e := &entities[i]
		dir := layout.Dir(e)
		info, err := os.Stat(dir)
		switch {
		case err == nil && !info.IsDir():
			return report, fmt.Errorf("scaffold: %s exists and is not a directory", dir)
		case err == nil:
			report.Existing = append(report.Existing, dir)
		case errors.Is(err, fs.ErrNotExist):
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return report, fmt.Errorf("scaffold: create %s: %w", dir, err)
			}
			report.Created = append(report.Created, dir)
		default:
			return report, fmt.Errorf("scaffold: stat %s: %w", dir, err)
		}
		for _, name := range ExpectedFiles(e.Level) {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				report.Missing = append(report.Missing, path)
			}
		}
	}
	return report, nil
}
