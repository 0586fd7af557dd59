package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/sectorpages/internal/taxonomy"
)

func TestEnsureCreatesDirectoriesAndReportsMissingFiles(t *testing.T) {
	root := t.TempDir()
	layout := taxonomy.DirLayout{Root: root}
	entities := []taxonomy.Entity{
		{Level: taxonomy.L1, Sector: "Consumer", Slug: "consumer"},
		{Level: taxonomy.L2, Sector: "Consumer", Subsector: "TMT", Slug: "tmt"},
	}
	if err := os.MkdirAll(filepath.Join(root, "Consumer"), 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "Consumer", "hero-heading.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	report, err := Ensure(layout, entities)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(report.Existing) != 1 || report.Existing[0] != filepath.Join(root, "Consumer") {
		t.Fatalf("unexpected existing dirs %v", report.Existing)
	}
	if len(report.Created) != 1 || report.Created[0] != filepath.Join(root, "Consumer", "TMT") {
		t.Fatalf("unexpected created dirs %v", report.Created)
	}
	if len(report.Missing) != 2+4 {
		t.Fatalf("expected 6 missing files, got %v", report.Missing)
	}
	if report.Complete() {
		t.Fatalf("report should not be complete")
	}
	if _, err := os.Stat(filepath.Join(root, "Consumer", "TMT", "hero-heading.txt")); !os.IsNotExist(err) {
		t.Fatalf("placeholder content must not be written")
	}
}

func TestEnsureRejectsFileInPlaceOfDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Fintech"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := Ensure(taxonomy.DirLayout{Root: root}, []taxonomy.Entity{{Level: taxonomy.L1, Sector: "Fintech", Slug: "fintech"}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestExpectedFiles(t *testing.T) {
	if got := ExpectedFiles(taxonomy.L3); len(got) != 4 || got[0] != "tab-description.txt" {
		t.Fatalf("unexpected L3 files %v", got)
	}
	if ExpectedFiles("L9") != nil {
		t.Fatalf("unknown level should have no files")
	}
}
