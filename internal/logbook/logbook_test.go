package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestTailOnMissingFile(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "logs", "journal.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	lines, total := book.Tail(10)
	if lines != nil || total != 0 {
		t.Fatalf("expected empty tail, got %v %d", lines, total)
	}
}

func TestEntriesParseLevelsAndFoldMessages(t *testing.T) {
	fixed := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	book, err := New(filepath.Join(t.TempDir(), "journal.log"), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("L2:Consumer/Retail: skipped %s", "hero")
	book.Error("multi\nline   failure")

	entries, total := book.Entries(10)
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d/%d", len(entries), total)
	}
	if entries[0].Level != LevelWarn || entries[0].Message != "L2:Consumer/Retail: skipped hero" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if !entries[0].Time.Equal(fixed) {
		t.Fatalf("clock ignored: %v", entries[0].Time)
	}
	if entries[1].Level != LevelError || entries[1].Message != "multi line failure" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestParseEntryKeepsForeignLines(t *testing.T) {
	entry := ParseEntry("not a journal line")
	if entry.Level != "" || entry.Message != "not a journal line" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
