package logging

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesJSONLinesToProjectLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, Options{})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("page updated", zap.String("entity", "L1:Consumer"))
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "page updated" || entry["entity"] != "L1:Consumer" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestVerboseEnablesDebug(t *testing.T) {
	logger, err := New(t.TempDir(), Options{Verbose: true})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("template loaded")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "template loaded") {
		t.Fatalf("debug entry missing: %s", data)
	}
}
