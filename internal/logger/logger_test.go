package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesJSONLog(t *testing.T) {
	root := t.TempDir()

	cleanup, err := Setup(Config{Root: root, Level: "DEBUG"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	L().Info("test entry", "project_id", "abc123")

	wantPath := filepath.Join(root, "logs", "scorepress.log")
	if Path() != wantPath {
		t.Errorf("Path() = %q, want %q", Path(), wantPath)
	}

	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var found bool
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if entry["msg"] == "test entry" {
			found = true
			if entry["project_id"] != "abc123" {
				t.Errorf("attribute lost: %v", entry)
			}
		}
	}
	if !found {
		t.Error("logged entry not found in file")
	}

	if Path() != "" {
		t.Error("Path should reset after cleanup")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
