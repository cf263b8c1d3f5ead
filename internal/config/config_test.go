package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMatcherFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matchers.yaml")
	content := `matchers:
  - name: TITLE
    pattern: "0;(.*)"
  - name: STATUS
    pattern: "9;4;(\\d)"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	defs, err := LoadMatcherFile(path)
	if err != nil {
		t.Fatalf("LoadMatcherFile: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if defs[0].Name != "TITLE" || defs[0].Pattern != "0;(.*)" {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if defs[1].Name != "STATUS" || defs[1].Pattern != `9;4;(\d)` {
		t.Errorf("defs[1] = %+v", defs[1])
	}
}

func TestLoadMatcherFileMissing(t *testing.T) {
	if _, err := LoadMatcherFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLogFileName(t *testing.T) {
	now := time.Date(2026, 1, 23, 14, 30, 52, 0, time.Local)
	if got := LogFileName(now); got != "20260123_143052.jsonl" {
		t.Errorf("LogFileName = %q", got)
	}
}

func TestOpenLogFileCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	f, path, err := OpenLogFile(dir, time.Now())
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer f.Close()

	if filepath.Dir(path) != dir {
		t.Errorf("log path %q not under %q", path, dir)
	}
	if _, err := f.WriteString("{}\n"); err != nil {
		t.Errorf("write to log file: %v", err)
	}
}
