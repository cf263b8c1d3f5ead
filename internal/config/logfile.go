package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFileName returns the per-run log filename, e.g. "20260123_143052.jsonl".
func LogFileName(now time.Time) string {
	return now.Format("20060102_150405") + ".jsonl"
}

// OpenLogFile creates the output directory if needed and opens a fresh
// append-only log file in it. Returns the open file and its path.
func OpenLogFile(dir string, now time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, LogFileName(now))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, path, nil
}
