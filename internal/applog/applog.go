// Package applog is the application log sink: text lines to stderr and an
// append-only file in the data directory.
package applog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
)

// Open returns a logger writing to stderr and appending to the file at
// path. Close the returned file on shutdown.
func Open(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	return open(path, level, os.Stderr)
}

func open(path string, level slog.Level, console io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("applog: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("applog: open %s: %w", path, err)
	}

	h := slog.NewTextHandler(io.MultiWriter(console, f), &slog.HandlerOptions{Level: level})
	return slog.New(h), f, nil
}

// OpenInViewer hands the log file to the platform's default viewer.
func OpenInViewer(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("applog: %w", err)
	}
	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("applog: open viewer: %w", err)
	}
	return nil
}
