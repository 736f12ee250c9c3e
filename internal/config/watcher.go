package config

import (
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a settings file and reports edited content. It uses polling
// rather than filesystem notifications so a file replaced by rename is seen
// the same way as one written in place.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(*Config)

	mu        sync.Mutex
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 2 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a watcher for path. The file's current content is the
// baseline; onChange only fires for later edits.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		interval: 2 * time.Second,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	if data, mtime, err := w.read(); err == nil {
		w.lastHash = sha256.Sum256(data)
		w.lastMtime = mtime
	}
	return w
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check reads the file once and calls onChange if its content differs from
// the last content seen and decodes as settings. It reports whether
// onChange was called.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.lastMtime)
	w.mu.Unlock()
	if unchanged {
		return false
	}

	data, mtime, err := w.read()
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return false
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	w.lastMtime = mtime
	if hash == w.lastHash {
		w.mu.Unlock()
		return false
	}
	w.lastHash = hash
	w.mu.Unlock()

	cfg, err := Decode(data, isYAML(w.path))
	if err != nil {
		// Half-written or hand-broken files are skipped; the current
		// settings stay in effect until the next valid edit.
		slog.Warn("config watcher: ignoring unreadable settings", "path", w.path, "err", err)
		return false
	}
	slog.Info("config watcher: settings file changed", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
	return true
}

func (w *Watcher) read() ([]byte, time.Time, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
