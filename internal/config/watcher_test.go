package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherIgnoresBaseline(t *testing.T) {
	path := writeFile(t, "config.json", `{"hotkey": "f8"}`)

	called := false
	w := NewWatcher(path, func(*Config) { called = true })

	if w.Check() {
		t.Error("Check() reported a change for the baseline content")
	}
	if called {
		t.Error("onChange called for the baseline content")
	}
}

func TestWatcherReportsEdit(t *testing.T) {
	path := writeFile(t, "config.json", `{"hotkey": "f8"}`)

	var got *Config
	w := NewWatcher(path, func(c *Config) { got = c })

	if err := os.WriteFile(path, []byte(`{"hotkey": "f7"}`), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	bumpMtime(t, path)

	if !w.Check() {
		t.Fatal("Check() did not report the edit")
	}
	if got == nil || got.Hotkey != "f7" {
		t.Errorf("onChange config = %+v, want hotkey f7", got)
	}

	if w.Check() {
		t.Error("second Check() without an edit should report nothing")
	}
}

func TestWatcherSkipsMalformedEdit(t *testing.T) {
	path := writeFile(t, "config.json", `{"hotkey":"f8","model":"small","outputMode":"paste","language":"fr"}`)

	var got []*Config
	w := NewWatcher(path, func(c *Config) { got = append(got, c) })

	for i, broken := range []string{
		`{"hotkey":"f8","model":"small",}`,
		``,
		`null`,
	} {
		if err := os.WriteFile(path, []byte(broken), 0644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		setMtime(t, path, time.Duration(i+1)*time.Minute)
		if w.Check() {
			t.Errorf("Check() reported a change for %q", broken)
		}
	}
	if len(got) != 0 {
		t.Fatalf("onChange called with %+v, want no calls for malformed content", got[0])
	}

	// A later valid edit is still picked up.
	if err := os.WriteFile(path, []byte(`{"hotkey":"f7","model":"small"}`), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	setMtime(t, path, time.Hour)
	if !w.Check() {
		t.Fatal("Check() did not report the valid edit")
	}
	if got[0].Hotkey != "f7" || got[0].Model != "small" {
		t.Errorf("onChange config = %+v, want hotkey f7 model small", got[0])
	}
}

func TestWatcherTouchWithoutEdit(t *testing.T) {
	path := writeFile(t, "config.json", `{"hotkey": "f8"}`)

	calls := 0
	w := NewWatcher(path, func(*Config) { calls++ })
	bumpMtime(t, path)

	if w.Check() {
		t.Error("Check() reported a change for identical content")
	}
	if calls != 0 {
		t.Errorf("onChange called %d times, want 0", calls)
	}
}

func TestWatcherFileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	var got *Config
	w := NewWatcher(path, func(c *Config) { got = c })
	if w.Check() {
		t.Error("Check() on a missing file should report nothing")
	}

	if err := os.WriteFile(path, []byte(`{"outputMode": "paste"}`), 0644); err != nil {
		t.Fatalf("create config: %v", err)
	}
	if !w.Check() {
		t.Fatal("Check() did not report the new file")
	}
	if got.OutputMode != OutputPaste {
		t.Errorf("OutputMode = %q, want paste", got.OutputMode)
	}
}

func bumpMtime(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func setMtime(t *testing.T, path string, ahead time.Duration) {
	t.Helper()
	at := time.Now().Add(ahead)
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}
