package inject

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/gostt-ptt/internal/config"
)

// memClipboard is an in-memory clipboard holding text and image content.
type memClipboard struct {
	text  string
	image []byte

	writes     []string
	snapErr    error
	writeErr   error
	restoreErr error
}

func (m *memClipboard) ReadText() (string, error) { return m.text, nil }

func (m *memClipboard) WriteText(text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, text)
	m.text = text
	m.image = nil
	return nil
}

func (m *memClipboard) Snapshot() (Snapshot, error) {
	if m.snapErr != nil {
		return nil, m.snapErr
	}
	s := Snapshot{}
	if m.text != "" {
		s[FormatText] = []byte(m.text)
	}
	if len(m.image) > 0 {
		s[FormatImage] = append([]byte(nil), m.image...)
	}
	return s, nil
}

func (m *memClipboard) Restore(s Snapshot) error {
	if m.restoreErr != nil {
		return m.restoreErr
	}
	m.text = string(s[FormatText])
	m.image = s[FormatImage]
	return nil
}

// recKeys records key toggles.
type recKeys struct {
	events  []string
	failOn  string
	pasteAt func()
}

func (k *recKeys) Down(key string) error {
	if k.failOn == "down "+key {
		return errors.New("injection blocked")
	}
	k.events = append(k.events, "down "+key)
	if key == "v" && k.pasteAt != nil {
		k.pasteAt()
	}
	return nil
}

func (k *recKeys) Up(key string) error {
	if k.failOn == "up "+key {
		return errors.New("injection blocked")
	}
	k.events = append(k.events, "up "+key)
	return nil
}

func newTestOutput(cb Clipboard, keys Keys) (*Output, *[]time.Duration) {
	var slept []time.Duration
	o := NewOutput(cb, keys)
	o.Modifier = "ctrl"
	o.sleep = func(d time.Duration) { slept = append(slept, d) }
	return o, &slept
}

func TestApplyClipboardMode(t *testing.T) {
	cb := &memClipboard{text: "previous"}
	keys := &recKeys{}
	o, slept := newTestOutput(cb, keys)

	if err := o.Apply("hello world", config.OutputClipboard, true); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if cb.text != "hello world" {
		t.Errorf("clipboard = %q, want hello world", cb.text)
	}
	if len(keys.events) != 0 {
		t.Errorf("clipboard mode sent keys %v", keys.events)
	}
	if len(*slept) != 0 {
		t.Errorf("clipboard mode waited %v", *slept)
	}
}

func TestApplyPasteKeyOrder(t *testing.T) {
	cb := &memClipboard{}
	keys := &recKeys{}
	o, slept := newTestOutput(cb, keys)

	if err := o.Apply("hi", config.OutputPaste, false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := []string{"down ctrl", "down v", "up v", "up ctrl"}
	if strings.Join(keys.events, ",") != strings.Join(want, ",") {
		t.Errorf("key events = %v, want %v", keys.events, want)
	}
	if cb.text != "hi" {
		t.Errorf("clipboard = %q, want hi (no restore without preserve)", cb.text)
	}
	if len(*slept) != 1 || (*slept)[0] != DefaultSettleDelay {
		t.Errorf("delays = %v, want [%v]", *slept, DefaultSettleDelay)
	}
}

func TestApplyPastePreservesClipboard(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		image []byte
	}{
		{"text", "user's clipboard", nil},
		{"image only", "", []byte{0x89, 'P', 'N', 'G'}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &memClipboard{text: tt.text, image: tt.image}
			var seenAtPaste string
			keys := &recKeys{pasteAt: func() { seenAtPaste = cb.text }}
			o, slept := newTestOutput(cb, keys)

			if err := o.Apply("hello world", config.OutputPaste, true); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if seenAtPaste != "hello world" {
				t.Errorf("clipboard at paste = %q, want transcript", seenAtPaste)
			}
			if cb.text != tt.text || !bytes.Equal(cb.image, tt.image) {
				t.Errorf("clipboard after = (%q, %v), want (%q, %v)", cb.text, cb.image, tt.text, tt.image)
			}
			want := []time.Duration{DefaultSettleDelay, DefaultRestoreDelay}
			if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
				t.Errorf("delays = %v, want %v", *slept, want)
			}
		})
	}
}

func TestApplyWriteFailure(t *testing.T) {
	cb := &memClipboard{writeErr: errors.New("clipboard locked")}
	keys := &recKeys{}
	o, _ := newTestOutput(cb, keys)

	err := o.Apply("hi", config.OutputPaste, true)
	var cbErr *ClipboardError
	if !errors.As(err, &cbErr) || cbErr.Op != "write" {
		t.Fatalf("Apply() error = %v, want write ClipboardError", err)
	}
	if len(keys.events) != 0 {
		t.Errorf("keys sent after failed write: %v", keys.events)
	}
}

func TestApplySnapshotFailureStillPastes(t *testing.T) {
	cb := &memClipboard{text: "old", snapErr: errors.New("unsupported format")}
	keys := &recKeys{}
	o, _ := newTestOutput(cb, keys)

	if err := o.Apply("hi", config.OutputPaste, true); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(keys.events) != 4 {
		t.Errorf("key events = %v, want a full paste", keys.events)
	}
	if cb.text != "hi" {
		t.Errorf("clipboard = %q, want hi (nothing to restore)", cb.text)
	}
}

func TestApplyPasteFailureReleasesModifierAndRestores(t *testing.T) {
	cb := &memClipboard{text: "old"}
	keys := &recKeys{failOn: "down v"}
	o, _ := newTestOutput(cb, keys)

	err := o.Apply("hi", config.OutputPaste, true)
	var pasteErr *PasteError
	if !errors.As(err, &pasteErr) {
		t.Fatalf("Apply() error = %v, want *PasteError", err)
	}
	want := []string{"down ctrl", "up ctrl"}
	if strings.Join(keys.events, ",") != strings.Join(want, ",") {
		t.Errorf("key events = %v, want %v", keys.events, want)
	}
	if cb.text != "old" {
		t.Errorf("clipboard = %q, want restored old", cb.text)
	}
}

func TestApplyModifierFailure(t *testing.T) {
	cb := &memClipboard{}
	keys := &recKeys{failOn: "down ctrl"}
	o, _ := newTestOutput(cb, keys)

	err := o.Apply("hi", config.OutputPaste, false)
	var pasteErr *PasteError
	if !errors.As(err, &pasteErr) {
		t.Fatalf("Apply() error = %v, want *PasteError", err)
	}
	if len(keys.events) != 0 {
		t.Errorf("key events = %v, want none", keys.events)
	}
}

func TestApplyRestoreFailure(t *testing.T) {
	cb := &memClipboard{text: "old", restoreErr: errors.New("denied")}
	o, _ := newTestOutput(cb, &recKeys{})

	err := o.Apply("hi", config.OutputPaste, true)
	var cbErr *ClipboardError
	if !errors.As(err, &cbErr) || cbErr.Op != "restore" {
		t.Fatalf("Apply() error = %v, want restore ClipboardError", err)
	}
}

func TestRestoreFormat(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		wantFmt  Format
		wantData string
	}{
		{"empty clipboard", Snapshot{}, FormatText, ""},
		{"text only", Snapshot{FormatText: []byte("a")}, FormatText, "a"},
		{"image only", Snapshot{FormatImage: []byte("png")}, FormatImage, "png"},
		{"text and image keeps text", Snapshot{FormatText: []byte("a"), FormatImage: []byte("png")}, FormatText, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, data := restoreFormat(tt.snap)
			if f != tt.wantFmt || string(data) != tt.wantData {
				t.Errorf("restoreFormat() = %s %q, want %s %q", f, data, tt.wantFmt, tt.wantData)
			}
		})
	}
}

func TestPasteModifier(t *testing.T) {
	tests := map[string]string{
		"darwin":  "cmd",
		"windows": "ctrl",
		"linux":   "ctrl",
	}
	for goos, want := range tests {
		if got := pasteModifier(goos); got != want {
			t.Errorf("pasteModifier(%q) = %q, want %q", goos, got, want)
		}
	}
}
