package inject

import (
	"fmt"
	"log/slog"

	atotto "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

// Format is a clipboard representation.
type Format string

const (
	FormatText  Format = "text"
	FormatImage Format = "image"
)

// Snapshot is the clipboard content captured before a paste, keyed by
// representation. An empty Snapshot means the clipboard held nothing.
type Snapshot map[Format][]byte

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
	// Snapshot captures every representation the backend understands,
	// which may be fewer than the OS clipboard holds.
	Snapshot() (Snapshot, error)
	// Restore puts a snapshot back.
	Restore(s Snapshot) error
}

// NewClipboard returns the native multi-format clipboard, or the text-only
// fallback when the native backend cannot initialize (no cgo, no display).
func NewClipboard() Clipboard {
	native, err := NewNativeClipboard()
	if err != nil {
		slog.Warn("inject: native clipboard unavailable, using text-only fallback", "err", err)
		return TextClipboard{}
	}
	return native
}

// NativeClipboard uses golang.design/x/clipboard and preserves images as
// well as text. The library exposes only those two formats and each write
// replaces the whole clipboard, so HTML, RTF and file lists are not
// captured, and a clipboard holding both text and an image comes back as
// text only.
type NativeClipboard struct{}

// NewNativeClipboard initializes the platform clipboard.
func NewNativeClipboard() (*NativeClipboard, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("inject: init clipboard: %w", err)
	}
	return &NativeClipboard{}, nil
}

func (*NativeClipboard) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (*NativeClipboard) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (*NativeClipboard) Snapshot() (Snapshot, error) {
	s := Snapshot{}
	if b := clipboard.Read(clipboard.FmtText); len(b) > 0 {
		s[FormatText] = b
	}
	if b := clipboard.Read(clipboard.FmtImage); len(b) > 0 {
		s[FormatImage] = b
	}
	return s, nil
}

// Restore writes back the one representation restoreFormat picks.
func (*NativeClipboard) Restore(s Snapshot) error {
	f, data := restoreFormat(s)
	if f == FormatImage {
		clipboard.Write(clipboard.FmtImage, data)
		return nil
	}
	clipboard.Write(clipboard.FmtText, data)
	return nil
}

// restoreFormat chooses what a single-format write can put back: the image
// when it was the only representation, the text otherwise, and empty text
// when the clipboard held nothing.
func restoreFormat(s Snapshot) (Format, []byte) {
	text, hasText := s[FormatText]
	if img, hasImage := s[FormatImage]; hasImage && !hasText {
		return FormatImage, img
	}
	return FormatText, text
}

// TextClipboard is a text-only clipboard backed by atotto/clipboard.
type TextClipboard struct{}

func (TextClipboard) ReadText() (string, error) {
	return atotto.ReadAll()
}

func (TextClipboard) WriteText(text string) error {
	return atotto.WriteAll(text)
}

func (c TextClipboard) Snapshot() (Snapshot, error) {
	text, err := c.ReadText()
	if err != nil {
		return nil, err
	}
	s := Snapshot{}
	if text != "" {
		s[FormatText] = []byte(text)
	}
	return s, nil
}

func (c TextClipboard) Restore(s Snapshot) error {
	return c.WriteText(string(s[FormatText]))
}
