// Package inject delivers transcripts through the system clipboard,
// optionally pasting them into the focused application and restoring what
// the clipboard held before.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-ptt/internal/config"
)

const (
	// DefaultSettleDelay lets the OS propagate a clipboard write before the
	// paste keystroke.
	DefaultSettleDelay = 50 * time.Millisecond
	// DefaultRestoreDelay lets the target application read the clipboard
	// before the snapshot is put back.
	DefaultRestoreDelay = 150 * time.Millisecond
)

// ClipboardError is a failed clipboard read or write.
type ClipboardError struct {
	Op  string
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("inject: clipboard %s: %v", e.Op, e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// PasteError is a failed synthetic paste keystroke.
type PasteError struct {
	Err error
}

func (e *PasteError) Error() string {
	return fmt.Sprintf("inject: paste keystroke: %v", e.Err)
}

func (e *PasteError) Unwrap() error { return e.Err }

// Output applies transcripts to the clipboard.
type Output struct {
	Clipboard    Clipboard
	Keys         Keys
	Modifier     string
	SettleDelay  time.Duration
	RestoreDelay time.Duration

	sleep func(time.Duration)
}

// NewOutput creates an Output with the platform paste modifier and the
// default delays.
func NewOutput(cb Clipboard, keys Keys) *Output {
	return &Output{
		Clipboard:    cb,
		Keys:         keys,
		Modifier:     PasteModifier(),
		SettleDelay:  DefaultSettleDelay,
		RestoreDelay: DefaultRestoreDelay,
		sleep:        time.Sleep,
	}
}

// Apply writes text to the clipboard. In paste mode it also sends the paste
// shortcut, and with preserve set it restores the previous clipboard
// content afterwards. Failures are returned as ClipboardError or
// PasteError; nothing is retried.
func (o *Output) Apply(text string, mode config.OutputMode, preserve bool) error {
	if mode != config.OutputPaste {
		if err := o.Clipboard.WriteText(text); err != nil {
			return &ClipboardError{Op: "write", Err: err}
		}
		return nil
	}

	var snap Snapshot
	if preserve {
		s, err := o.Clipboard.Snapshot()
		if err != nil {
			// Paste anyway; only the restore is lost.
			slog.Warn("inject: clipboard snapshot failed", "err", err)
		} else {
			snap = s
		}
	}

	if err := o.Clipboard.WriteText(text); err != nil {
		return &ClipboardError{Op: "write", Err: err}
	}
	o.wait(o.SettleDelay)

	var errs []error
	if err := o.paste(); err != nil {
		errs = append(errs, err)
	}

	if snap != nil {
		o.wait(o.RestoreDelay)
		if err := o.Clipboard.Restore(snap); err != nil {
			errs = append(errs, &ClipboardError{Op: "restore", Err: err})
		}
	}
	return errors.Join(errs...)
}

// paste holds the modifier, taps "v" and always releases the modifier once
// it went down.
func (o *Output) paste() (err error) {
	if err := o.Keys.Down(o.Modifier); err != nil {
		return &PasteError{Err: err}
	}
	defer func() {
		if upErr := o.Keys.Up(o.Modifier); upErr != nil && err == nil {
			err = &PasteError{Err: upErr}
		}
	}()

	if err := o.Keys.Down("v"); err != nil {
		return &PasteError{Err: err}
	}
	if err := o.Keys.Up("v"); err != nil {
		return &PasteError{Err: err}
	}
	return nil
}

func (o *Output) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	if o.sleep != nil {
		o.sleep(d)
		return
	}
	time.Sleep(d)
}
