// Package notify shows session state and transcripts as desktop toasts.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/session"
)

// Desktop is a session.Indicator backed by beeep notifications.
type Desktop struct {
	mu        sync.Mutex
	showBar   bool
	showToast bool
	mode      session.Mode

	toast func(title, message string) error
}

// Compile-time interface assertion.
var _ session.Indicator = (*Desktop)(nil)

// NewDesktop creates an indicator with the display preferences in cfg.
func NewDesktop(cfg *config.Config) *Desktop {
	d := &Desktop{
		toast: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
	d.ApplyPreferences(cfg)
	return d
}

// ApplyPreferences takes the display settings from cfg.
func (d *Desktop) ApplyPreferences(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.showBar = cfg.ShowBar
	d.showToast = cfg.ShowTranscriptToast
}

// SetMode records the session mode.
func (d *Desktop) SetMode(m session.Mode) {
	d.mu.Lock()
	d.mode = m
	show := d.showBar
	d.mu.Unlock()

	if show {
		slog.Debug("notify: mode", "mode", m)
	}
}

// Mode returns the last mode set.
func (d *Desktop) Mode() session.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// ShowTranscript announces a delivered transcript, prefixed with the
// detected language. With transcript toasts turned off it only says
// "Copied".
func (d *Desktop) ShowTranscript(text, language string, confidence float64) {
	d.mu.Lock()
	show := d.showToast
	d.mu.Unlock()

	msg := "Copied"
	if show {
		msg = text
		if language != "" {
			msg = strings.ToUpper(language) + " " + text
		}
	}
	slog.Debug("notify: transcript", "language", language, "confidence", fmt.Sprintf("%.2f", confidence))
	d.send(msg)
}

// Notify raises a transient message.
func (d *Desktop) Notify(message string) {
	d.send(message)
}

func (d *Desktop) send(message string) {
	if err := d.toast(config.AppName, message); err != nil {
		slog.Warn("notify: toast failed", "message", message, "err", err)
	}
}
