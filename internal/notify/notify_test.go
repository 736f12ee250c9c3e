package notify

import (
	"errors"
	"testing"

	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/session"
)

type toastRecorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *toastRecorder) toast(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func newTestDesktop(cfg *config.Config) (*Desktop, *toastRecorder) {
	rec := &toastRecorder{}
	d := NewDesktop(cfg)
	d.toast = rec.toast
	return d, rec
}

func TestShowTranscript(t *testing.T) {
	tests := []struct {
		name      string
		showToast bool
		lang      string
		want      string
	}{
		{"with language", true, "en", "EN hello world"},
		{"no language", true, "", "hello world"},
		{"toast off", false, "en", "Copied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ShowTranscriptToast = tt.showToast
			d, rec := newTestDesktop(cfg)

			d.ShowTranscript("hello world", tt.lang, 0.92)
			if len(rec.messages) != 1 || rec.messages[0] != tt.want {
				t.Errorf("toasts = %v, want [%q]", rec.messages, tt.want)
			}
			if rec.titles[0] != config.AppName {
				t.Errorf("title = %q, want %q", rec.titles[0], config.AppName)
			}
		})
	}
}

func TestApplyPreferences(t *testing.T) {
	d, rec := newTestDesktop(config.Default())

	cfg := config.Default()
	cfg.ShowTranscriptToast = false
	d.ApplyPreferences(cfg)

	d.ShowTranscript("hi", "en", 1)
	if rec.messages[0] != "Copied" {
		t.Errorf("toast = %q after turning transcript toasts off", rec.messages[0])
	}
}

func TestNotifyToastFailureIsSwallowed(t *testing.T) {
	d, rec := newTestDesktop(config.Default())
	rec.err = errors.New("no notification daemon")

	d.Notify("no speech")
	if len(rec.messages) != 1 || rec.messages[0] != "no speech" {
		t.Errorf("toasts = %v", rec.messages)
	}
}

func TestSetMode(t *testing.T) {
	d, rec := newTestDesktop(config.Default())

	d.SetMode(session.ModeRecording)
	if d.Mode() != session.ModeRecording {
		t.Errorf("Mode() = %v, want recording", d.Mode())
	}
	if len(rec.messages) != 0 {
		t.Errorf("mode change raised toasts %v", rec.messages)
	}
}
