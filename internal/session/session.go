// Package session is the push-to-talk state machine. A Controller owns the
// session state and changes it only from its Run loop; hotkey edges,
// transcription completions and settings updates reach it as messages.
package session

import (
	"fmt"

	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/transcribe"
)

// Phase is the session state.
type Phase int

const (
	Idle Phase = iota
	Recording
	Transcribing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Mode is what the indicator shows.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModeWorking
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModeWorking:
		return "working"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Recorder captures microphone audio.
type Recorder interface {
	Start() error
	Stop() []float32
	Warnings() int64
}

// Submitter runs transcription jobs in the background.
type Submitter interface {
	Submit(job transcribe.Job) error
}

// Output delivers a transcript.
type Output interface {
	Apply(text string, mode config.OutputMode, preserve bool) error
}

// Indicator shows session state and transient messages to the user.
type Indicator interface {
	SetMode(m Mode)
	ShowTranscript(text, language string, confidence float64)
	Notify(message string)
	ApplyPreferences(cfg *config.Config)
}

// SettingsSink reacts to an accepted settings change.
type SettingsSink interface {
	Persist(cfg *config.Config) error
	Rebind(hotkey string)
	Invalidate(cfg *config.Config)
}
