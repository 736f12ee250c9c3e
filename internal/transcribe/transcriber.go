// Package transcribe runs speech recognition off the controller: the
// whisper.cpp engine, a lazily built engine holder and a single-slot job
// dispatcher.
package transcribe

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultBeamSize is the beam width used for every transcription.
const DefaultBeamSize = 5

// ErrBusy is returned by Dispatcher.Submit while a job is outstanding.
var ErrBusy = errors.New("transcribe: a transcription is already running")

// Transcriber converts audio samples to text.
type Transcriber interface {
	// Transcribe recognizes mono 16kHz float32 samples.
	Transcribe(samples []float32, opts Options) (Result, error)
	// Close releases backend resources.
	Close() error
}

// Options are the per-call engine parameters.
type Options struct {
	// Language is a language code, or empty to auto-detect.
	Language string
	// VAD trims leading and trailing silence before recognition.
	VAD      bool
	BeamSize int
}

// Result is a recognized transcript.
type Result struct {
	Text       string
	Language   string
	Confidence float64
}

// LanguageHint maps a configured language to an engine hint. "auto" and
// the empty string request auto-detection.
func LanguageHint(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "auto" {
		return ""
	}
	return lang
}

// EngineError is a failure raised by the engine during a transcription.
type EngineError struct {
	Msg string
	Err error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcribe: %s: %v", e.Msg, e.Err)
	}
	return "transcribe: " + e.Msg
}

func (e *EngineError) Unwrap() error { return e.Err }

// ModelLoadError is a failure to construct the engine.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("transcribe: load model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
