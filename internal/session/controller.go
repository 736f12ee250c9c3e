package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-ptt/internal/audio"
	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/inject"
	"github.com/chaz8081/gostt-ptt/internal/observe"
	"github.com/chaz8081/gostt-ptt/internal/transcribe"
)

// inboxSize bounds the messages queued ahead of the loop.
const inboxSize = 64

// ErrStopped is returned by queries once Run has returned.
var ErrStopped = errors.New("session: controller stopped")

type message any

type (
	pressedMsg    struct{}
	releasedMsg   struct{ explicit bool }
	settingsMsg   struct{ cfg *config.Config }
	completionMsg struct{ c transcribe.Completion }
	phaseQuery    struct{ reply chan Phase }
	settingsQuery struct{ reply chan *config.Config }
)

// Controller is the push-to-talk state machine.
type Controller struct {
	rec     Recorder
	sub     Submitter
	out     Output
	ind     Indicator
	sink    SettingsSink
	metrics *observe.Metrics
	now     func() time.Time

	inbox chan message
	done  chan struct{}

	// Owned by the Run goroutine.
	ctx      context.Context
	phase    Phase
	cfg      *config.Config
	id       string
	log      *slog.Logger
	recStart time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records session metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a Controller in Idle with the given settings.
func New(cfg *config.Config, rec Recorder, sub Submitter, out Output, ind Indicator, sink SettingsSink, opts ...Option) *Controller {
	c := &Controller{
		rec:     rec,
		sub:     sub,
		out:     out,
		ind:     ind,
		sink:    sink,
		metrics: observe.Discard(),
		now:     time.Now,
		inbox:   make(chan message, inboxSize),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		cfg:     cfg.Clone(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pressed reports a push-to-talk key press.
func (c *Controller) Pressed() { c.post(pressedMsg{}) }

// Released reports a push-to-talk key release.
func (c *Controller) Released() { c.post(releasedMsg{}) }

// RequestStop ends a recording as if the key had been released.
func (c *Controller) RequestStop() { c.post(releasedMsg{explicit: true}) }

// UpdateSettings replaces the settings. An update equal to the current
// settings is ignored.
func (c *Controller) UpdateSettings(cfg *config.Config) { c.post(settingsMsg{cfg: cfg.Clone()}) }

// Deliver hands a finished transcription to the loop. It is the
// Dispatcher's sink.
func (c *Controller) Deliver(comp transcribe.Completion) { c.post(completionMsg{c: comp}) }

// Phase returns the current phase as seen by the loop, after every message
// posted before the call has been handled.
func (c *Controller) Phase(ctx context.Context) (Phase, error) {
	reply := make(chan Phase, 1)
	if err := c.query(ctx, phaseQuery{reply: reply}); err != nil {
		return Idle, err
	}
	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return Idle, ctx.Err()
	case <-c.done:
		return Idle, ErrStopped
	}
}

// Settings returns a copy of the current settings.
func (c *Controller) Settings(ctx context.Context) (*config.Config, error) {
	reply := make(chan *config.Config, 1)
	if err := c.query(ctx, settingsQuery{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case cfg := <-reply:
		return cfg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// Run handles messages one at a time until ctx is done. A recording still
// active at that point is discarded. Run must be called once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.ctx = ctx

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

func (c *Controller) post(m message) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

func (c *Controller) query(ctx context.Context, m message) error {
	select {
	case c.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// handle runs one transition. A panic in a collaborator is logged and the
// loop keeps going.
func (c *Controller) handle(m message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("session: transition panic", "phase", c.phase, "panic", r)
		}
	}()

	switch m := m.(type) {
	case pressedMsg:
		c.onPressed()
	case releasedMsg:
		c.onReleased(m.explicit)
	case completionMsg:
		c.onCompletion(m.c)
	case settingsMsg:
		c.onSettings(m.cfg)
	case phaseQuery:
		m.reply <- c.phase
	case settingsQuery:
		m.reply <- c.cfg.Clone()
	}
}

func (c *Controller) onPressed() {
	switch c.phase {
	case Recording:
		return
	case Transcribing:
		c.log.Debug("session: press ignored while transcribing")
		return
	}

	c.id = uuid.NewString()
	c.log = slog.With("session", c.id)

	if err := c.rec.Start(); err != nil {
		c.log.Error("session: start recording", "err", err)
		c.report("Microphone unavailable", err)
		c.metrics.RecordSession(c.ctx, observe.OutcomeMicError)
		c.ind.SetMode(ModeIdle)
		return
	}
	c.recStart = c.now()
	c.phase = Recording
	c.ind.SetMode(ModeRecording)
	c.log.Info("session: recording")
}

func (c *Controller) onReleased(explicit bool) {
	if c.phase != Recording {
		return
	}

	samples := c.rec.Stop()
	held := c.now().Sub(c.recStart)
	c.metrics.RecordRecording(c.ctx, held)
	if n := c.rec.Warnings(); n > 0 {
		c.log.Warn("session: audio stream warnings", "count", n)
	}
	c.log.Info("session: recording stopped", "samples", len(samples), "held", held, "explicit", explicit)

	if len(samples) == 0 {
		c.toIdle()
		c.metrics.RecordSession(c.ctx, observe.OutcomeEmptyAudio)
		return
	}

	job := transcribe.Job{
		ID:      c.id,
		Samples: samples,
		Options: transcribe.Options{
			Language: c.cfg.Language,
			VAD:      c.cfg.VADFilter,
			BeamSize: transcribe.DefaultBeamSize,
		},
	}
	if err := c.sub.Submit(job); err != nil {
		c.log.Error("session: submit transcription", "err", err)
		c.report("Transcription failed", err)
		c.metrics.RecordSession(c.ctx, observe.OutcomeFailed)
		c.toIdle()
		return
	}
	c.phase = Transcribing
	c.ind.SetMode(ModeWorking)
}

func (c *Controller) onCompletion(comp transcribe.Completion) {
	if c.phase != Transcribing || comp.ID != c.id {
		c.log.Warn("session: unexpected completion", "job", comp.ID, "phase", c.phase)
		return
	}
	defer c.toIdle()

	c.metrics.RecordTranscription(c.ctx, comp.Duration)
	if comp.Err != nil {
		c.log.Error("session: transcription failed", "err", comp.Err, "took", comp.Duration)
		c.report("Transcription failed", comp.Err)
		c.metrics.RecordSession(c.ctx, observe.OutcomeFailed)
		return
	}

	res := comp.Result
	text := strings.TrimSpace(res.Text)
	c.log.Info("session: transcribed", "chars", len(text), "language", res.Language,
		"confidence", res.Confidence, "took", comp.Duration)
	if text == "" {
		c.ind.Notify("No speech detected")
		c.metrics.RecordSession(c.ctx, observe.OutcomeNoSpeech)
		return
	}

	c.metrics.RecordSession(c.ctx, observe.OutcomeTranscribed)
	if err := c.out.Apply(text, c.cfg.OutputMode, c.cfg.PreserveClipboard); err != nil {
		c.log.Error("session: output", "mode", c.cfg.OutputMode, "err", err)
		c.report("Could not deliver transcript", err)
		return
	}
	c.ind.ShowTranscript(text, res.Language, res.Confidence)
}

func (c *Controller) onSettings(cfg *config.Config) {
	if cfg.Equal(c.cfg) {
		return
	}
	old := c.cfg
	c.cfg = cfg
	c.log.Info("session: settings updated", "phase", c.phase)

	if err := c.sink.Persist(cfg); err != nil {
		c.log.Warn("session: persist settings", "err", err)
	}
	if cfg.Hotkey != old.Hotkey {
		c.sink.Rebind(cfg.Hotkey)
	}
	c.sink.Invalidate(cfg)
	c.ind.ApplyPreferences(cfg)
}

func (c *Controller) shutdown() {
	if c.phase == Recording {
		samples := c.rec.Stop()
		c.log.Info("session: recording discarded at shutdown", "samples", len(samples))
		c.phase = Idle
		c.ind.SetMode(ModeIdle)
	}
}

func (c *Controller) toIdle() {
	c.phase = Idle
	c.ind.SetMode(ModeIdle)
}

// report shows a failure and counts it by kind.
func (c *Controller) report(what string, err error) {
	c.metrics.RecordError(c.ctx, errorKind(err))
	c.ind.Notify(fmt.Sprintf("%s: %v", what, err))
}

func errorKind(err error) string {
	var (
		devErr   *audio.DeviceError
		loadErr  *transcribe.ModelLoadError
		engErr   *transcribe.EngineError
		cbErr    *inject.ClipboardError
		pasteErr *inject.PasteError
	)
	switch {
	case errors.As(err, &devErr):
		return "audio_device"
	case errors.As(err, &loadErr):
		return "model_load"
	case errors.As(err, &engErr):
		return "transcription"
	case errors.As(err, &cbErr):
		return "clipboard"
	case errors.As(err, &pasteErr):
		return "paste"
	case errors.Is(err, transcribe.ErrBusy):
		return "busy"
	default:
		return "other"
	}
}
