package transcribe

import (
	"errors"
	"log/slog"
	"sync"
)

// EngineSettings are the settings an engine instance is built from.
type EngineSettings struct {
	Model       string
	ComputeType string
	// Device is recorded and compared but does not pick hardware: the
	// whisper.cpp bindings use whatever backend libwhisper was built with.
	Device      string
}

// Builder constructs a Transcriber for the given settings. It may take a
// long time (model download and load).
type Builder func(EngineSettings) (Transcriber, error)

// Engine holds a lazily built Transcriber. The first Transcribe builds it;
// Invalidate drops it so the next Transcribe rebuilds with new settings.
// An instance retired while a transcription is using it is closed when
// that transcription returns.
type Engine struct {
	build Builder

	mu       sync.Mutex
	settings EngineSettings
	gen      uint64
	cur      *instance
}

type instance struct {
	tr      Transcriber
	gen     uint64
	refs    int
	retired bool
}

// Compile-time interface assertion.
var _ Transcriber = (*Engine)(nil)

// NewEngine returns an empty holder that builds with build and settings.
func NewEngine(build Builder, settings EngineSettings) *Engine {
	return &Engine{build: build, settings: settings}
}

// Transcribe builds the engine if needed and runs one transcription.
func (e *Engine) Transcribe(samples []float32, opts Options) (Result, error) {
	inst, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer e.release(inst)
	return inst.tr.Transcribe(samples, opts)
}

// Loaded reports whether an engine instance is currently built.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil
}

// Invalidate replaces the build settings and drops the current instance.
// It never waits for a build or a transcription in progress.
func (e *Engine) Invalidate(settings EngineSettings) {
	e.mu.Lock()
	e.settings = settings
	e.gen++
	old := e.retire()
	e.mu.Unlock()

	closeInstance(old)
}

// Close drops the current instance. The engine can still be used after
// Close; the next Transcribe rebuilds it.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.gen++
	old := e.retire()
	e.mu.Unlock()

	if old != nil {
		return old.tr.Close()
	}
	return nil
}

// retire detaches cur and returns it if nobody is using it. Callers hold mu.
func (e *Engine) retire() *instance {
	old := e.cur
	e.cur = nil
	if old == nil {
		return nil
	}
	old.retired = true
	if old.refs > 0 {
		return nil
	}
	return old
}

func (e *Engine) acquire() (*instance, error) {
	for {
		e.mu.Lock()
		if e.cur != nil {
			e.cur.refs++
			inst := e.cur
			e.mu.Unlock()
			return inst, nil
		}
		settings, gen := e.settings, e.gen
		e.mu.Unlock()

		slog.Info("transcribe: loading engine", "model", settings.Model, "compute_type", settings.ComputeType, "device", settings.Device)
		tr, err := e.build(settings)
		if err != nil {
			var loadErr *ModelLoadError
			if !errors.As(err, &loadErr) {
				err = &ModelLoadError{Model: settings.Model, Err: err}
			}
			return nil, err
		}

		e.mu.Lock()
		switch {
		case e.gen != gen:
			// Settings changed while building; this instance is stale.
			e.mu.Unlock()
			closeInstance(&instance{tr: tr})
			continue
		case e.cur != nil:
			e.cur.refs++
			inst := e.cur
			e.mu.Unlock()
			closeInstance(&instance{tr: tr})
			return inst, nil
		}
		inst := &instance{tr: tr, gen: gen, refs: 1}
		e.cur = inst
		e.mu.Unlock()
		return inst, nil
	}
}

func (e *Engine) release(inst *instance) {
	e.mu.Lock()
	inst.refs--
	done := inst.retired && inst.refs == 0
	e.mu.Unlock()

	if done {
		closeInstance(inst)
	}
}

func closeInstance(inst *instance) {
	if inst == nil {
		return
	}
	if err := inst.tr.Close(); err != nil {
		slog.Warn("transcribe: close engine", "err", err)
	}
}
