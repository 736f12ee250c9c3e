package transcribe

import (
	"errors"
	"sync"
	"testing"
)

// fakeTranscriber records calls and returns a canned result.
type fakeTranscriber struct {
	mu       sync.Mutex
	settings EngineSettings
	result   Result
	err      error
	panicMsg string
	block    chan struct{}
	calls    []Options
	samples  [][]float32
	closed   bool
}

func (f *fakeTranscriber) Transcribe(samples []float32, opts Options) (Result, error) {
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.samples = append(f.samples, samples)
	return f.result, f.err
}

func (f *fakeTranscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTranscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeBuilder hands out fakeTranscribers and remembers them.
type fakeBuilder struct {
	mu    sync.Mutex
	built []*fakeTranscriber
	err   error
	block chan struct{}
}

func (b *fakeBuilder) build(s EngineSettings) (Transcriber, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	tr := &fakeTranscriber{settings: s, result: Result{Text: s.Model}}
	b.built = append(b.built, tr)
	return tr, nil
}

func (b *fakeBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.built)
}

func TestEngineBuildsLazilyOnce(t *testing.T) {
	b := &fakeBuilder{}
	e := NewEngine(b.build, EngineSettings{Model: "base"})

	if e.Loaded() || b.count() != 0 {
		t.Fatal("NewEngine should not build")
	}
	for i := 0; i < 3; i++ {
		res, err := e.Transcribe([]float32{1}, Options{})
		if err != nil {
			t.Fatalf("Transcribe() error = %v", err)
		}
		if res.Text != "base" {
			t.Errorf("Text = %q, want base", res.Text)
		}
	}
	if b.count() != 1 {
		t.Errorf("built %d engines, want 1", b.count())
	}
	if !e.Loaded() {
		t.Error("Loaded() = false after use")
	}
}

func TestEngineInvalidateRebuildsWithNewSettings(t *testing.T) {
	b := &fakeBuilder{}
	e := NewEngine(b.build, EngineSettings{Model: "base"})

	if _, err := e.Transcribe(nil, Options{}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	e.Invalidate(EngineSettings{Model: "small"})

	if e.Loaded() {
		t.Error("Loaded() = true after Invalidate")
	}
	if !b.built[0].isClosed() {
		t.Error("idle instance should be closed on Invalidate")
	}

	res, err := e.Transcribe(nil, Options{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Text != "small" {
		t.Errorf("Text = %q, want small", res.Text)
	}
}

func TestEngineDeviceChangeReachesBuilder(t *testing.T) {
	b := &fakeBuilder{}
	e := NewEngine(b.build, EngineSettings{Model: "base", Device: "cpu"})

	if _, err := e.Transcribe([]float32{1}, Options{}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	e.Invalidate(EngineSettings{Model: "base", Device: "cuda"})
	if _, err := e.Transcribe([]float32{1}, Options{}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if b.count() != 2 {
		t.Fatalf("built %d engines, want 2", b.count())
	}
	if got := b.built[1].settings.Device; got != "cuda" {
		t.Errorf("rebuilt with device %q, want cuda", got)
	}
}

func TestEngineBuildFailureIsRetried(t *testing.T) {
	b := &fakeBuilder{err: errors.New("file not found")}
	e := NewEngine(b.build, EngineSettings{Model: "large"})

	_, err := e.Transcribe(nil, Options{})
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Transcribe() error = %v, want *ModelLoadError", err)
	}
	if loadErr.Model != "large" {
		t.Errorf("ModelLoadError.Model = %q, want large", loadErr.Model)
	}
	if e.Loaded() {
		t.Error("failed build should leave the engine unset")
	}

	b.mu.Lock()
	b.err = nil
	b.mu.Unlock()
	if _, err := e.Transcribe(nil, Options{}); err != nil {
		t.Fatalf("Transcribe() after fix error = %v", err)
	}
}

func TestEngineInvalidateDuringUseDefersClose(t *testing.T) {
	b := &fakeBuilder{}
	e := NewEngine(b.build, EngineSettings{Model: "base"})
	if _, err := e.Transcribe(nil, Options{}); err != nil {
		t.Fatalf("warm-up Transcribe() error = %v", err)
	}

	inUse := b.built[0]
	inUse.block = make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := e.Transcribe(nil, Options{})
		done <- err
	}()

	// Wait until the transcription holds the instance.
	for {
		e.mu.Lock()
		refs := e.cur.refs
		e.mu.Unlock()
		if refs == 1 {
			break
		}
	}

	e.Invalidate(EngineSettings{Model: "small"})
	if inUse.isClosed() {
		t.Fatal("instance closed while a transcription was using it")
	}

	close(inUse.block)
	if err := <-done; err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if !inUse.isClosed() {
		t.Error("retired instance should be closed after its transcription returns")
	}
}

func TestEngineInvalidateDuringBuildDiscardsStale(t *testing.T) {
	b := &fakeBuilder{block: make(chan struct{})}
	e := NewEngine(b.build, EngineSettings{Model: "base"})

	done := make(chan Result)
	go func() {
		res, _ := e.Transcribe(nil, Options{})
		done <- res
	}()

	// Invalidate never waits on the build in progress.
	e.Invalidate(EngineSettings{Model: "small"})
	close(b.block)

	res := <-done
	if res.Text != "small" {
		t.Fatalf("Text = %q, want small", res.Text)
	}
	for _, tr := range b.built {
		if tr.settings.Model == "base" && !tr.isClosed() {
			t.Error("stale instance built with old settings was not closed")
		}
	}
	if e.cur == nil || e.cur.tr.(*fakeTranscriber).settings.Model != "small" {
		t.Error("current instance should use the new settings")
	}
}

func TestEngineClose(t *testing.T) {
	b := &fakeBuilder{}
	e := NewEngine(b.build, EngineSettings{Model: "base"})

	if err := e.Close(); err != nil {
		t.Fatalf("Close() on empty engine error = %v", err)
	}
	if _, err := e.Transcribe(nil, Options{}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !b.built[0].isClosed() {
		t.Error("Close() should close the built instance")
	}
}
