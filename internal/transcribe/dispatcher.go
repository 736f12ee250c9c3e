package transcribe

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/gostt-ptt/internal/audio"
)

// Job is one transcription request.
type Job struct {
	ID      string
	Samples []float32
	Options Options
}

// Completion reports the outcome of a Job. Err is nil on success.
type Completion struct {
	ID       string
	Result   Result
	Err      error
	Duration time.Duration
}

// Dispatcher runs at most one Job at a time on its own goroutine and hands
// the outcome to a sink.
type Dispatcher struct {
	tr         Transcriber
	sink       func(Completion)
	sampleRate int
	dumpDir    string

	busy atomic.Bool
	wg   sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDumpDir writes each job's audio to dir as <job id>.wav before it is
// transcribed.
func WithDumpDir(dir string) DispatcherOption {
	return func(d *Dispatcher) { d.dumpDir = dir }
}

// NewDispatcher creates a dispatcher that runs jobs on tr and delivers
// completions to sink. sampleRate is the rate of submitted samples.
func NewDispatcher(tr Transcriber, sampleRate int, sink func(Completion), opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{tr: tr, sink: sink, sampleRate: sampleRate}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit starts job in the background. It returns ErrBusy if a job is
// still outstanding.
func (d *Dispatcher) Submit(job Job) error {
	if !d.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	d.wg.Add(1)
	go d.run(job)
	return nil
}

// Busy reports whether a job is outstanding.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Wait blocks until the outstanding job, if any, has been delivered.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(job Job) {
	defer d.wg.Done()

	start := time.Now()
	res, err := d.process(job)
	c := Completion{ID: job.ID, Result: res, Err: err, Duration: time.Since(start)}

	// Free the slot before delivering so the receiver can submit again.
	d.busy.Store(false)
	d.sink(c)
}

// process runs the engine call. A panic in the engine becomes an
// EngineError.
func (d *Dispatcher) process(job Job) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcribe: engine panic", "job", job.ID, "panic", r)
			res, err = Result{}, &EngineError{Msg: fmt.Sprintf("engine panic: %v", r)}
		}
	}()

	if d.dumpDir != "" {
		path, err := audio.DumpWAV(d.dumpDir, job.ID, job.Samples, d.sampleRate)
		if err != nil {
			slog.Warn("transcribe: dump audio", "job", job.ID, "err", err)
		} else {
			slog.Debug("transcribe: dumped audio", "job", job.ID, "path", path)
		}
	}

	samples := job.Samples
	if job.Options.VAD {
		samples = TrimSilence(samples, d.sampleRate)
		if len(samples) == 0 {
			slog.Debug("transcribe: no voiced audio", "job", job.ID)
			return Result{}, nil
		}
	}

	opts := job.Options
	opts.Language = LanguageHint(opts.Language)
	if opts.BeamSize <= 0 {
		opts.BeamSize = DefaultBeamSize
	}
	return d.tr.Transcribe(samples, opts)
}
