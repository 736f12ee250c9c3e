package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// DataFunc receives captured little-endian float32 frames on the audio
// thread. It matches malgo's DataProc.
type DataFunc func(pOutput, pInput []byte, frameCount uint32)

// Stream is an open capture stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Opener opens a mono float32 capture stream. onData is invoked for every
// captured block; onStop is invoked when the device stops, including
// unexpected stops such as an unplugged microphone.
type Opener func(onData DataFunc, onStop func()) (Stream, error)

// DeviceError reports a microphone that could not be opened or started.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio: %s capture device: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Recorder captures microphone audio into blocks while active. It owns the
// captured audio until Stop hands it off.
type Recorder struct {
	sampleRate uint32
	open       Opener
	release    func() error

	// ctl serializes Start, Stop and Close. The audio callback never takes it.
	ctl    sync.Mutex
	stream Stream

	// mu guards active and blocks, and is the only lock the callback takes.
	mu     sync.Mutex
	active bool
	blocks [][]float32

	warnings atomic.Int64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithOpener replaces the malgo capture backend.
func WithOpener(open Opener) Option {
	return func(r *Recorder) { r.open = open }
}

// NewRecorder creates a mono recorder at sampleRate. Without WithOpener it
// initializes a malgo context; call Close when done.
func NewRecorder(sampleRate uint32, opts ...Option) (*Recorder, error) {
	r := &Recorder{sampleRate: sampleRate}
	for _, opt := range opts {
		opt(r)
	}
	if r.open == nil {
		open, release, err := newMalgoOpener(sampleRate)
		if err != nil {
			return nil, err
		}
		r.open = open
		r.release = release
	}
	return r, nil
}

// SampleRate returns the capture rate in Hz.
func (r *Recorder) SampleRate() uint32 {
	return r.sampleRate
}

// Start begins capturing. If a capture is already active it does nothing and
// the samples captured so far are kept.
func (r *Recorder) Start() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil
	}
	r.blocks = nil
	r.active = true
	r.mu.Unlock()

	stream, err := r.open(r.onData, r.onStop)
	if err != nil {
		r.deactivate()
		return &DeviceError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		r.deactivate()
		return &DeviceError{Op: "start", Err: err}
	}
	r.stream = stream
	return nil
}

// Stop ends the capture and returns every sample appended since the matching
// Start. It returns an empty slice when no capture is active. The Recorder
// keeps no reference to the returned slice.
func (r *Recorder) Stop() []float32 {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return []float32{}
	}
	// Flip first so callbacks racing the teardown append nothing.
	r.active = false
	r.mu.Unlock()

	r.closeStream()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.blocks {
		n += len(b)
	}
	out := make([]float32, 0, n)
	for _, b := range r.blocks {
		out = append(out, b...)
	}
	r.blocks = nil
	return out
}

// IsRecording reports whether a capture is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Warnings returns the number of stream status problems seen since the last
// call: unexpected device stops, failed stream stops and recovered callback
// panics.
func (r *Recorder) Warnings() int64 {
	return r.warnings.Swap(0)
}

// Close discards any active capture and releases the audio backend.
func (r *Recorder) Close() error {
	r.Stop()
	if r.release != nil {
		if err := r.release(); err != nil {
			return fmt.Errorf("audio: release context: %w", err)
		}
		r.release = nil
	}
	return nil
}

// onData runs on the realtime audio thread: lock, check, copy, unlock.
func (r *Recorder) onData(_, pInput []byte, frameCount uint32) {
	defer func() {
		if recover() != nil {
			r.warnings.Add(1)
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		r.blocks = append(r.blocks, bytesToFloat32(pInput, frameCount))
	}
}

// onStop counts device stops that happen while capture is still wanted.
func (r *Recorder) onStop() {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active {
		r.warnings.Add(1)
	}
}

func (r *Recorder) deactivate() {
	r.mu.Lock()
	r.active = false
	r.blocks = nil
	r.mu.Unlock()
}

func (r *Recorder) closeStream() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Stop(); err != nil {
		r.warnings.Add(1)
	}
	if err := r.stream.Close(); err != nil {
		r.warnings.Add(1)
	}
	r.stream = nil
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
