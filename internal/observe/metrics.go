// Package observe holds the OpenTelemetry metric instruments for the
// push-to-talk pipeline and the Prometheus exporter that serves them.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/chaz8081/gostt-ptt"

// Session outcomes.
const (
	OutcomeTranscribed = "transcribed"
	OutcomeEmptyAudio  = "empty_audio"
	OutcomeNoSpeech    = "no_speech"
	OutcomeFailed      = "failed"
	OutcomeMicError    = "mic_error"
)

// Metrics holds all metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// Sessions counts finished push-to-talk cycles. Use with attribute:
	//   attribute.String("outcome", ...)
	Sessions metric.Int64Counter

	// TranscriptionDuration tracks engine latency per job.
	TranscriptionDuration metric.Float64Histogram

	// RecordingDuration tracks how long the key was held.
	RecordingDuration metric.Float64Histogram

	// Errors counts reported errors. Use with attribute:
	//   attribute.String("kind", ...)
	Errors metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds, sized for dictation:
// sub-second clicks up to a minute of speech.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sessions, err = m.Int64Counter("gostt.sessions",
		metric.WithDescription("Push-to-talk cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("gostt.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("gostt.recording.duration",
		metric.WithDescription("Time the push-to-talk key was held."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Errors, err = m.Int64Counter("gostt.errors",
		metric.WithDescription("Reported errors by kind."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Discard returns instruments backed by a no-op provider.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordSession counts one finished cycle.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordError counts one reported error.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTranscription observes one job's engine latency.
func (m *Metrics) RecordTranscription(ctx context.Context, d time.Duration) {
	m.TranscriptionDuration.Record(ctx, d.Seconds())
}

// RecordRecording observes one capture's length.
func (m *Metrics) RecordRecording(ctx context.Context, d time.Duration) {
	m.RecordingDuration.Record(ctx, d.Seconds())
}
