// Package metrics exports Prometheus metrics derived from conversation loop
// events.
package metrics

import (
	"sync"
	"time"

	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ema"

// Recorder turns loop events into metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	wakesTotal     prometheus.Counter
	sessionsTotal  *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	lastRecording  prometheus.Gauge
	sessionsActive prometheus.Gauge
	recordedBytes  prometheus.Counter

	mu        sync.Mutex
	lastEvent time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of loop events by category",
		}, []string{"category"}),
		wakesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakes_total",
			Help:      "Total number of wake phrase detections",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of session start attempts",
		}, []string{"outcome"}), // outcome: started, failed
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of finished turns",
		}, []string{"outcome"}), // outcome: completed, skipped, failed
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failed steps",
		}, []string{"step", "kind"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of conversation loop steps in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		lastRecording: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_recording_seconds",
			Help:      "Length of the most recent user recording",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open conversations",
		}),
		recordedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_bytes_total",
			Help:      "Total bytes of captured user audio",
		}),
	}

	r.registry.MustRegister(
		r.eventsTotal,
		r.wakesTotal,
		r.sessionsTotal,
		r.turnsTotal,
		r.failuresTotal,
		r.stepDuration,
		r.lastRecording,
		r.sessionsActive,
		r.recordedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Record updates metrics for event. It is safe to use as an event callback.
func (r *Recorder) Record(event events.Event) {
	r.mu.Lock()
	sinceLast := event.Timestamp().Sub(r.lastEvent)
	if r.lastEvent.IsZero() {
		sinceLast = 0
	}
	if event.Kind() != events.KindUserRecordingProgress {
		r.lastEvent = event.Timestamp()
	}
	r.mu.Unlock()

	r.eventsTotal.WithLabelValues(event.Kind().Category()).Inc()
	switch typedEvent := event.(type) {
	case events.WakeDetected:
		r.wakesTotal.Inc()
	case events.SessionStarted:
		r.sessionsTotal.WithLabelValues("started").Inc()
		r.sessionsActive.Inc()
		r.observeStep(orchestration.StepStartSession, sinceLast)
	case events.SessionFailed:
		r.sessionsTotal.WithLabelValues("failed").Inc()
		r.failuresTotal.WithLabelValues(typedEvent.Step, typedEvent.ErrorKind).Inc()
	case events.SessionEnded:
		r.sessionsActive.Dec()
	case events.UserRecordingStopped:
		r.lastRecording.Set(typedEvent.Duration.Seconds())
		r.recordedBytes.Add(float64(typedEvent.Bytes))
		r.observeStep(orchestration.StepCapture, typedEvent.Duration)
	case events.UserTranscriptFinal:
		r.observeStep(orchestration.StepTranscribe, sinceLast)
	case events.AssistantResponseFinal:
		r.observeStep(orchestration.StepConverse, sinceLast)
	case events.AssistantSpeechSynthesized:
		r.observeStep(orchestration.StepSynthesize, sinceLast)
	case events.AssistantPlaybackEnded:
		if typedEvent.Welcome {
			r.observeStep(orchestration.StepWelcome, sinceLast)
		} else {
			r.observeStep(orchestration.StepPlay, sinceLast)
		}
	case events.TurnCompleted:
		r.turnsTotal.WithLabelValues("completed").Inc()
	case events.TurnSkipped:
		r.turnsTotal.WithLabelValues("skipped").Inc()
	case events.TurnFailed:
		r.turnsTotal.WithLabelValues("failed").Inc()
		r.failuresTotal.WithLabelValues(typedEvent.Step, typedEvent.ErrorKind).Inc()
	}
}

func (r *Recorder) observeStep(step string, duration time.Duration) {
	if duration <= 0 {
		return
	}
	r.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}
