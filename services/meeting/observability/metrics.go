package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	BackendSTT = "stt"
	BackendLLM = "llm"

	CacheAnalysis = "analysis"
	CacheQA       = "qa"
)

// Metrics holds the Prometheus collectors for the meeting engine.
type Metrics struct {
	ChunksTotal        *prometheus.CounterVec
	BackendLatency     *prometheus.HistogramVec
	BackendErrorsTotal *prometheus.CounterVec
	CacheTotal         *prometheus.CounterVec
	UndecidableTotal   *prometheus.CounterVec
	ActiveMeetings     prometheus.Gauge
	WorkerQueueDepth   prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to stay isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_chunks_total",
				Help: "Chunks processed by outcome",
			},
			[]string{"outcome"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetings_backend_latency_seconds",
				Help:    "Latency of speech-to-text and language-model calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"backend", "provider"},
		),
		BackendErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_backend_errors_total",
				Help: "Failed speech-to-text and language-model calls",
			},
			[]string{"backend", "provider"},
		),
		CacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_cache_lookups_total",
				Help: "Derived-result cache lookups by result",
			},
			[]string{"cache", "result"},
		),
		UndecidableTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_vad_undecidable_total",
				Help: "Audio chunks sent to speech-to-text without a voice-activity verdict",
			},
			[]string{"mime_type"},
		),
		ActiveMeetings: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meetings_active",
				Help: "Meetings currently accepting chunks",
			},
		),
		WorkerQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meetings_worker_queue_depth",
				Help: "Audio chunks waiting for asynchronous transcription",
			},
		),
	}
}

// Nil-safe helpers so components can run without metrics.

func (m *Metrics) Chunk(outcome string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBackend(backend, provider string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(backend, provider).Observe(time.Since(started).Seconds())
	if err != nil {
		m.BackendErrorsTotal.WithLabelValues(backend, provider).Inc()
	}
}

func (m *Metrics) Cache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) MeetingStarted() {
	if m == nil {
		return
	}
	m.ActiveMeetings.Inc()
}

// SetActiveMeetings seeds the gauge from storage at startup.
func (m *Metrics) SetActiveMeetings(n int) {
	if m == nil {
		return
	}
	m.ActiveMeetings.Set(float64(n))
}

func (m *Metrics) MeetingEnded() {
	if m == nil {
		return
	}
	m.ActiveMeetings.Dec()
}

func (m *Metrics) Undecidable(mimeType string) {
	if m == nil {
		return
	}
	m.UndecidableTotal.WithLabelValues(mimeType).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.WorkerQueueDepth.Set(float64(n))
}
