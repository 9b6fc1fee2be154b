// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "callinsight"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Batch metrics
	BatchesStarted  prometheus.Counter
	BatchesFinished *prometheus.CounterVec
	FilesProcessed  *prometheus.CounterVec
	FileDuration    prometheus.Histogram

	// Persistence metrics
	DBWriteRetries  prometheus.Counter
	DBWriteFailures prometheus.Counter

	// AI metrics
	AICalls        *prometheus.CounterVec
	AILatency      *prometheus.HistogramVec
	AIKeyRotations prometheus.Counter

	// Event metrics
	EventsPublished *prometheus.CounterVec

	StaleBatchesReaped prometheus.Counter
}

// Default is the process-wide instance registered with the default registry.
var Default = New(prometheus.DefaultRegisterer)

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BatchesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_started_total",
			Help:      "Total number of bulk analysis batches started",
		}),
		BatchesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_finished_total",
			Help:      "Total number of bulk analysis batches finished, by final status",
		}, []string{"status"}),
		FilesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Total number of call recordings run through the analysis pipeline",
		}, []string{"outcome"}),
		FileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_processing_seconds",
			Help:      "Wall time of the per-file analysis pipeline",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300, 600},
		}),

		DBWriteRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_write_retries_total",
			Help:      "Total number of retried file result writes",
		}),
		DBWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_write_failures_total",
			Help:      "Total number of file result writes dropped after exhausting retries",
		}),

		AICalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "Total number of generative AI calls",
		}, []string{"operation", "outcome"}),
		AILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_seconds",
			Help:      "Latency of generative AI calls including key rotation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"operation"}),
		AIKeyRotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_key_rotations_total",
			Help:      "Total number of times a call moved on to the next API key",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of analysis events published",
		}, []string{"topic", "outcome"}),

		StaleBatchesReaped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_batches_reaped_total",
			Help:      "Total number of processing batches marked failed by the reaper",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBatchStarted records a new batch.
func (m *Metrics) RecordBatchStarted() {
	if m == nil {
		return
	}
	m.BatchesStarted.Inc()
}

// RecordBatchFinished records a batch reaching its final status.
func (m *Metrics) RecordBatchFinished(status string) {
	if m == nil {
		return
	}
	m.BatchesFinished.WithLabelValues(status).Inc()
}

// RecordFile records one file leaving the pipeline.
func (m *Metrics) RecordFile(err error, seconds float64) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(outcome(err)).Inc()
	m.FileDuration.Observe(seconds)
}

func (m *Metrics) RecordDBWriteRetry() {
	if m == nil {
		return
	}
	m.DBWriteRetries.Inc()
}

func (m *Metrics) RecordDBWriteFailure() {
	if m == nil {
		return
	}
	m.DBWriteFailures.Inc()
}

// RecordAICall records one logical AI call.
func (m *Metrics) RecordAICall(operation string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.AICalls.WithLabelValues(operation, outcome(err)).Inc()
	m.AILatency.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) RecordKeyRotation() {
	if m == nil {
		return
	}
	m.AIKeyRotations.Inc()
}

// RecordEvent records a publish attempt.
func (m *Metrics) RecordEvent(topic string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(topic, outcome(err)).Inc()
}

func (m *Metrics) RecordStaleReaped(n int64) {
	if m == nil {
		return
	}
	m.StaleBatchesReaped.Add(float64(n))
}
