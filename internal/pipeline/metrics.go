package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "docseg"

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	DocumentsTotal  *prometheus.CounterVec
	SegmentsTotal   *prometheus.CounterVec
	FallbacksTotal  *prometheus.CounterVec
	SegmentDuration *prometheus.HistogramVec
	DocumentBytes   *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
	JobsInFlight    prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Passing a fresh registry
// keeps tests isolated from the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "documents_processed_total",
				Help:      "Total number of documents segmented",
			},
			[]string{"kind", "status"},
		),
		SegmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "segments_created_total",
				Help:      "Total number of segments produced",
			},
			[]string{"kind"},
		),
		FallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "structure_fallbacks_total",
				Help:      "Documents whose native structure was unavailable and fell back to statistical analysis",
			},
			[]string{"kind"},
		),
		SegmentDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "segmentation_duration_seconds",
				Help:      "Duration of document segmentation in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		DocumentBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "document_size_bytes",
				Help:      "Size of uploaded documents in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"kind"},
		),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the segmentation queue",
		}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being segmented",
		}),
	}
}

// RecordDocument records the outcome of one segmentation.
func (m *Metrics) RecordDocument(kind string, status JobStatus, duration time.Duration, sizeBytes int, segments int) {
	m.DocumentsTotal.WithLabelValues(kind, string(status)).Inc()
	m.SegmentDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.DocumentBytes.WithLabelValues(kind).Observe(float64(sizeBytes))
	if segments > 0 {
		m.SegmentsTotal.WithLabelValues(kind).Add(float64(segments))
	}
}

// RecordFallback counts a native extractor that degraded to text analysis.
func (m *Metrics) RecordFallback(kind string) {
	m.FallbacksTotal.WithLabelValues(kind).Inc()
}
