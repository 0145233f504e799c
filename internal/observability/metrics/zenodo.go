// Package metrics provides archive deposition metrics for observability
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ZenodoMetrics contains Prometheus metrics for Zenodo deposition
// operations: creating depositions, uploading recording files and
// publishing sessions.
type ZenodoMetrics struct {
	registry *prometheus.Registry

	// Deposition lifecycle metrics
	depositionsTotal *prometheus.CounterVec
	publishDuration  prometheus.Histogram

	// File upload metrics
	uploadsTotal     *prometheus.CounterVec
	uploadBytesTotal prometheus.Counter
	uploadDuration   prometheus.Histogram

	// API request metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
}

// NewZenodoMetrics creates and registers new Zenodo deposition metrics
func NewZenodoMetrics(registry *prometheus.Registry) (*ZenodoMetrics, error) {
	m := &ZenodoMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *ZenodoMetrics) initMetrics() error {
	m.depositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenodo_depositions_total",
			Help: "Total number of deposition lifecycle events",
		},
		[]string{"event"}, // event: created, reused, published, error
	)

	m.publishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zenodo_publish_duration_seconds",
			Help:    "Time taken to publish a deposition including uploads",
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount12), // 1s to ~1.1h
		},
	)

	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenodo_uploads_total",
			Help: "Total number of file uploads to the archive",
		},
		[]string{"status"}, // status: success, skipped, error
	)

	m.uploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zenodo_upload_bytes_total",
			Help: "Total bytes uploaded to the archive",
		},
	)

	m.uploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zenodo_upload_duration_seconds",
			Help:    "Time taken for individual file uploads",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54min
		},
	)

	m.apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenodo_api_requests_total",
			Help: "Total number of Zenodo API requests",
		},
		[]string{"operation", "status_code"}, // operation: create_deposition, upload_file, set_metadata, publish
	)

	m.apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zenodo_api_request_duration_seconds",
			Help:    "Time taken for Zenodo API requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10), // 100ms to ~51s
		},
		[]string{"operation"},
	)

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *ZenodoMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.depositionsTotal,
		m.publishDuration,
		m.uploadsTotal,
		m.uploadBytesTotal,
		m.uploadDuration,
		m.apiRequestsTotal,
		m.apiRequestDuration,
	}
}

// Describe implements the Collector interface
func (m *ZenodoMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ZenodoMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordDepositionEvent records a deposition lifecycle event
func (m *ZenodoMetrics) RecordDepositionEvent(event string) {
	m.depositionsTotal.WithLabelValues(event).Inc()
}

// RecordPublishDuration records the total time a publish run took
func (m *ZenodoMetrics) RecordPublishDuration(duration float64) {
	m.publishDuration.Observe(duration)
}

// RecordUpload records a file upload attempt with its outcome
func (m *ZenodoMetrics) RecordUpload(status string) {
	m.uploadsTotal.WithLabelValues(status).Inc()
}

// AddUploadBytes adds to the total bytes uploaded
func (m *ZenodoMetrics) AddUploadBytes(bytes int64) {
	m.uploadBytesTotal.Add(float64(bytes))
}

// RecordUploadDuration records the duration of a single file upload
func (m *ZenodoMetrics) RecordUploadDuration(duration float64) {
	m.uploadDuration.Observe(duration)
}

// RecordAPIRequest records a Zenodo API request with its response code
func (m *ZenodoMetrics) RecordAPIRequest(operation string, statusCode int, duration float64) {
	m.apiRequestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", statusCode)).Inc()
	m.apiRequestDuration.WithLabelValues(operation).Observe(duration)
}
