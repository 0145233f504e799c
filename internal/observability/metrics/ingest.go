// Package metrics provides ingest pipeline metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the recording ingest
// pipeline: staging uploaded files, extracting audio metadata, rendering
// spectrograms and triggering archive deposition.
type IngestMetrics struct {
	registry *prometheus.Registry

	// Job-level metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
	queueLength prometheus.Gauge

	// Stage-level metrics
	stageDuration    *prometheus.HistogramVec
	stageErrorsTotal *prometheus.CounterVec

	// Audio metadata distribution
	audioDuration *prometheus.HistogramVec
	audioFileSize *prometheus.HistogramVec
}

// NewIngestMetrics creates and registers new ingest pipeline metrics
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *IngestMetrics) initMetrics() error {
	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_total",
			Help: "Total number of ingest jobs by outcome",
		},
		[]string{"status"}, // status: completed, error, retried
	)

	m.jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_job_duration_seconds",
			Help:    "End to end time for ingest jobs",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54min
		},
	)

	m.queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_queue_length",
			Help: "Current number of jobs waiting in the ingest queue",
		},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Time taken for individual ingest pipeline stages",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"stage"}, // stage: stage_file, extract_metadata, render_spectrogram, deposit
	)

	m.stageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_errors_total",
			Help: "Total number of ingest pipeline stage errors",
		},
		[]string{"stage", "error_type"}, // error_type: file_missing, decode, io, api
	)

	m.audioDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_audio_duration_seconds",
			Help:    "Duration of ingested recordings as reported by their headers",
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount12), // 1s to ~1.1h
		},
		[]string{"format"}, // format: wav, flac
	)

	m.audioFileSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_audio_file_size_bytes",
			Help:    "Size of ingested recording files in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor10, BucketCount6), // 1KB to ~1GB
		},
		[]string{"format"},
	)

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *IngestMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobDuration,
		m.queueLength,
		m.stageDuration,
		m.stageErrorsTotal,
		m.audioDuration,
		m.audioFileSize,
	}
}

// Describe implements the Collector interface
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordJob records a finished ingest job with its outcome
func (m *IngestMetrics) RecordJob(status string) {
	m.jobsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration records the end to end duration of an ingest job
func (m *IngestMetrics) RecordJobDuration(duration float64) {
	m.jobDuration.Observe(duration)
}

// SetQueueLength updates the ingest queue length gauge
func (m *IngestMetrics) SetQueueLength(length int) {
	m.queueLength.Set(float64(length))
}

// RecordStageDuration records the duration of an ingest pipeline stage
func (m *IngestMetrics) RecordStageDuration(stage string, duration float64) {
	m.stageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordStageError records an ingest pipeline stage error
func (m *IngestMetrics) RecordStageError(stage, errorType string) {
	m.stageErrorsTotal.WithLabelValues(stage, errorType).Inc()
}

// RecordAudioInfo records the duration and file size of an ingested
// recording after metadata extraction
func (m *IngestMetrics) RecordAudioInfo(format string, durationSeconds float64, sizeBytes int64) {
	m.audioDuration.WithLabelValues(format).Observe(durationSeconds)
	m.audioFileSize.WithLabelValues(format).Observe(float64(sizeBytes))
}

// RecordOperation implements the Recorder interface.
func (m *IngestMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpStageFile, OpExtractMetadata, OpRenderSpectrogram, OpDeposit:
		if status == LabelError {
			m.stageErrorsTotal.WithLabelValues(operation, "unknown").Inc()
		}
	default:
		m.jobsTotal.WithLabelValues(status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *IngestMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpStageFile, OpExtractMetadata, OpRenderSpectrogram, OpDeposit:
		m.stageDuration.WithLabelValues(operation).Observe(seconds)
	default:
		m.jobDuration.Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *IngestMetrics) RecordError(operation, errorType string) {
	m.stageErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// Compile-time check that IngestMetrics implements the Recorder interface.
var _ Recorder = (*IngestMetrics)(nil)
