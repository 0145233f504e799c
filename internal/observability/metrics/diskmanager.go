// Package metrics provides disk cleanup metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DiskManagerMetrics contains Prometheus metrics for the temp staging
// janitor that removes aged upload leftovers and orphaned spectrograms.
type DiskManagerMetrics struct {
	registry *prometheus.Registry

	cleanupOperationsTotal *prometheus.CounterVec
	cleanupErrorsTotal     *prometheus.CounterVec
	filesDeletedTotal      *prometheus.CounterVec
	bytesFreedTotal        *prometheus.CounterVec
	cleanupDuration        prometheus.Histogram
	lastCleanupTimestamp   prometheus.Gauge
}

// NewDiskManagerMetrics creates and registers new disk cleanup metrics
func NewDiskManagerMetrics(registry *prometheus.Registry) (*DiskManagerMetrics, error) {
	m := &DiskManagerMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DiskManagerMetrics) initMetrics() error {
	m.cleanupOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskmanager_cleanup_operations_total",
			Help: "Total number of cleanup runs by outcome",
		},
		[]string{"status"}, // status: success, error
	)

	m.cleanupErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskmanager_cleanup_errors_total",
			Help: "Total number of errors encountered during cleanup",
		},
		[]string{"error_type"}, // error_type: stat, remove, walk
	)

	m.filesDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskmanager_files_deleted_total",
			Help: "Total number of files removed by cleanup",
		},
		[]string{"kind"}, // kind: temp, spectrogram
	)

	m.bytesFreedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskmanager_bytes_freed_total",
			Help: "Total bytes reclaimed by cleanup",
		},
		[]string{"kind"},
	)

	m.cleanupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diskmanager_cleanup_duration_seconds",
			Help:    "Time taken for cleanup runs",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
	)

	m.lastCleanupTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diskmanager_last_cleanup_timestamp_seconds",
			Help: "Timestamp of the last completed cleanup run",
		},
	)

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *DiskManagerMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.cleanupOperationsTotal,
		m.cleanupErrorsTotal,
		m.filesDeletedTotal,
		m.bytesFreedTotal,
		m.cleanupDuration,
		m.lastCleanupTimestamp,
	}
}

// Describe implements the Collector interface
func (m *DiskManagerMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DiskManagerMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordCleanupRun records a completed cleanup run and its duration
func (m *DiskManagerMetrics) RecordCleanupRun(status string, duration float64) {
	m.cleanupOperationsTotal.WithLabelValues(status).Inc()
	m.cleanupDuration.Observe(duration)
	m.lastCleanupTimestamp.SetToCurrentTime()
}

// RecordCleanupError records an error encountered during cleanup
func (m *DiskManagerMetrics) RecordCleanupError(errorType string) {
	m.cleanupErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordFileDeleted records a file removed by cleanup and the bytes freed
func (m *DiskManagerMetrics) RecordFileDeleted(kind string, sizeBytes int64) {
	m.filesDeletedTotal.WithLabelValues(kind).Inc()
	m.bytesFreedTotal.WithLabelValues(kind).Add(float64(sizeBytes))
}
