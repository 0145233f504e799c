// Package metrics provides backup metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BackupMetrics contains Prometheus metrics for catalog backup runs:
// dumping database sources, archiving and uploading to targets.
type BackupMetrics struct {
	registry *prometheus.Registry

	backupsTotal         *prometheus.CounterVec
	backupDuration       *prometheus.HistogramVec
	archiveSizeBytes     *prometheus.HistogramVec
	targetUploadsTotal   *prometheus.CounterVec
	prunedBackupsTotal   *prometheus.CounterVec
	lastSuccessTimestamp *prometheus.GaugeVec
}

// NewBackupMetrics creates and registers new backup metrics
func NewBackupMetrics(registry *prometheus.Registry) (*BackupMetrics, error) {
	m := &BackupMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *BackupMetrics) initMetrics() error {
	m.backupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_operations_total",
			Help: "Total number of backup runs by source and outcome",
		},
		[]string{"source", "status"}, // source: sqlite, mysql; status: success, error
	)

	m.backupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Time taken for backup runs by source",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54min
		},
		[]string{"source"},
	)

	m.archiveSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_archive_size_bytes",
			Help:    "Size of produced backup archives by source",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor10, BucketCount6), // 1KB to ~1GB
		},
		[]string{"source"},
	)

	m.targetUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_target_uploads_total",
			Help: "Total number of archive uploads by target and outcome",
		},
		[]string{"target", "status"}, // target: local, ftp, sftp
	)

	m.prunedBackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_pruned_total",
			Help: "Total number of backups removed by retention pruning",
		},
		[]string{"target"},
	)

	m.lastSuccessTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backup_last_success_timestamp_seconds",
			Help: "Timestamp of the last successful backup by source",
		},
		[]string{"source"},
	)

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *BackupMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.backupsTotal,
		m.backupDuration,
		m.archiveSizeBytes,
		m.targetUploadsTotal,
		m.prunedBackupsTotal,
		m.lastSuccessTimestamp,
	}
}

// Describe implements the Collector interface
func (m *BackupMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *BackupMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordBackup records a backup run with its outcome, duration and archive size
func (m *BackupMetrics) RecordBackup(source, status string, duration float64, archiveBytes int64) {
	m.backupsTotal.WithLabelValues(source, status).Inc()
	m.backupDuration.WithLabelValues(source).Observe(duration)
	if status == LabelSuccess {
		m.archiveSizeBytes.WithLabelValues(source).Observe(float64(archiveBytes))
		m.lastSuccessTimestamp.WithLabelValues(source).SetToCurrentTime()
	}
}

// RecordTargetUpload records an archive upload to a backup target
func (m *BackupMetrics) RecordTargetUpload(target, status string) {
	m.targetUploadsTotal.WithLabelValues(target, status).Inc()
}

// RecordPrunedBackups records backups removed by retention pruning
func (m *BackupMetrics) RecordPrunedBackups(target string, count int) {
	m.prunedBackupsTotal.WithLabelValues(target).Add(float64(count))
}
