// Package metrics provides datastore-specific Prometheus metrics.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for database operations.
// The GORM query logger feeds the per-statement metrics, handlers feed
// the search and analytics metrics.
type DatastoreMetrics struct {
	registry *prometheus.Registry

	// Database operation metrics
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec
	dbSlowQueriesTotal     *prometheus.CounterVec

	// Transaction metrics
	dbTransactionsTotal   *prometheus.CounterVec
	dbTransactionDuration *prometheus.HistogramVec

	// Search metrics
	searchOperationsTotal   *prometheus.CounterVec
	searchOperationDuration prometheus.Histogram

	// Analytics metrics
	analyticsOperationsTotal   *prometheus.CounterVec
	analyticsOperationDuration *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics.
func (m *DatastoreMetrics) initMetrics() error {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"}, // operation: select, insert, update, delete; table: recordings, subjects; status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"}, // error_type: constraint_violation, deadlock, connection_error
	)

	m.dbSlowQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_slow_queries_total",
			Help: "Total number of queries exceeding the slow query threshold",
		},
		[]string{"operation", "table"},
	)

	m.dbTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_transactions_total",
			Help: "Total number of database transactions",
		},
		[]string{"status"},
	)

	m.dbTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_transaction_duration_seconds",
			Help:    "Time taken for database transactions",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.searchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_search_operations_total",
			Help: "Total number of catalog search operations",
		},
		[]string{"status"},
	)

	m.searchOperationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datastore_search_duration_seconds",
			Help:    "Time taken for catalog search operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
	)

	m.analyticsOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_analytics_operations_total",
			Help: "Total number of analytics query operations",
		},
		[]string{"operation", "status"}, // operation: overview, species_counts, page_views
	)

	m.analyticsOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_analytics_duration_seconds",
			Help:    "Time taken for analytics query operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbSlowQueriesTotal,
		m.dbTransactionsTotal,
		m.dbTransactionDuration,
		m.searchOperationsTotal,
		m.searchOperationDuration,
		m.analyticsOperationsTotal,
		m.analyticsOperationDuration,
	}

	return nil
}

// Describe implements the Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDbOperation records a database operation with its status.
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration records the duration of a database operation.
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError records a database operation error.
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, table, errorType).Inc()
}

// RecordSlowQuery records a query that exceeded the slow query threshold.
func (m *DatastoreMetrics) RecordSlowQuery(operation, table string) {
	m.dbSlowQueriesTotal.WithLabelValues(operation, table).Inc()
}

// RecordTransaction records a database transaction with its status.
func (m *DatastoreMetrics) RecordTransaction(status string) {
	m.dbTransactionsTotal.WithLabelValues(status).Inc()
}

// RecordTransactionDuration records the duration of a database transaction.
func (m *DatastoreMetrics) RecordTransactionDuration(operation string, duration float64) {
	m.dbTransactionDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSearchOperation records a catalog search operation.
func (m *DatastoreMetrics) RecordSearchOperation(status string) {
	m.searchOperationsTotal.WithLabelValues(status).Inc()
}

// RecordSearchDuration records the duration of a catalog search.
func (m *DatastoreMetrics) RecordSearchDuration(duration float64) {
	m.searchOperationDuration.Observe(duration)
}

// RecordAnalyticsOperation records an analytics query operation.
func (m *DatastoreMetrics) RecordAnalyticsOperation(operation, status string) {
	m.analyticsOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordAnalyticsDuration records the duration of an analytics query.
func (m *DatastoreMetrics) RecordAnalyticsDuration(operation string, duration float64) {
	m.analyticsOperationDuration.WithLabelValues(operation).Observe(duration)
}

// parseTableFromOperation extracts the table name from operations like
// "db_query:recordings". Returns the operation and table separately, or
// "unknown" if no table is specified.
func parseTableFromOperation(operation string) (op, table string) {
	parts := strings.SplitN(operation, ":", SplitPartsCount)
	if len(parts) == SplitPartsCount {
		return parts[0], parts[1]
	}
	return operation, "unknown"
}

// RecordOperation implements the Recorder interface.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationsTotal.WithLabelValues(op, table, status).Inc()
	case OpTransaction:
		m.dbTransactionsTotal.WithLabelValues(status).Inc()
	case OpSearch:
		m.searchOperationsTotal.WithLabelValues(status).Inc()
	case OpAnalytics:
		m.analyticsOperationsTotal.WithLabelValues(LabelQuery, status).Inc()
	default:
		m.dbOperationsTotal.WithLabelValues(op, table, status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationDuration.WithLabelValues(op, table).Observe(seconds)
	case OpTransaction:
		m.dbTransactionDuration.WithLabelValues(LabelCommit).Observe(seconds)
	case OpSearch:
		m.searchOperationDuration.Observe(seconds)
	case OpAnalytics:
		m.analyticsOperationDuration.WithLabelValues(LabelQuery).Observe(seconds)
	default:
		m.dbOperationDuration.WithLabelValues(op, table).Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpDbQuery, OpDbInsert, OpDbUpdate, OpDbDelete:
		m.dbOperationErrorsTotal.WithLabelValues(op, table, errorType).Inc()
		m.dbOperationsTotal.WithLabelValues(op, table, LabelError).Inc()
	case OpTransaction:
		m.dbTransactionsTotal.WithLabelValues(LabelError).Inc()
	case OpSearch:
		m.searchOperationsTotal.WithLabelValues(LabelError).Inc()
	case OpAnalytics:
		m.analyticsOperationsTotal.WithLabelValues(LabelQuery, LabelError).Inc()
	default:
		m.dbOperationErrorsTotal.WithLabelValues(op, table, errorType).Inc()
	}
}

// Compile-time check that DatastoreMetrics implements the Recorder interface.
var _ Recorder = (*DatastoreMetrics)(nil)
