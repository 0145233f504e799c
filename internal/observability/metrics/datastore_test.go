package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDbOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.RecordDbOperation("select", "recordings", "success")
	m.RecordDbOperation("select", "recordings", "success")
	m.RecordDbOperation("insert", "subjects", "error")

	count := testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("select", "recordings", "success"))
	assert.Equal(t, float64(2), count)

	count = testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("insert", "subjects", "error"))
	assert.Equal(t, float64(1), count)
}

func TestRecordDbOperationError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.RecordDbOperationError("insert", "species", "constraint_violation")

	count := testutil.ToFloat64(m.dbOperationErrorsTotal.WithLabelValues("insert", "species", "constraint_violation"))
	assert.Equal(t, float64(1), count)
}

func TestRecordSlowQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.RecordSlowQuery("select", "recordings")
	m.RecordSlowQuery("select", "recordings")

	count := testutil.ToFloat64(m.dbSlowQueriesTotal.WithLabelValues("select", "recordings"))
	assert.Equal(t, float64(2), count)
}

func TestDatastoreRecorderMapping(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	// Operations carrying a table suffix route to the db operation counters
	m.RecordOperation("db_query:recordings", "success")
	count := testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues(OpDbQuery, "recordings", "success"))
	assert.Equal(t, float64(1), count)

	// Search and analytics operations route to their own counters
	m.RecordOperation(OpSearch, "success")
	count = testutil.ToFloat64(m.searchOperationsTotal.WithLabelValues("success"))
	assert.Equal(t, float64(1), count)

	m.RecordOperation(OpAnalytics, "success")
	count = testutil.ToFloat64(m.analyticsOperationsTotal.WithLabelValues(LabelQuery, "success"))
	assert.Equal(t, float64(1), count)

	// Transactions route to the transaction counter
	m.RecordOperation(OpTransaction, "success")
	count = testutil.ToFloat64(m.dbTransactionsTotal.WithLabelValues("success"))
	assert.Equal(t, float64(1), count)

	// Errors increment both the error counter and the operation counter
	m.RecordError("db_insert:subjects", "constraint_violation")
	count = testutil.ToFloat64(m.dbOperationErrorsTotal.WithLabelValues(OpDbInsert, "subjects", "constraint_violation"))
	assert.Equal(t, float64(1), count)
	count = testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues(OpDbInsert, "subjects", LabelError))
	assert.Equal(t, float64(1), count)
}

func TestParseTableFromOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		wantOp    string
		wantTable string
	}{
		{"with table", "db_query:recordings", "db_query", "recordings"},
		{"without table", "db_query", "db_query", "unknown"},
		{"search operation", "search", "search", "unknown"},
		{"empty string", "", "", "unknown"},
		{"extra separator kept in table", "db_query:recordings:extra", "db_query", "recordings:extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			op, table := parseTableFromOperation(tt.operation)
			assert.Equal(t, tt.wantOp, op)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	// Registering the same metric names twice on one registry must fail
	_, err = NewDatastoreMetrics(registry)
	assert.Error(t, err)
}
