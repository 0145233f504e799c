// Package datastore provides type aliases for the observability metrics package
package datastore

import (
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
)

// Metrics is a type alias for metrics.DatastoreMetrics so database code
// can record metrics without importing the observability package.
type Metrics = metrics.DatastoreMetrics
