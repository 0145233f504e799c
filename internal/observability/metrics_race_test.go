package observability

import (
	"sync"
	"testing"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	// Number of concurrent goroutines to test with
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Start multiple goroutines that all try to create metrics concurrently
	for range numGoroutines {
		go func() {
			defer wg.Done()

			// Call NewMetrics - this should not cause a race condition
			metrics, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}

			// Verify metrics is not nil
			if metrics == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			// Verify all metric fields are initialized
			if metrics.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if metrics.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
			if metrics.Datastore == nil {
				t.Error("metrics.Datastore is nil")
			}
			if metrics.Ingest == nil {
				t.Error("metrics.Ingest is nil")
			}
			if metrics.Zenodo == nil {
				t.Error("metrics.Zenodo is nil")
			}
			if metrics.MQTT == nil {
				t.Error("metrics.MQTT is nil")
			}
			if metrics.Mail == nil {
				t.Error("metrics.Mail is nil")
			}
			if metrics.DiskManager == nil {
				t.Error("metrics.DiskManager is nil")
			}
			if metrics.Backup == nil {
				t.Error("metrics.Backup is nil")
			}
		}()
	}

	// Wait for all goroutines to complete
	wg.Wait()
}

// TestMetricsEndpointOutput verifies that recorded metrics show up in the
// registry gather output used by the /metrics handler
func TestMetricsEndpointOutput(t *testing.T) {
	metrics, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	metrics.Datastore.RecordDbOperation("select", "recordings", "success")
	metrics.Ingest.RecordJob("completed")
	metrics.Zenodo.RecordUpload("success")

	families, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"datastore_db_operations_total",
		"ingest_jobs_total",
		"zenodo_uploads_total",
	} {
		if !found[name] {
			t.Errorf("expected metric family %q in gather output", name)
		}
	}
}
