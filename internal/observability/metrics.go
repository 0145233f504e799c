// Package observability provides metrics and monitoring capabilities for the mouseTube catalog service.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/mousetube/mousetube-go/internal/diskmanager"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry    *prometheus.Registry
	HTTP        *metrics.HTTPMetrics
	Datastore   *metrics.DatastoreMetrics
	Ingest      *metrics.IngestMetrics
	Zenodo      *metrics.ZenodoMetrics
	MQTT        *metrics.MQTTMetrics
	Mail        *metrics.MailMetrics
	DiskManager *metrics.DiskManagerMetrics
	Backup      *metrics.BackupMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ingest metrics: %w", err)
	}

	zenodoMetrics, err := metrics.NewZenodoMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Zenodo metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	mailMetrics, err := metrics.NewMailMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mail metrics: %w", err)
	}

	diskManagerMetrics, err := metrics.NewDiskManagerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create DiskManager metrics: %w", err)
	}

	backupMetrics, err := metrics.NewBackupMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Backup metrics: %w", err)
	}

	m := &Metrics{
		registry:    registry,
		HTTP:        httpMetrics,
		Datastore:   datastoreMetrics,
		Ingest:      ingestMetrics,
		Zenodo:      zenodoMetrics,
		MQTT:        mqttMetrics,
		Mail:        mailMetrics,
		DiskManager: diskManagerMetrics,
		Backup:      backupMetrics,
	}

	// Initialize diskmanager with metrics
	diskmanager.SetMetrics(diskManagerMetrics)

	return m, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}
