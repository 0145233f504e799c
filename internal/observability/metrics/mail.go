// Package metrics provides custom Prometheus metrics for transactional mail delivery.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MailMetrics contains all Prometheus metrics related to transactional
// email delivery (account activation, password reset, admin notices).
type MailMetrics struct {
	registry *prometheus.Registry

	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	deliveryErrors   *prometheus.CounterVec
	renderErrors     *prometheus.CounterVec
}

// NewMailMetrics creates a new instance of MailMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewMailMetrics(registry *prometheus.Registry) (*MailMetrics, error) {
	m := &MailMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize mail metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register mail metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for MailMetrics.
func (m *MailMetrics) initMetrics() error {
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Total number of mail delivery attempts by template and status",
		},
		[]string{"template", "status"}, // template: activation, password_reset, admin_notice; status: success, error
	)

	m.deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_delivery_duration_seconds",
			Help:    "Time taken for mail delivery by template",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}, // 10ms to 30s
		},
		[]string{"template"},
	)

	m.deliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_delivery_errors_total",
			Help: "Total number of mail delivery errors by template and error category",
		},
		[]string{"template", "error_category"}, // error_category: network, timeout, configuration
	)

	m.renderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_render_errors_total",
			Help: "Total number of mail template rendering errors",
		},
		[]string{"template"},
	)

	return nil
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *MailMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.deliveriesTotal,
		m.deliveryDuration,
		m.deliveryErrors,
		m.renderErrors,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *MailMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *MailMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordDelivery records a mail delivery attempt with its outcome and duration.
func (m *MailMetrics) RecordDelivery(template, status string, duration float64) {
	m.deliveriesTotal.WithLabelValues(template, status).Inc()
	m.deliveryDuration.WithLabelValues(template).Observe(duration)
}

// RecordDeliveryError records a mail delivery error.
func (m *MailMetrics) RecordDeliveryError(template, errorCategory string) {
	m.deliveryErrors.WithLabelValues(template, errorCategory).Inc()
}

// RecordRenderError records a template rendering error.
func (m *MailMetrics) RecordRenderError(template string) {
	m.renderErrors.WithLabelValues(template).Inc()
}
