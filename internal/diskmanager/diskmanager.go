// Package diskmanager keeps the media tree tidy: it removes temp staging
// files left behind by interrupted ingests and spectrogram images whose
// source recording is gone.
package diskmanager

import (
	"context"
	"log/slog"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
)

var (
	logger      *slog.Logger
	diskMetrics *metrics.DiskManagerMetrics
)

func init() {
	logger = logging.ForService("diskmanager")
	if logger == nil {
		logger = slog.Default().With("service", "diskmanager")
	}
}

// SetMetrics wires the Prometheus collectors. Called once during
// observability setup.
func SetMetrics(m *metrics.DiskManagerMetrics) {
	diskMetrics = m
}

// Janitor periodically removes aged temp files and orphaned spectrograms.
type Janitor struct {
	store    *mediastore.Store
	interval time.Duration
	maxAge   time.Duration
	debug    bool
}

// NewJanitor builds a Janitor from the media cleanup settings.
func NewJanitor(settings *conf.Settings, store *mediastore.Store) (*Janitor, error) {
	cleanup := settings.Media.Cleanup

	maxAgeHours, err := conf.ParseRetentionPeriod(cleanup.MaxAge)
	if err != nil {
		return nil, errors.New(err).
			Component("diskmanager").
			Category(errors.CategoryConfiguration).
			Context("maxage", cleanup.MaxAge).
			Build()
	}

	interval, err := time.ParseDuration(cleanup.Interval)
	if err != nil || interval <= 0 {
		return nil, errors.Newf("invalid cleanup interval %q", cleanup.Interval).
			Component("diskmanager").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Janitor{
		store:    store,
		interval: interval,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		debug:    cleanup.Debug,
	}, nil
}

// Run executes cleanup on a ticker until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	logger.Info("cleanup janitor started",
		"interval", j.interval.String(), "temp_max_age", j.maxAge.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("cleanup janitor stopped")
			return
		case <-ticker.C:
			j.CleanupOnce()
		}
	}
}

// CleanupOnce runs one cleanup pass over the temp and spectrogram trees.
func (j *Janitor) CleanupOnce() {
	start := time.Now()
	failed := false

	if err := j.cleanupTemp(); err != nil {
		failed = true
		logger.Error("temp cleanup failed", "error", err)
	}
	if err := j.cleanupOrphanedSpectrograms(); err != nil {
		failed = true
		logger.Error("spectrogram cleanup failed", "error", err)
	}

	if diskMetrics != nil {
		status := "success"
		if failed {
			status = "error"
		}
		diskMetrics.RecordCleanupRun(status, time.Since(start).Seconds())
	}

	if usage, err := GetDiskUsage(j.store.BaseDir()); err == nil && j.debug {
		logger.Debug("cleanup pass finished",
			"duration_ms", time.Since(start).Milliseconds(),
			"disk_usage_percent", int(usage))
	}
}
