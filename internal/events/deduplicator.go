package events

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// DeduplicationConfig controls duplicate suppression on the bus.
type DeduplicationConfig struct {
	Enabled         bool
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultDeduplicationConfig returns the default suppression window.
// Ten seconds is long enough to absorb request retries and double
// submits while still letting genuine re-publishes through.
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:         true,
		TTL:             10 * time.Second,
		CleanupInterval: time.Minute,
	}
}

// Deduplicator suppresses events with a recently seen key.
type Deduplicator struct {
	config *DeduplicationConfig
	seen   *cache.Cache

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64
}

// NewDeduplicator creates a deduplicator, nil config selects defaults.
func NewDeduplicator(config *DeduplicationConfig) *Deduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	return &Deduplicator{
		config: config,
		seen:   cache.New(config.TTL, config.CleanupInterval),
	}
}

// ShouldProcess reports whether the event is first of its key within the
// suppression window.
func (d *Deduplicator) ShouldProcess(event Event) bool {
	if d == nil || !d.config.Enabled {
		return true
	}

	d.totalSeen.Add(1)

	// Add fails when the key is present and unexpired, which is exactly
	// the duplicate case.
	if err := d.seen.Add(event.Key(), struct{}{}, cache.DefaultExpiration); err != nil {
		d.totalSuppressed.Add(1)
		return false
	}
	return true
}

// DeduplicationStats contains suppression counters.
type DeduplicationStats struct {
	TotalSeen       uint64
	TotalSuppressed uint64
	CacheSize       int
}

// GetStats returns current counters.
func (d *Deduplicator) GetStats() DeduplicationStats {
	if d == nil {
		return DeduplicationStats{}
	}
	return DeduplicationStats{
		TotalSeen:       d.totalSeen.Load(),
		TotalSuppressed: d.totalSuppressed.Load(),
		CacheSize:       d.seen.ItemCount(),
	}
}
