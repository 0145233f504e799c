package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatorSuppressesWithinWindow(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(&DeduplicationConfig{
		Enabled:         true,
		TTL:             time.Hour,
		CleanupInterval: time.Hour,
	})

	event := NewEvent(TypeRecordingPublished, 42, nil)
	assert.True(t, d.ShouldProcess(event))
	assert.False(t, d.ShouldProcess(event))
	assert.True(t, d.ShouldProcess(NewEvent(TypeRecordingPublished, 43, nil)))

	stats := d.GetStats()
	assert.Equal(t, uint64(3), stats.TotalSeen)
	assert.Equal(t, uint64(1), stats.TotalSuppressed)
	assert.Equal(t, 2, stats.CacheSize)
}

func TestDeduplicatorExpiry(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(&DeduplicationConfig{
		Enabled:         true,
		TTL:             30 * time.Millisecond,
		CleanupInterval: time.Hour,
	})

	event := NewEvent(TypeDatasetCreated, 1, nil)
	assert.True(t, d.ShouldProcess(event))
	assert.False(t, d.ShouldProcess(event))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, d.ShouldProcess(event), "expired key must pass again")
}

func TestDeduplicatorDisabled(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(&DeduplicationConfig{Enabled: false})

	event := NewEvent(TypeUserRegistered, 1, nil)
	assert.True(t, d.ShouldProcess(event))
	assert.True(t, d.ShouldProcess(event), "disabled deduplicator passes everything")
}
