package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		hour     int
		minute   int
		wantErr  bool
	}{
		{"02:30", 2, 30, false},
		{"0:05", 0, 5, false},
		{"23:59", 23, 59, false},
		{" 14:00 ", 14, 0, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"-1:00", 0, 0, true},
		{"noon", 0, 0, true},
		{"12", 0, 0, true},
		{"12:xx", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			hour, minute, err := parseSchedule(tt.schedule)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	manager := NewManager(testManagerSettings(), "test")
	_, err := NewScheduler(manager, "25:00")
	require.Error(t, err)
}

func TestNextRunAfter(t *testing.T) {
	loc := time.UTC
	base := time.Date(2026, time.March, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before the scheduled time runs today",
			base.Add(1 * time.Hour),
			time.Date(2026, time.March, 10, 3, 15, 0, 0, loc),
		},
		{
			"exactly at the scheduled time waits a day",
			time.Date(2026, time.March, 10, 3, 15, 0, 0, loc),
			time.Date(2026, time.March, 11, 3, 15, 0, 0, loc),
		},
		{
			"after the scheduled time runs tomorrow",
			base.Add(12 * time.Hour),
			time.Date(2026, time.March, 11, 3, 15, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextRunAfter(tt.now, 3, 15)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestSchedulerStartStop(t *testing.T) {
	manager := NewManager(testManagerSettings(), "test")
	scheduler, err := NewScheduler(manager, "03:15")
	require.NoError(t, err)

	assert.False(t, scheduler.IsRunning())
	assert.True(t, scheduler.NextRun().IsZero())

	scheduler.Start()
	defer scheduler.Stop()

	assert.True(t, scheduler.IsRunning())
	next := scheduler.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(25*time.Hour)))

	// Starting again keeps the existing schedule.
	scheduler.Start()
	assert.True(t, next.Equal(scheduler.NextRun()))

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())

	// Stop on a stopped scheduler is a no-op.
	scheduler.Stop()
}
