package backup

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// Scheduler runs a daily backup at a fixed local time.
type Scheduler struct {
	manager *Manager
	hour    int
	minute  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	nextRun time.Time
}

// NewScheduler parses the HH:MM schedule and returns a scheduler
// driving the manager.
func NewScheduler(manager *Manager, schedule string) (*Scheduler, error) {
	hour, minute, err := parseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	return &Scheduler{manager: manager, hour: hour, minute: minute}, nil
}

// parseSchedule splits a "HH:MM" daily schedule.
func parseSchedule(schedule string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(schedule), ":")
	if len(parts) != 2 {
		return 0, 0, errors.Newf("invalid backup schedule %q, expected HH:MM", schedule).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	hour, hErr := strconv.Atoi(parts[0])
	minute, mErr := strconv.Atoi(parts[1])
	if hErr != nil || mErr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Newf("invalid backup schedule %q, expected HH:MM", schedule).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return hour, minute, nil
}

// Start launches the scheduler loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.nextRun = nextRunAfter(time.Now(), s.hour, s.minute)

	go s.loop(ctx)
	logger.Info("backup scheduler started", "next_run", s.nextRun.Format(time.RFC3339))
}

// Stop halts the scheduler. A backup already in flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	logger.Info("backup scheduler stopped")
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the time of the next scheduled backup.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			due := !now.Before(s.nextRun)
			if due {
				s.nextRun = nextRunAfter(now, s.hour, s.minute)
			}
			s.mu.Unlock()

			if !due {
				continue
			}
			if err := s.manager.runDaily(ctx); err != nil {
				logger.Error("scheduled backup failed", "error", err)
			}
		}
	}
}

// nextRunAfter returns the first HH:MM occurrence strictly after now.
func nextRunAfter(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
