package jobqueue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

const defaultExecTimeout = 30 * time.Second

// JobQueue manages a queue of jobs that can be retried
type JobQueue struct {
	jobs               []*Job
	archivedJobs       []*Job // Completed and failed jobs kept for inspection
	mu                 sync.Mutex
	stats              JobStats
	jobCounter         int
	stopCh             chan struct{}
	runningJobs        sync.WaitGroup // Track running jobs for graceful shutdown
	isRunning          bool
	maxArchivedJobs    int // Maximum number of archived jobs to keep
	maxJobs            int // Maximum number of pending jobs in the queue
	logAllSuccesses    bool
	processCancel      context.CancelFunc
	processingInterval time.Duration
	execTimeout        time.Duration // Per-attempt execution timeout
}

// NewJobQueue creates a new job queue with default settings
func NewJobQueue() *JobQueue {
	return NewJobQueueWithOptions(1000, 100, false)
}

// NewJobQueueWithOptions creates a new job queue with custom settings
func NewJobQueueWithOptions(maxJobs, maxArchivedJobs int, logAllSuccesses bool) *JobQueue {
	return &JobQueue{
		jobs:               make([]*Job, 0),
		archivedJobs:       make([]*Job, 0),
		stopCh:             make(chan struct{}),
		maxArchivedJobs:    maxArchivedJobs,
		maxJobs:            maxJobs,
		logAllSuccesses:    logAllSuccesses,
		processingInterval: 1 * time.Second,
		execTimeout:        defaultExecTimeout,
		stats: JobStats{
			ActionStats: make(map[string]ActionStats),
		},
	}
}

// SetProcessingInterval overrides the scheduling tick, mainly so tests
// do not wait out the default second.
func (q *JobQueue) SetProcessingInterval(interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processingInterval = interval
}

// SetExecTimeout overrides the per-attempt execution timeout. Long
// operations such as archive uploads need more than the default.
func (q *JobQueue) SetExecTimeout(timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if timeout > 0 {
		q.execTimeout = timeout
	}
}

// Start starts the job queue processing
func (q *JobQueue) Start() {
	q.StartWithContext(context.Background())
}

// StartWithContext starts the job queue processing with a context
func (q *JobQueue) StartWithContext(ctx context.Context) {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	processCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.processCancel = cancel
	q.mu.Unlock()

	go q.processJobs(processCtx)
}

// Stop stops the job queue processing
func (q *JobQueue) Stop() error {
	return q.StopWithTimeout(10 * time.Second)
}

// StopWithTimeout stops the job queue processing, waiting up to
// timeout for running jobs to finish.
func (q *JobQueue) StopWithTimeout(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false

	if q.processCancel != nil {
		q.processCancel()
		q.processCancel = nil
	}

	close(q.stopCh)
	q.mu.Unlock()

	c := make(chan struct{})
	go func() {
		q.runningJobs.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for jobs to complete after %v", timeout)
	}
}

// Enqueue adds a job to the queue
func (q *JobQueue) Enqueue(action Action, data any, config RetryConfig) (*Job, error) {
	if action == nil {
		return nil, ErrNilAction
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return nil, ErrQueueStopped
	}

	if len(q.jobs) >= q.maxJobs {
		// Drop the oldest pending job to make room, refuse when all
		// slots hold running or retrying jobs.
		if !q.dropOldestPendingJob() {
			q.stats.DroppedJobs++
			q.bumpActionStats(action, func(s *ActionStats) { s.Dropped++ })
			return nil, fmt.Errorf("%w: maximum queue size (%d) reached", ErrQueueFull, q.maxJobs)
		}
	}

	q.jobCounter++
	job := &Job{
		ID:          fmt.Sprintf("job-%d", q.jobCounter),
		Action:      action,
		Data:        data,
		Attempts:    0,
		MaxAttempts: config.MaxRetries + 1,
		CreatedAt:   time.Now(),
		NextRetryAt: time.Now(), // Ready to run immediately
		Status:      JobStatusPending,
		Config:      config,
	}

	q.jobs = append(q.jobs, job)
	q.stats.TotalJobs++
	q.bumpActionStats(action, func(s *ActionStats) { s.Attempted++ })

	logger.Debug("job enqueued", "job_id", job.ID, "action_type", actionType(action))

	return job, nil
}

// bumpActionStats mutates the per-action counters. Callers must hold q.mu.
func (q *JobQueue) bumpActionStats(action Action, update func(*ActionStats)) {
	key := actionType(action)
	stats := q.stats.ActionStats[key]
	update(&stats)
	q.stats.ActionStats[key] = stats
}

func actionType(action Action) string {
	return fmt.Sprintf("%T", action)
}

// dropOldestPendingJob removes the oldest pending job from the queue
// to make room for a new job. Returns true if a job was dropped.
// Callers must hold q.mu.
func (q *JobQueue) dropOldestPendingJob() bool {
	oldestIdx := -1
	var oldestTime time.Time

	for i, job := range q.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if oldestIdx == -1 || job.CreatedAt.Before(oldestTime) {
			oldestIdx = i
			oldestTime = job.CreatedAt
		}
	}

	if oldestIdx == -1 {
		return false
	}

	oldestJob := q.jobs[oldestIdx]
	q.jobs = append(q.jobs[:oldestIdx], q.jobs[oldestIdx+1:]...)

	q.stats.DroppedJobs++
	q.bumpActionStats(oldestJob.Action, func(s *ActionStats) { s.Dropped++ })

	logger.Warn("dropped oldest pending job to make room",
		"job_id", oldestJob.ID,
		"action_type", actionType(oldestJob.Action))
	return true
}

// processJobs is the main job processing loop
func (q *JobQueue) processJobs(ctx context.Context) {
	q.mu.Lock()
	interval := q.processingInterval
	q.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			logger.Debug("job queue processing stopped via stop channel")
			return
		case <-ctx.Done():
			logger.Debug("job queue processing stopped via context", "cause", ctx.Err())
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			q.cleanupStaleJobs(ctx)
			q.processDueJobs(ctx)
		}
	}
}

// cleanupStaleJobs moves completed and failed jobs to the archive.
func (q *JobQueue) cleanupStaleJobs(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var activeJobs []*Job
	var staleJobs []*Job

	for _, job := range q.jobs {
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			staleJobs = append(staleJobs, job)
		} else {
			activeJobs = append(activeJobs, job)
		}
	}

	q.jobs = activeJobs
	q.archivedJobs = append(q.archivedJobs, staleJobs...)
	q.stats.StaleJobs += len(staleJobs)

	if len(q.archivedJobs) > q.maxArchivedJobs {
		excess := len(q.archivedJobs) - q.maxArchivedJobs
		q.archivedJobs = q.archivedJobs[excess:]
	}
	q.stats.ArchivedJobs = len(q.archivedJobs)
}

// calculateBackoffDelay calculates the delay before the next retry attempt
func calculateBackoffDelay(config RetryConfig, attemptNum int) time.Duration {
	backoff := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attemptNum))

	// ±10% jitter keeps simultaneous failures from retrying in lockstep
	jitterFactor := 0.9 + 0.2*float64(time.Now().Nanosecond())/1e9
	backoff *= jitterFactor

	if backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}

	return time.Duration(backoff)
}

// processDueJobs launches jobs whose next attempt time has arrived.
func (q *JobQueue) processDueJobs(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()

	var dueJobs []*Job
	now := time.Now()

	for _, job := range q.jobs {
		if (job.Status == JobStatusPending || job.Status == JobStatusRetrying) && !job.NextRetryAt.After(now) {
			dueJobs = append(dueJobs, job)
			job.Status = JobStatusRunning
		}
	}

	q.mu.Unlock()

	for _, job := range dueJobs {
		if ctx.Err() != nil {
			// Context was cancelled, revert claimed jobs and bail out
			q.mu.Lock()
			for _, j := range dueJobs {
				if j.Status == JobStatusRunning {
					if j.Attempts > 0 {
						j.Status = JobStatusRetrying
					} else {
						j.Status = JobStatusPending
					}
				}
			}
			q.mu.Unlock()
			return
		}

		q.runningJobs.Add(1)
		go func(j *Job) {
			defer q.runningJobs.Done()
			q.executeJob(ctx, j)
		}(job)
	}
}

// executeJob executes a job and handles retries if needed
func (q *JobQueue) executeJob(ctx context.Context, job *Job) {
	job.Attempts++

	q.mu.Lock()
	q.stats.RetryAttempts++
	q.bumpActionStats(job.Action, func(s *ActionStats) { s.Retried++ })
	execTimeout := q.execTimeout
	q.mu.Unlock()

	if job.Attempts > 1 {
		logger.Info("retrying job", logAttrs(ctx,
			"job_id", job.ID,
			"action_type", actionType(job.Action),
			"attempt", job.Attempts,
			"max_attempts", job.MaxAttempts)...)
	}

	execCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	var err error
	done := make(chan struct{})

	go func() {
		// Panic recovery keeps one bad action from killing the queue
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job execution panicked: %v", r)
			}
			close(done)
		}()

		err = job.Action.Execute(job.Data)
	}()

	select {
	case <-done:
		// Normal completion, err is already set
	case <-execCtx.Done():
		ctxErr := execCtx.Err()
		if ctxErr == context.DeadlineExceeded {
			err = fmt.Errorf("job execution timed out after %v: %w", execTimeout, ctxErr)
		} else {
			err = fmt.Errorf("job execution was cancelled: %w", ctxErr)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		job.LastError = err

		if job.Attempts >= job.MaxAttempts {
			job.Status = JobStatusFailed

			q.stats.FailedJobs++
			q.bumpActionStats(job.Action, func(s *ActionStats) { s.Failed++ })

			logger.Error("job failed permanently", logAttrs(ctx,
				"job_id", job.ID,
				"action_type", actionType(job.Action),
				"attempts", job.Attempts,
				"error", err)...)
		} else {
			job.Status = JobStatusRetrying

			delay := calculateBackoffDelay(job.Config, job.Attempts)
			job.NextRetryAt = time.Now().Add(delay)

			logger.Warn("job failed, scheduling retry", logAttrs(ctx,
				"job_id", job.ID,
				"action_type", actionType(job.Action),
				"retry_in", delay.String(),
				"attempt", job.Attempts,
				"max_attempts", job.MaxAttempts,
				"error", err)...)
		}
		return
	}

	job.Status = JobStatusCompleted

	q.stats.SuccessfulJobs++
	q.bumpActionStats(job.Action, func(s *ActionStats) { s.Successful++ })

	if job.Attempts > 1 || q.logAllSuccesses {
		logger.Info("job completed", logAttrs(ctx,
			"job_id", job.ID,
			"action_type", actionType(job.Action),
			"attempts", job.Attempts)...)
	}
}

// GetStats returns a snapshot of the current job statistics
func (q *JobQueue) GetStats() JobStatsSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	actionStatsCopy := make(map[string]ActionStats, len(q.stats.ActionStats))
	for k, v := range q.stats.ActionStats {
		actionStatsCopy[k] = v
	}

	pending := 0
	for _, job := range q.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRetrying {
			pending++
		}
	}

	utilization := 0.0
	if q.maxJobs > 0 {
		utilization = float64(len(q.jobs)) / float64(q.maxJobs) * 100
	}

	return JobStatsSnapshot{
		TotalJobs:        q.stats.TotalJobs,
		SuccessfulJobs:   q.stats.SuccessfulJobs,
		FailedJobs:       q.stats.FailedJobs,
		StaleJobs:        q.stats.StaleJobs,
		ArchivedJobs:     q.stats.ArchivedJobs,
		DroppedJobs:      q.stats.DroppedJobs,
		RetryAttempts:    q.stats.RetryAttempts,
		PendingJobs:      pending,
		MaxQueueSize:     q.maxJobs,
		QueueUtilization: utilization,
		ActionStats:      actionStatsCopy,
	}
}

// GetMaxJobs returns the maximum number of jobs allowed in the queue
func (q *JobQueue) GetMaxJobs() int {
	return q.maxJobs
}

// PendingCount returns the number of jobs waiting for execution.
func (q *JobQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := 0
	for _, job := range q.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRetrying {
			pending++
		}
	}
	return pending
}

// ProcessImmediately processes any pending jobs without waiting for
// the ticker. Intended for tests.
func (q *JobQueue) ProcessImmediately(ctx context.Context) {
	q.cleanupStaleJobs(ctx)
	q.processDueJobs(ctx)
}
