package jobqueue

import "time"

// Job represents a unit of work in the job queue
type Job struct {
	ID          string      // Unique ID for this job
	Action      Action      // The action to execute
	Data        any         // Data for the action
	Attempts    int         // Number of attempts made so far
	MaxAttempts int         // Maximum number of attempts allowed
	CreatedAt   time.Time   // When the job was created
	NextRetryAt time.Time   // When to next attempt the job
	Status      JobStatus   // Current status of the job
	LastError   error       // Last error encountered
	Config      RetryConfig // Retry configuration for this job
}

// JobStats tracks statistics about job processing
type JobStats struct {
	TotalJobs      int
	SuccessfulJobs int
	FailedJobs     int
	StaleJobs      int
	ArchivedJobs   int
	DroppedJobs    int
	RetryAttempts  int
	ActionStats    map[string]ActionStats // Key is the type name of the action
}

// JobStatsSnapshot provides a point-in-time snapshot of job
// statistics, JSON-shaped for the system status endpoint.
type JobStatsSnapshot struct {
	TotalJobs      int `json:"total"`
	SuccessfulJobs int `json:"successful"`
	FailedJobs     int `json:"failed"`
	StaleJobs      int `json:"stale"`
	ArchivedJobs   int `json:"archived"`
	DroppedJobs    int `json:"dropped"`
	RetryAttempts  int `json:"retry_attempts"`

	PendingJobs      int     `json:"pending"`
	MaxQueueSize     int     `json:"max_size"`
	QueueUtilization float64 `json:"utilization"`

	ActionStats map[string]ActionStats `json:"actions"`
}

// ActionStats tracks statistics for a specific action type
type ActionStats struct {
	Attempted  int `json:"attempted"`  // Total attempts (including retries)
	Successful int `json:"successful"` // Successfully completed jobs
	Failed     int `json:"failed"`     // Permanently failed jobs (after retry attempts)
	Retried    int `json:"retried"`    // Number of retry attempts
	Dropped    int `json:"dropped"`    // Jobs dropped due to queue full
}
