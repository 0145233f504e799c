package jobqueue

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAction implements the Action interface for testing
type MockAction struct {
	ExecuteFunc  func(data any) error
	executeCount atomic.Int32
	ExecuteDelay time.Duration
}

func (m *MockAction) Execute(data any) error {
	m.executeCount.Add(1)

	if m.ExecuteDelay > 0 {
		time.Sleep(m.ExecuteDelay)
	}

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(data)
	}
	return nil
}

func (m *MockAction) GetExecuteCount() int {
	return int(m.executeCount.Load())
}

// setupTestQueue creates a started queue with a short tick for fast tests.
func setupTestQueue(t *testing.T, maxJobs, maxArchivedJobs int) *JobQueue {
	t.Helper()
	queue := NewJobQueueWithOptions(maxJobs, maxArchivedJobs, false)
	queue.SetProcessingInterval(10 * time.Millisecond)
	queue.Start()
	return queue
}

func teardownTestQueue(t *testing.T, queue *JobQueue) {
	t.Helper()
	err := queue.StopWithTimeout(2 * time.Second)
	require.NoError(t, err, "Failed to stop job queue")
}

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBasicQueueFunctionality(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 100, 10)
	defer teardownTestQueue(t, queue)

	action := &MockAction{}

	job, err := queue.Enqueue(action, "payload", fastRetryConfig(3))
	require.NoError(t, err, "Failed to enqueue job")
	require.NotNil(t, job, "Job should not be nil")

	require.Eventually(t, func() bool {
		return queue.GetStats().SuccessfulJobs == 1
	}, 2*time.Second, 10*time.Millisecond, "Job should complete")

	assert.Equal(t, 1, action.GetExecuteCount(), "Action should have been executed once")

	stats := queue.GetStats()
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 0, stats.FailedJobs)
}

func TestEnqueueNilAction(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 10, 10)
	defer teardownTestQueue(t, queue)

	_, err := queue.Enqueue(nil, nil, RetryConfig{})
	assert.ErrorIs(t, err, ErrNilAction)
}

func TestEnqueueAfterStop(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 10, 10)
	require.NoError(t, queue.StopWithTimeout(time.Second))

	_, err := queue.Enqueue(&MockAction{}, nil, RetryConfig{})
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestRetryUntilSuccess(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 100, 10)
	defer teardownTestQueue(t, queue)

	var attempts atomic.Int32
	action := &MockAction{
		ExecuteFunc: func(data any) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient failure")
			}
			return nil
		},
	}

	_, err := queue.Enqueue(action, nil, fastRetryConfig(5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.GetStats().SuccessfulJobs == 1
	}, 5*time.Second, 10*time.Millisecond, "Job should eventually succeed")

	assert.Equal(t, 3, action.GetExecuteCount(), "Action should have run three times")
}

func TestPermanentFailure(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 100, 10)
	defer teardownTestQueue(t, queue)

	action := &MockAction{
		ExecuteFunc: func(data any) error {
			return errors.New("persistent failure")
		},
	}

	job, err := queue.Enqueue(action, nil, fastRetryConfig(2))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.GetStats().FailedJobs == 1
	}, 5*time.Second, 10*time.Millisecond, "Job should fail permanently")

	assert.Equal(t, 3, action.GetExecuteCount(), "MaxRetries+1 total attempts")
	assert.Error(t, job.LastError)
}

func TestPanicRecovery(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 100, 10)
	defer teardownTestQueue(t, queue)

	action := &MockAction{
		ExecuteFunc: func(data any) error {
			panic("deliberate panic")
		},
	}

	_, err := queue.Enqueue(action, nil, RetryConfig{Enabled: false})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.GetStats().FailedJobs == 1
	}, 2*time.Second, 10*time.Millisecond, "Panicking job should be marked failed")
}

func TestQueueFullDropsOldestPending(t *testing.T) {
	t.Parallel()

	// A very long tick keeps enqueued jobs pending for the whole test
	queue := NewJobQueueWithOptions(3, 10, false)
	queue.SetProcessingInterval(time.Hour)
	queue.Start()
	defer teardownTestQueue(t, queue)

	first, err := queue.Enqueue(&MockAction{}, "first", RetryConfig{})
	require.NoError(t, err)
	for _, name := range []string{"second", "third"} {
		_, err = queue.Enqueue(&MockAction{}, name, RetryConfig{})
		require.NoError(t, err)
	}

	// Queue is now at capacity; the next enqueue drops the oldest pending
	_, err = queue.Enqueue(&MockAction{}, "fourth", RetryConfig{})
	require.NoError(t, err, "Enqueue should succeed by dropping the oldest pending job")

	stats := queue.GetStats()
	assert.Equal(t, 1, stats.DroppedJobs, "One job should have been dropped")
	assert.Equal(t, 4, stats.TotalJobs)
	assert.Equal(t, 3, queue.PendingCount())
	assert.Equal(t, "job-1", first.ID)
}

func TestStatsSnapshot(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 50, 10)
	defer teardownTestQueue(t, queue)

	for i := 0; i < 5; i++ {
		_, err := queue.Enqueue(&MockAction{}, fmt.Sprintf("job-%d", i), RetryConfig{})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return queue.GetStats().SuccessfulJobs == 5
	}, 2*time.Second, 10*time.Millisecond)

	stats := queue.GetStats()
	assert.Equal(t, 5, stats.TotalJobs)
	assert.Equal(t, 50, stats.MaxQueueSize)
	assert.Contains(t, stats.ActionStats, "*jobqueue.MockAction")
	assert.Equal(t, 5, stats.ActionStats["*jobqueue.MockAction"].Successful)
}

func TestStopWaitsForRunningJobs(t *testing.T) {
	t.Parallel()

	queue := setupTestQueue(t, 10, 10)

	started := make(chan struct{})
	action := &MockAction{
		ExecuteFunc: func(data any) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}

	_, err := queue.Enqueue(action, nil, RetryConfig{})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	require.NoError(t, queue.StopWithTimeout(2*time.Second))
	assert.Equal(t, 1, queue.GetStats().SuccessfulJobs, "Running job should finish before stop returns")
}

func TestCalculateBackoffDelay(t *testing.T) {
	t.Parallel()

	config := RetryConfig{
		Enabled:      true,
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	// Jitter is ±10%, check delays stay within the envelope
	for attempt := 0; attempt < 3; attempt++ {
		delay := calculateBackoffDelay(config, attempt)
		base := float64(config.InitialDelay) * pow(config.Multiplier, attempt)
		assert.GreaterOrEqual(t, float64(delay), base*0.9, "attempt %d", attempt)
		assert.LessOrEqual(t, float64(delay), base*1.1+1, "attempt %d", attempt)
	}

	// Large attempt counts are capped at MaxDelay
	assert.LessOrEqual(t, calculateBackoffDelay(config, 20), config.MaxDelay)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
