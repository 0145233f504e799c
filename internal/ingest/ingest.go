// Package ingest runs the processing pipeline for uploaded recordings:
// it stages the audio file, extracts header metadata into the catalog,
// renders a spectrogram and hands the session to the archive depositor.
// Jobs run on a retrying queue so a transient failure does not lose the
// recording.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/jobqueue"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
	"github.com/mousetube/mousetube-go/internal/spectrogram"
)

const (
	// pipelineTimeout bounds one pipeline run including the archive
	// upload, which moves multi-hundred-megabyte ultrasonic recordings.
	pipelineTimeout = 15 * time.Minute

	// queueExecTimeout must exceed pipelineTimeout so the queue's
	// watchdog never abandons a run before its own context fires.
	queueExecTimeout = pipelineTimeout + 30*time.Second

	// retryDelay before the single retry of a failed job.
	retryDelay = 10 * time.Second
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("ingest")
	if logger == nil {
		logger = slog.Default().With("service", "ingest")
	}
}

// Depositor publishes a recording session to the external archive and
// returns the minted DOI.
type Depositor interface {
	DepositSession(ctx context.Context, sessionID uint) (string, error)
}

// Processor owns the ingest job queue and executes the pipeline for
// enqueued recordings.
type Processor struct {
	settings  *conf.Settings
	ds        datastore.Interface
	store     *mediastore.Store
	generator *spectrogram.Generator
	depositor Depositor
	queue     *jobqueue.JobQueue
	metrics   *metrics.IngestMetrics
}

// New creates a Processor. The generator and depositor may be nil, the
// corresponding pipeline stages are then skipped regardless of settings.
func New(settings *conf.Settings, ds datastore.Interface, store *mediastore.Store,
	generator *spectrogram.Generator, depositor Depositor, obs *observability.Metrics) *Processor {

	queue := jobqueue.NewJobQueue()
	queue.SetExecTimeout(queueExecTimeout)

	p := &Processor{
		settings:  settings,
		ds:        ds,
		store:     store,
		generator: generator,
		depositor: depositor,
		queue:     queue,
	}
	if obs != nil {
		p.metrics = obs.Ingest
	}
	return p
}

// Start begins processing enqueued jobs until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.queue.StartWithContext(ctx)
	logger.Info("ingest processor started")
}

// Stop drains the queue and waits for running jobs to finish.
func (p *Processor) Stop() error {
	return p.queue.Stop()
}

// EnqueueRecording schedules the pipeline for one recording. A failed
// run is retried once after a short delay.
func (p *Processor) EnqueueRecording(recordingID uint) (*jobqueue.Job, error) {
	task := &recordingTask{processor: p, recordingID: recordingID}

	job, err := p.queue.Enqueue(task, recordingID, jobqueue.RetryConfig{
		Enabled:      true,
		MaxRetries:   1,
		InitialDelay: retryDelay,
		MaxDelay:     retryDelay,
		Multiplier:   1.0,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategorySystem).
			Context("operation", "enqueue").
			Context("recording_id", recordingID).
			Build()
	}

	if p.metrics != nil {
		p.metrics.SetQueueLength(p.queue.PendingCount())
	}
	logger.Debug("recording enqueued", "recording_id", recordingID, "job_id", job.ID)
	return job, nil
}

// QueueStats returns a snapshot of the job queue counters for the
// system status endpoint.
func (p *Processor) QueueStats() jobqueue.JobStatsSnapshot {
	return p.queue.GetStats()
}

// recordingTask adapts one recording's pipeline run to the job queue.
type recordingTask struct {
	processor   *Processor
	recordingID uint
}

func (t *recordingTask) Execute(_ any) error {
	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()
	return t.processor.ProcessRecording(ctx, t.recordingID)
}
