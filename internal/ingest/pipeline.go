// pipeline.go: the processing stages for a single recording.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/mousetube/mousetube-go/internal/audioinfo"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/events"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

// Stage names, doubling as metric labels.
const (
	stageStageFile         = "stage_file"
	stageExtractMetadata   = "extract_metadata"
	stageRenderSpectrogram = "render_spectrogram"
	stageDeposit           = "deposit"
)

// ProcessRecording runs the pipeline for one recording: processing
// status, file staging, metadata extraction (status metadata_extracted),
// optional spectrogram render, optional session deposition (status
// published). Any failure marks the recording errored with a truncated
// detail message.
func (p *Processor) ProcessRecording(ctx context.Context, recordingID uint) error {
	start := time.Now()

	rec, err := p.ds.GetRecording(recordingID)
	if err != nil {
		p.recordJob("error")
		return err
	}

	if err := p.ds.UpdateRecordingStatus(recordingID, datastore.StatusProcessing, ""); err != nil {
		p.recordJob("error")
		return err
	}

	if err := p.runPipeline(ctx, &rec); err != nil {
		p.markFailed(recordingID, err)
		p.recordJob("error")
		return err
	}

	p.recordJob("completed")
	if p.metrics != nil {
		p.metrics.RecordJobDuration(time.Since(start).Seconds())
	}
	logger.Info("recording processed",
		"recording_id", recordingID,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Processor) runPipeline(ctx context.Context, rec *datastore.Recording) error {
	audioRef, cleanup, err := p.stageFile(rec)
	if err != nil {
		p.recordStageError(stageStageFile, err)
		return err
	}
	defer cleanup()

	info, err := p.extractMetadata(rec.ID, audioRef)
	if err != nil {
		p.recordStageError(stageExtractMetadata, err)
		return err
	}

	events.Publish(events.NewEvent(events.TypeRecordingIngested, rec.ID, map[string]any{
		"format":           info.Format,
		"duration_seconds": int(info.Duration().Seconds()),
	}))

	p.renderSpectrogram(ctx, rec.ID, audioRef)

	if err := p.deposit(ctx, rec); err != nil {
		p.recordStageError(stageDeposit, err)
		return err
	}
	return nil
}

// stageFile returns a readable reference to the recording's audio. A
// locally uploaded clip is used in place; a link-only row is copied
// into temp staging and the returned cleanup removes the copy.
func (p *Processor) stageFile(rec *datastore.Recording) (mediastore.Ref, func(), error) {
	defer p.observeStage(stageStageFile, time.Now())
	noop := func() {}

	if rec.ClipPath != "" {
		ref := mediastore.Ref{Area: mediastore.AreaMedia, Rel: rec.ClipPath}
		ok, err := p.store.Exists(ref)
		if err != nil {
			return mediastore.Ref{}, noop, err
		}
		if !ok {
			return mediastore.Ref{}, noop, errors.Newf("recording file missing: %s", rec.ClipPath).
				Component("ingest").
				Category(errors.CategoryFileIO).
				Context("operation", stageStageFile).
				Context("recording_id", rec.ID).
				Build()
		}
		return ref, noop, nil
	}

	if rec.Link == "" {
		return mediastore.Ref{}, noop, errors.Newf("recording has neither a file nor a link").
			Component("ingest").
			Category(errors.CategoryValidation).
			Context("operation", stageStageFile).
			Context("recording_id", rec.ID).
			Build()
	}

	srcRef, err := p.store.ResolveLink(rec.Link)
	if err != nil {
		return mediastore.Ref{}, noop, err
	}
	ok, err := p.store.Exists(srcRef)
	if err != nil {
		return mediastore.Ref{}, noop, err
	}
	if !ok {
		return mediastore.Ref{}, noop, errors.Newf("linked file not found: %s", rec.Link).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("operation", stageStageFile).
			Context("recording_id", rec.ID).
			Build()
	}

	src, err := p.store.Open(srcRef)
	if err != nil {
		return mediastore.Ref{}, noop, err
	}
	defer src.Close()

	// The extension survives staging, metadata extraction dispatches on it.
	stagedName := fmt.Sprintf("tmp_%d%s", rec.ID, path.Ext(srcRef.Rel))
	stagedRef, err := p.store.SaveTemp(stagedName, src)
	if err != nil {
		return mediastore.Ref{}, noop, err
	}

	cleanup := func() {
		if err := p.store.Remove(stagedRef); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove staged file",
				"file", stagedRef.String(), "error", err)
		}
	}
	return stagedRef, cleanup, nil
}

// extractMetadata reads the audio header and writes the technical
// columns back to the catalog row.
func (p *Processor) extractMetadata(recordingID uint, audioRef mediastore.Ref) (audioinfo.Info, error) {
	defer p.observeStage(stageExtractMetadata, time.Now())

	absPath, err := p.store.Abs(audioRef)
	if err != nil {
		return audioinfo.Info{}, err
	}

	info, err := audioinfo.ReadFile(absPath)
	if err != nil {
		return audioinfo.Info{}, err
	}

	update := datastore.AudioInfoUpdate{
		SamplingRate: info.SampleRate,
		Duration:     int(info.Duration().Seconds()),
		BitDepth:     info.BitDepth,
		Channels:     info.NumChannels,
		SizeBytes:    info.SizeBytes,
		Format:       info.Format,
	}
	if err := p.ds.UpdateRecordingAudioInfo(recordingID, update); err != nil {
		return audioinfo.Info{}, err
	}
	if err := p.ds.UpdateRecordingStatus(recordingID, datastore.StatusMetadataExtracted, ""); err != nil {
		return audioinfo.Info{}, err
	}

	if p.metrics != nil {
		p.metrics.RecordAudioInfo(info.Format, info.Duration().Seconds(), info.SizeBytes)
	}
	return info, nil
}

// renderSpectrogram renders the default-size image for the recording.
// Rendering is best effort, the media endpoint renders on demand when
// no prebuilt image exists.
func (p *Processor) renderSpectrogram(ctx context.Context, recordingID uint, audioRef mediastore.Ref) {
	if p.generator == nil || !p.settings.Media.Spectrogram.Enabled {
		return
	}
	defer p.observeStage(stageRenderSpectrogram, time.Now())

	pngRef, err := p.generator.Generate(ctx, audioRef, p.generator.DefaultWidth(), false)
	if err != nil {
		p.recordStageError(stageRenderSpectrogram, err)
		logger.Warn("spectrogram render failed",
			"recording_id", recordingID, "error", err)
		return
	}

	if err := p.ds.UpdateRecordingSpectrogram(recordingID, pngRef.Rel); err != nil {
		logger.Error("failed to record spectrogram path",
			"recording_id", recordingID, "error", err)
	}
}

// deposit publishes the recording's session to the external archive.
// The depositor marks every member published and writes DOI and links.
func (p *Processor) deposit(ctx context.Context, rec *datastore.Recording) error {
	if p.depositor == nil || !p.settings.Zenodo.Enabled {
		return nil
	}
	if rec.RecordingSessionID == nil {
		logger.Debug("recording has no session, skipping deposition",
			"recording_id", rec.ID)
		return nil
	}
	defer p.observeStage(stageDeposit, time.Now())

	doi, err := p.depositor.DepositSession(ctx, *rec.RecordingSessionID)
	if err != nil {
		return err
	}

	events.Publish(events.NewEvent(events.TypeRecordingPublished, rec.ID, map[string]any{
		"doi":        doi,
		"session_id": *rec.RecordingSessionID,
	}))
	return nil
}

// markFailed sets the errored status with a truncated detail and emits
// the failure event.
func (p *Processor) markFailed(recordingID uint, cause error) {
	if err := p.ds.UpdateRecordingStatus(recordingID, datastore.StatusError, cause.Error()); err != nil {
		logger.Error("failed to record error status",
			"recording_id", recordingID, "error", err)
	}

	events.Publish(events.NewEvent(events.TypeRecordingFailed, recordingID, map[string]any{
		"error": datastore.TruncateStatusDetail(cause.Error()),
	}))
}

func (p *Processor) recordJob(status string) {
	if p.metrics != nil {
		p.metrics.RecordJob(status)
	}
}

func (p *Processor) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStageDuration(stage, time.Since(start).Seconds())
	}
}

func (p *Processor) recordStageError(stage string, err error) {
	if p.metrics != nil {
		p.metrics.RecordStageError(stage, errorClass(err))
	}
}

// errorClass maps an error to the coarse type label used by the stage
// error counter.
func errorClass(err error) string {
	switch {
	case errors.IsCategory(err, errors.CategoryFileIO):
		return "io"
	case errors.IsCategory(err, errors.CategoryAudio):
		return "decode"
	case errors.IsCategory(err, errors.CategoryValidation):
		return "validation"
	case errors.IsCategory(err, errors.CategoryDeposition),
		errors.IsCategory(err, errors.CategoryNetwork):
		return "api"
	default:
		return "other"
	}
}
