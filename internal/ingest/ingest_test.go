package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/jobqueue"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

type fakeDepositor struct {
	mu       sync.Mutex
	sessions []uint
	doi      string
	err      error
}

func (d *fakeDepositor) DepositSession(_ context.Context, sessionID uint) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = append(d.sessions, sessionID)
	if d.err != nil {
		return "", d.err
	}
	return d.doi, nil
}

func (d *fakeDepositor) deposited() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint(nil), d.sessions...)
}

type ingestFixture struct {
	processor *Processor
	ds        datastore.Interface
	store     *mediastore.Store
	depositor *fakeDepositor
}

func newIngestFixture(t *testing.T, mutate func(*conf.Settings)) *ingestFixture {
	t.Helper()

	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(base, "catalog.db")
	settings.Media.BasePath = filepath.Join(base, "media")
	settings.Media.TempPath = filepath.Join(base, "media", "temp")
	if mutate != nil {
		mutate(settings)
	}

	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	store, err := mediastore.New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	depositor := &fakeDepositor{doi: "10.5281/zenodo.123456"}
	return &ingestFixture{
		processor: New(settings, ds, store, nil, depositor, nil),
		ds:        ds,
		store:     store,
		depositor: depositor,
	}
}

// writeWAV renders a two second mono WAV at the given location.
func writeWAV(t *testing.T, path string) {
	t.Helper()

	const sampleRate = 48000

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, 2*sampleRate),
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 512) - 256
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func (f *ingestFixture) seedRecording(t *testing.T, mutate func(*datastore.Recording)) uint {
	t.Helper()

	rec := datastore.Recording{Name: "usv-call", Status: datastore.StatusPending}
	if mutate != nil {
		mutate(&rec)
	}
	require.NoError(t, f.ds.SaveRecording(&rec))
	return rec.ID
}

func TestProcessRecordingLocalClip(t *testing.T) {
	fx := newIngestFixture(t, nil)

	clipRel := conf.UploadsDirName + "/usv-call.wav"
	writeWAV(t, filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel)))
	id := fx.seedRecording(t, func(r *datastore.Recording) { r.ClipPath = clipRel })

	require.NoError(t, fx.processor.ProcessRecording(context.Background(), id))

	rec, err := fx.ds.GetRecording(id)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusMetadataExtracted, rec.Status)
	assert.Equal(t, 48000, rec.SamplingRate)
	assert.Equal(t, 2, rec.Duration)
	assert.Equal(t, 16, rec.BitDepth)
	assert.Equal(t, 1, rec.Channels)
	assert.Equal(t, "wav", rec.Format)
	assert.Positive(t, rec.SizeBytes)

	// Without a session there is nothing to deposit.
	assert.Empty(t, fx.depositor.deposited())
}

func TestProcessRecordingStagesLinkedFile(t *testing.T) {
	fx := newIngestFixture(t, nil)

	writeWAV(t, filepath.Join(fx.store.TempDir(), "upload-7f.wav"))
	id := fx.seedRecording(t, func(r *datastore.Recording) { r.Link = "/temp/upload-7f.wav" })

	require.NoError(t, fx.processor.ProcessRecording(context.Background(), id))

	rec, err := fx.ds.GetRecording(id)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusMetadataExtracted, rec.Status)
	assert.Equal(t, 48000, rec.SamplingRate)

	// The staged copy must not outlive the pipeline run.
	entries, err := fx.store.ReadDir(mediastore.Ref{Area: mediastore.AreaTemp})
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), "tmp_", "staged copy left behind: %s", entry.Name())
	}
}

func TestProcessRecordingMissingFile(t *testing.T) {
	fx := newIngestFixture(t, nil)

	id := fx.seedRecording(t, func(r *datastore.Recording) {
		r.ClipPath = conf.UploadsDirName + "/vanished.wav"
	})

	err := fx.processor.ProcessRecording(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	rec, getErr := fx.ds.GetRecording(id)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.StatusError, rec.Status)
	assert.Contains(t, rec.StatusDetail, "vanished.wav")
}

func TestProcessRecordingWithoutFileReference(t *testing.T) {
	fx := newIngestFixture(t, nil)

	id := fx.seedRecording(t, nil)

	err := fx.processor.ProcessRecording(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	rec, getErr := fx.ds.GetRecording(id)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.StatusError, rec.Status)
}

func TestProcessRecordingUnreadableAudio(t *testing.T) {
	fx := newIngestFixture(t, nil)

	clipRel := conf.UploadsDirName + "/noise.wav"
	bad := filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel))
	require.NoError(t, os.WriteFile(bad, []byte("not a wav file"), 0o644))
	id := fx.seedRecording(t, func(r *datastore.Recording) { r.ClipPath = clipRel })

	err := fx.processor.ProcessRecording(context.Background(), id)
	require.Error(t, err)

	rec, getErr := fx.ds.GetRecording(id)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.StatusError, rec.Status)
	assert.NotEmpty(t, rec.StatusDetail)
}

func TestProcessRecordingDepositsSession(t *testing.T) {
	fx := newIngestFixture(t, func(s *conf.Settings) {
		s.Zenodo.Enabled = true
	})

	session := datastore.RecordingSession{Name: "session-1", Date: time.Now()}
	require.NoError(t, fx.ds.SaveRecordingSession(&session))

	clipRel := conf.UploadsDirName + "/usv-call.wav"
	writeWAV(t, filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel)))
	id := fx.seedRecording(t, func(r *datastore.Recording) {
		r.ClipPath = clipRel
		r.RecordingSessionID = &session.ID
	})

	require.NoError(t, fx.processor.ProcessRecording(context.Background(), id))
	assert.Equal(t, []uint{session.ID}, fx.depositor.deposited())
}

func TestProcessRecordingDepositFailureMarksError(t *testing.T) {
	fx := newIngestFixture(t, func(s *conf.Settings) {
		s.Zenodo.Enabled = true
	})
	fx.depositor.err = errors.Newf("deposition rejected").
		Component("zenodo").
		Category(errors.CategoryDeposition).
		Build()

	session := datastore.RecordingSession{Name: "session-2", Date: time.Now()}
	require.NoError(t, fx.ds.SaveRecordingSession(&session))

	clipRel := conf.UploadsDirName + "/usv-call.wav"
	writeWAV(t, filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel)))
	id := fx.seedRecording(t, func(r *datastore.Recording) {
		r.ClipPath = clipRel
		r.RecordingSessionID = &session.ID
	})

	err := fx.processor.ProcessRecording(context.Background(), id)
	require.Error(t, err)

	rec, getErr := fx.ds.GetRecording(id)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.StatusError, rec.Status)
	assert.Contains(t, rec.StatusDetail, "deposition rejected")
}

func TestDepositSkippedWhenDisabled(t *testing.T) {
	fx := newIngestFixture(t, nil)

	session := datastore.RecordingSession{Name: "session-3", Date: time.Now()}
	require.NoError(t, fx.ds.SaveRecordingSession(&session))

	clipRel := conf.UploadsDirName + "/usv-call.wav"
	writeWAV(t, filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel)))
	id := fx.seedRecording(t, func(r *datastore.Recording) {
		r.ClipPath = clipRel
		r.RecordingSessionID = &session.ID
	})

	require.NoError(t, fx.processor.ProcessRecording(context.Background(), id))
	assert.Empty(t, fx.depositor.deposited())

	rec, err := fx.ds.GetRecording(id)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusMetadataExtracted, rec.Status)
}

func TestEnqueueRecordingRunsJob(t *testing.T) {
	fx := newIngestFixture(t, nil)

	clipRel := conf.UploadsDirName + "/queued.wav"
	writeWAV(t, filepath.Join(fx.store.BaseDir(), filepath.FromSlash(clipRel)))
	id := fx.seedRecording(t, func(r *datastore.Recording) { r.ClipPath = clipRel })

	fx.processor.queue.SetProcessingInterval(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.processor.Start(ctx)
	t.Cleanup(func() { _ = fx.processor.Stop() })

	job, err := fx.processor.EnqueueRecording(id)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Eventually(t, func() bool {
		rec, err := fx.ds.GetRecording(id)
		return err == nil && rec.Status == datastore.StatusMetadataExtracted
	}, 5*time.Second, 20*time.Millisecond)

	stats := fx.processor.QueueStats()
	assert.Equal(t, 1, stats.TotalJobs)
}

func TestErrorClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"file io", errors.Newf("x").Category(errors.CategoryFileIO).Build(), "io"},
		{"decode", errors.Newf("x").Category(errors.CategoryAudio).Build(), "decode"},
		{"validation", errors.Newf("x").Category(errors.CategoryValidation).Build(), "validation"},
		{"deposition", errors.Newf("x").Category(errors.CategoryDeposition).Build(), "api"},
		{"network", errors.Newf("x").Category(errors.CategoryNetwork).Build(), "api"},
		{"plain", errors.NewStd("x"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, errorClass(tt.err))
		})
	}
}

func TestEnqueueAfterStopFails(t *testing.T) {
	fx := newIngestFixture(t, nil)

	fx.processor.Start(context.Background())
	require.NoError(t, fx.processor.Stop())

	_, err := fx.processor.EnqueueRecording(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobqueue.ErrQueueStopped))
}
