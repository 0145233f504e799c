package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

// recordingDepositor answers every deposit with a canned DOI and
// remembers which sessions it saw.
type recordingDepositor struct {
	mu       sync.Mutex
	sessions []uint
	done     chan struct{}
}

func (d *recordingDepositor) DepositSession(_ context.Context, sessionID uint) (string, error) {
	d.mu.Lock()
	d.sessions = append(d.sessions, sessionID)
	d.mu.Unlock()
	if d.done != nil {
		close(d.done)
	}
	return "10.5281/zenodo.900001", nil
}

func TestSessionCRUD(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodPost, "/api/v2/sessions", map[string]any{
		"name":        "female encounter day 1",
		"description": "5 minute pairing",
	}, memberToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[datastore.RecordingSession](t, rec)
	assert.NotZero(t, created.ID)
	assert.False(t, created.Date.IsZero(), "missing date defaults to now")
	require.NotNil(t, created.CreatedByID)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/sessions/%d", created.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	created.Description = "10 minute pairing"
	rec = doJSON(c, http.MethodPut, fmt.Sprintf("/api/v2/sessions/%d", created.ID), created, memberToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[datastore.RecordingSession](t, rec)
	assert.Equal(t, "10 minute pairing", updated.Description)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/sessions/%d", created.ID), nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/sessions/%d", created.ID), nil, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/sessions/%d", created.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionRequiresName(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/sessions", map[string]any{"name": "  "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachSubjectToSession(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	session := datastore.RecordingSession{Name: "pairing", Date: time.Now()}
	require.NoError(t, c.DS.SaveRecordingSession(&session))
	subject := datastore.Subject{Name: "B6-F-012", Sex: "female"}
	require.NoError(t, c.DS.SaveSubject(&subject))

	attachPath := fmt.Sprintf("/api/v2/sessions/%d/subjects", session.ID)

	rec := doJSON(c, http.MethodPost, attachPath, map[string]any{"subject_id": subject.ID}, memberToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// same pair again is ensured, not duplicated
	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{"subject_id": subject.ID}, memberToken)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{"subject_id": subject.ID + 99}, memberToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{}, memberToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodGet, attachPath, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	subjects := decodeBody[[]datastore.Subject](t, rec)
	require.Len(t, subjects, 1)
	assert.Equal(t, "B6-F-012", subjects[0].Name)

	rec = doJSON(c, http.MethodGet, "/api/v2/subject-sessions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	links := decodeBody[[]datastore.SubjectSession](t, rec)
	require.Len(t, links, 1)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/subject-sessions/%d", links[0].ID), nil, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/subject-sessions/%d", links[0].ID), nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRecordingsListsOnlyOwnRows(t *testing.T) {
	c := newTestAPI(t, nil)

	first := datastore.RecordingSession{Name: "first", Date: time.Now()}
	require.NoError(t, c.DS.SaveRecordingSession(&first))
	second := datastore.RecordingSession{Name: "second", Date: time.Now()}
	require.NoError(t, c.DS.SaveRecordingSession(&second))

	for i, sessionID := range []uint{first.ID, first.ID, second.ID} {
		recording := datastore.Recording{
			Name:               fmt.Sprintf("cut %d", i),
			Status:             datastore.StatusPending,
			RecordingSessionID: &sessionID,
		}
		require.NoError(t, c.DS.SaveRecording(&recording))
	}

	rec := doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/sessions/%d/recordings", first.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	recordings := decodeBody[[]datastore.Recording](t, rec)
	assert.Len(t, recordings, 2)

	rec = doJSON(c, http.MethodGet, "/api/v2/sessions/9999/recordings", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishSessionWithoutDepositor(t *testing.T) {
	c := newTestAPI(t, nil)
	_, adminToken := seedAccount(t, c, "root", true)

	session := datastore.RecordingSession{Name: "pairing", Date: time.Now()}
	require.NoError(t, c.DS.SaveRecordingSession(&session))

	rec := doJSON(c, http.MethodPost, fmt.Sprintf("/api/v2/sessions/%d/publish", session.ID), nil, adminToken)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}

func TestPublishSession(t *testing.T) {
	depositor := &recordingDepositor{done: make(chan struct{})}
	c := newTestAPI(t, nil, WithDepositor(depositor))
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	session := datastore.RecordingSession{Name: "pairing", Date: time.Now()}
	require.NoError(t, c.DS.SaveRecordingSession(&session))
	publishPath := fmt.Sprintf("/api/v2/sessions/%d/publish", session.ID)

	rec := doJSON(c, http.MethodPost, publishPath, nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// nothing past the pipeline yet
	rec = doJSON(c, http.MethodPost, publishPath, nil, adminToken)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	recording := datastore.Recording{
		Name:               "cut 1",
		Status:             datastore.StatusMetadataExtracted,
		RecordingSessionID: &session.ID,
	}
	require.NoError(t, c.DS.SaveRecording(&recording))

	rec = doJSON(c, http.MethodPost, publishPath, nil, adminToken)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 1, body["recordings"], 0.01)

	select {
	case <-depositor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("deposit never ran")
	}
	depositor.mu.Lock()
	defer depositor.mu.Unlock()
	require.Len(t, depositor.sessions, 1)
	assert.Equal(t, session.ID, depositor.sessions[0])
}

func TestDatasetLifecycle(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodPost, "/api/v2/datasets", map[string]any{
		"name": "USV screening 2019",
		"doi":  "10.5281/zenodo.1234567",
		"link": "https://zenodo.org/record/1234567",
	}, memberToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dataset := decodeBody[datastore.Dataset](t, rec)
	require.NotZero(t, dataset.ID)

	first := datastore.Recording{Name: "cut 1", Status: datastore.StatusPublished}
	require.NoError(t, c.DS.SaveRecording(&first))
	second := datastore.Recording{Name: "cut 2", Status: datastore.StatusPublished}
	require.NoError(t, c.DS.SaveRecording(&second))

	attachPath := fmt.Sprintf("/api/v2/datasets/%d/recordings", dataset.ID)
	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{
		"recording_ids": []uint{first.ID, second.ID},
	}, memberToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dataset = decodeBody[datastore.Dataset](t, rec)
	assert.Len(t, dataset.Recordings, 2)

	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{
		"recording_ids": []uint{9999},
	}, memberToken)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = doJSON(c, http.MethodPost, attachPath, map[string]any{}, memberToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/datasets/%d", dataset.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/datasets/%d", dataset.ID), nil, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/datasets/%d", dataset.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDatasetRejectsBadDOI(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/datasets", map[string]any{
		"name": "USV screening 2019",
		"doi":  "zenodo.1234567",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
