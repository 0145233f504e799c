// sessions.go: recording session CRUD, subject attachment and the
// deposit trigger that publishes a session to the external repository.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// depositTimeout bounds one background session deposit.
const depositTimeout = 30 * time.Minute

func (c *Controller) initSessionRoutes() {
	g := c.Group

	g.GET("/sessions", c.ListRecordingSessions)
	g.GET("/sessions/:id", c.GetRecordingSession)
	g.GET("/sessions/:id/recordings", c.SessionRecordings)
	g.GET("/sessions/:id/subjects", c.SessionSubjects)
	g.POST("/sessions", c.CreateRecordingSession, c.authRequired())
	g.POST("/sessions/:id/subjects", c.AttachSubject, c.authRequired())
	g.POST("/sessions/:id/publish", c.PublishSession, c.adminRequired())
	g.PUT("/sessions/:id", c.UpdateRecordingSession, c.authRequired())
	g.DELETE("/sessions/:id", c.DeleteRecordingSession, c.adminRequired())

	g.GET("/subject-sessions", c.ListSubjectSessions)
	g.DELETE("/subject-sessions/:id", c.DeleteSubjectSession, c.adminRequired())
}

func (c *Controller) ListRecordingSessions(ctx echo.Context) error {
	sessions, err := c.DS.ListRecordingSessions()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "session")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (c *Controller) GetRecordingSession(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	session, err := c.DS.GetRecordingSession(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	return ctx.JSON(http.StatusOK, session)
}

func (c *Controller) CreateRecordingSession(ctx echo.Context) error {
	var session datastore.RecordingSession
	if err := ctx.Bind(&session); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(session.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Session name is required", http.StatusBadRequest)
	}
	session.ID = 0
	session.Name = name
	if session.Date.IsZero() {
		session.Date = time.Now()
	}
	stampCreator(ctx, &session.CreatedByID)

	if err := c.DS.SaveRecordingSession(&session); err != nil {
		return c.writeStoreError(ctx, err, nil, "session")
	}
	return ctx.JSON(http.StatusCreated, session)
}

func (c *Controller) UpdateRecordingSession(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	session, err := c.DS.GetRecordingSession(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}

	created := session.Audit
	if err := ctx.Bind(&session); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	session.ID = id
	session.Audit = created

	if _, ok := requireName(session.Name); !ok {
		return c.HandleError(ctx, nil, "Session name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveRecordingSession(&session); err != nil {
		return c.writeStoreError(ctx, err, nil, "session")
	}
	return ctx.JSON(http.StatusOK, session)
}

func (c *Controller) DeleteRecordingSession(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteRecordingSession(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// SessionRecordings lists the recordings belonging to one session.
func (c *Controller) SessionRecordings(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	if _, err := c.DS.GetRecordingSession(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	recordings, err := c.DS.RecordingsForSession(id)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "recording")
	}
	return ctx.JSON(http.StatusOK, recordings)
}

// SessionSubjects lists the animals linked to one session.
func (c *Controller) SessionSubjects(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	if _, err := c.DS.GetRecordingSession(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	subjects, err := c.DS.SubjectsForSession(id)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "subject")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

// AttachSubject links an animal to a session. Linking the same pair
// twice is a no-op, the row is ensured rather than duplicated.
func (c *Controller) AttachSubject(ctx echo.Context) error {
	sessionID, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}

	var req struct {
		SubjectID uint `json:"subject_id"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.SubjectID == 0 {
		return c.HandleError(ctx, nil, "subject_id is required", http.StatusBadRequest)
	}

	if _, err := c.DS.GetRecordingSession(sessionID); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	if _, err := c.DS.GetSubject(req.SubjectID); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSubjectNotFound, "subject")
	}

	if err := c.DS.LinkSubjectToSession(req.SubjectID, sessionID); err != nil {
		return c.writeStoreError(ctx, err, nil, "subject session link")
	}
	return ctx.JSON(http.StatusCreated, map[string]any{
		"subject_id":           req.SubjectID,
		"recording_session_id": sessionID,
	})
}

func (c *Controller) ListSubjectSessions(ctx echo.Context) error {
	links, err := c.DS.ListSubjectSessions()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "subject session link")
	}
	return ctx.JSON(http.StatusOK, links)
}

func (c *Controller) DeleteSubjectSession(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid link id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteSubjectSession(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrLinkNotFound, "subject session link")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PublishSession deposits every publishable recording of a session to
// the configured repository. The deposit runs in the background, the
// response only confirms the trigger.
func (c *Controller) PublishSession(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid session id", http.StatusBadRequest)
	}
	if _, err := c.DS.GetRecordingSession(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSessionNotFound, "session")
	}
	if c.depositor == nil {
		return c.HandleError(ctx,
			errors.Newf("no deposit backend configured").
				Component("api").
				Category(errors.CategoryConfiguration).
				Build(),
			"Deposits are not configured", http.StatusServiceUnavailable)
	}

	recordings, err := c.DS.PublishableRecordingsForSession(id)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "recording")
	}
	if len(recordings) == 0 {
		return c.HandleError(ctx, nil, "Session has no publishable recordings", http.StatusConflict)
	}

	go func() {
		depositCtx, cancel := context.WithTimeout(context.Background(), depositTimeout)
		defer cancel()
		doi, err := c.depositor.DepositSession(depositCtx, id)
		if err != nil {
			c.apiLogger.Error("session deposit failed", "session_id", id, "error", err)
			return
		}
		c.apiLogger.Info("session deposited", "session_id", id, "doi", doi)
	}()

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"session_id": id,
		"recordings": len(recordings),
		"status":     "deposit started",
	})
}
