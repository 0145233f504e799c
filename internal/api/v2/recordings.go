// recordings.go: recording CRUD, file upload and processing control.
package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/audioinfo"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

const (
	defaultRecordingPageSize = 50
	maxRecordingPageSize     = 200
)

func (c *Controller) initRecordingRoutes() {
	g := c.Group

	g.GET("/recordings", c.ListRecordings)
	g.GET("/recordings/:id", c.GetRecording)
	g.GET("/recordings/:id/status", c.GetRecordingStatus)
	g.POST("/recordings", c.CreateRecording, c.authRequired())
	g.POST("/recordings/upload", c.UploadRecording, c.authRequired())
	g.POST("/recordings/:id/process", c.ReprocessRecording, c.adminRequired())
	g.PUT("/recordings/:id", c.UpdateRecording, c.authRequired())
	g.DELETE("/recordings/:id", c.DeleteRecording, c.adminRequired())
}

func (c *Controller) ListRecordings(ctx echo.Context) error {
	limit := defaultRecordingPageSize
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.HandleError(ctx, err, "Invalid limit", http.StatusBadRequest)
		}
		limit = min(parsed, maxRecordingPageSize)
	}
	offset := 0
	if raw := ctx.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.HandleError(ctx, err, "Invalid offset", http.StatusBadRequest)
		}
		offset = parsed
	}

	recordings, err := c.DS.ListRecordings(limit, offset)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "recording")
	}
	return ctx.JSON(http.StatusOK, recordings)
}

func (c *Controller) GetRecording(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	recording, err := c.DS.GetRecording(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	return ctx.JSON(http.StatusOK, recording)
}

// GetRecordingStatus reports the processing state of one recording,
// polled by the frontend while the ingest pipeline runs.
func (c *Controller) GetRecordingStatus(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	recording, err := c.DS.GetRecording(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"id":            recording.ID,
		"name":          recording.Name,
		"status":        recording.Status,
		"status_detail": recording.StatusDetail,
	})
}

// validateRecording applies the DOI and link rules shared by create
// and update.
func (c *Controller) validateRecording(ctx echo.Context, recording *datastore.Recording) error {
	if err := ValidateDOI(recording.DOI); err != nil {
		return c.HandleError(ctx, err, "Invalid DOI", http.StatusBadRequest)
	}
	if err := ValidateURL(recording.Link); err != nil {
		return c.HandleError(ctx, err, "Invalid link", http.StatusBadRequest)
	}
	if err := validateDOILinkConsistency(recording.DOI, recording.Link); err != nil {
		return c.HandleError(ctx, err, "Inconsistent DOI and link", http.StatusBadRequest)
	}
	return nil
}

// CreateRecording registers a recording row without a file, for
// entries that live in an external repository and are only linked.
func (c *Controller) CreateRecording(ctx echo.Context) error {
	var recording datastore.Recording
	if err := ctx.Bind(&recording); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(recording.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Recording name is required", http.StatusBadRequest)
	}
	if err := c.validateRecording(ctx, &recording); err != nil {
		return err
	}
	recording.ID = 0
	recording.Name = name
	recording.ClipPath = ""
	recording.SpectrogramPath = ""
	if recording.Status == "" {
		recording.Status = datastore.StatusPending
	}
	stampCreator(ctx, &recording.CreatedByID)

	if err := c.DS.SaveRecording(&recording); err != nil {
		return c.writeStoreError(ctx, err, nil, "recording")
	}
	return ctx.JSON(http.StatusCreated, recording)
}

func (c *Controller) UpdateRecording(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	recording, err := c.DS.GetRecording(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}

	created := recording.Audit
	clipPath := recording.ClipPath
	spectrogramPath := recording.SpectrogramPath
	if err := ctx.Bind(&recording); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	recording.ID = id
	recording.Audit = created
	// file paths never change through the JSON surface
	recording.ClipPath = clipPath
	recording.SpectrogramPath = spectrogramPath

	if _, ok := requireName(recording.Name); !ok {
		return c.HandleError(ctx, nil, "Recording name is required", http.StatusBadRequest)
	}
	if err := c.validateRecording(ctx, &recording); err != nil {
		return err
	}
	if err := c.DS.SaveRecording(&recording); err != nil {
		return c.writeStoreError(ctx, err, nil, "recording")
	}
	return ctx.JSON(http.StatusOK, recording)
}

// DeleteRecording removes the row and, best effort, the stored clip
// and spectrogram.
func (c *Controller) DeleteRecording(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	recording, err := c.DS.GetRecording(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}

	if err := c.DS.DeleteRecording(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	for _, rel := range []string{recording.ClipPath, recording.SpectrogramPath} {
		if rel == "" {
			continue
		}
		if err := c.Store.Remove(mediastore.Ref{Area: mediastore.AreaMedia, Rel: rel}); err != nil {
			c.apiLogger.Warn("failed to remove recording file",
				"recording_id", id, "path", rel, "error", err)
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UploadRecording receives a multipart audio file, stores it and
// queues the recording for metadata extraction and spectrogram
// rendering. Responds before processing finishes.
func (c *Controller) UploadRecording(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, err, "An audio file is required", http.StatusBadRequest)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	format := strings.TrimPrefix(ext, ".")
	if !c.uploadTypeAllowed(ext) {
		c.recordUpload(format, "rejected")
		return c.HandleError(ctx, nil, "Unsupported file type", http.StatusBadRequest)
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.recordUpload(format, "error")
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	limit := c.Settings.Media.MaxUploadSizeMB * 1024 * 1024
	result, err := c.Store.SaveUpload(fileHeader.Filename, src, limit)
	if err != nil {
		if errors.Is(err, mediastore.ErrFileTooLarge) {
			c.recordUpload(format, "too_large")
			return c.HandleError(ctx, err, "File exceeds the upload size limit", http.StatusRequestEntityTooLarge)
		}
		c.recordUpload(format, "error")
		return c.HandleError(ctx, err, "Failed to store upload", http.StatusInternalServerError)
	}

	// header check before the row exists, a renamed text file should
	// fail here and not sit in the catalog as a broken entry
	if abs, absErr := c.Store.Abs(result.Ref); absErr == nil {
		if _, probeErr := audioinfo.ReadFile(abs); probeErr != nil {
			if removeErr := c.Store.Remove(result.Ref); removeErr != nil {
				c.apiLogger.Warn("failed to remove rejected upload",
					"path", result.Ref.Rel, "error", removeErr)
			}
			c.recordUpload(format, "invalid")
			return c.HandleError(ctx, probeErr, "File is not a valid audio recording",
				http.StatusUnprocessableEntity)
		}
	}

	recording := datastore.Recording{
		Name:      strings.TrimSpace(ctx.FormValue("name")),
		ClipPath:  result.Ref.Rel,
		Link:      mediastore.Link(result.Ref),
		Format:    format,
		SizeBytes: result.SizeBytes,
		Status:    datastore.StatusPending,
	}
	if recording.Name == "" {
		recording.Name = fileHeader.Filename
	}
	if id, err := formUint(ctx, "recording_session_id"); err != nil {
		return c.HandleError(ctx, err, "Invalid recording_session_id", http.StatusBadRequest)
	} else if id != nil {
		recording.RecordingSessionID = id
	}
	if id, err := formUint(ctx, "subject_id"); err != nil {
		return c.HandleError(ctx, err, "Invalid subject_id", http.StatusBadRequest)
	} else if id != nil {
		recording.SubjectID = id
	}
	if id, err := formUint(ctx, "species_id"); err != nil {
		return c.HandleError(ctx, err, "Invalid species_id", http.StatusBadRequest)
	} else if id != nil {
		recording.SpeciesID = id
	}
	stampCreator(ctx, &recording.CreatedByID)

	if err := c.DS.SaveRecording(&recording); err != nil {
		if removeErr := c.Store.Remove(result.Ref); removeErr != nil {
			c.apiLogger.Warn("failed to remove orphaned upload",
				"path", result.Ref.Rel, "error", removeErr)
		}
		c.recordUpload(format, "error")
		return c.writeStoreError(ctx, err, nil, "recording")
	}

	c.recordUpload(format, "success")
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordUploadSize(result.SizeBytes)
	}

	if c.processor != nil {
		if _, err := c.processor.EnqueueRecording(recording.ID); err != nil {
			c.apiLogger.Error("failed to enqueue recording",
				"recording_id", recording.ID, "error", err)
		}
	}
	return ctx.JSON(http.StatusCreated, recording)
}

// ReprocessRecording puts an existing recording back on the ingest
// queue, e.g. after a failed deposit.
func (c *Controller) ReprocessRecording(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	if _, err := c.DS.GetRecording(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	if c.processor == nil {
		return c.HandleError(ctx, nil, "Processing queue unavailable", http.StatusServiceUnavailable)
	}

	job, err := c.processor.EnqueueRecording(id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to enqueue recording", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusAccepted, map[string]any{
		"recording_id": id,
		"job_id":       job.ID,
	})
}

func (c *Controller) uploadTypeAllowed(ext string) bool {
	for _, allowed := range c.Settings.Media.AllowedTypes {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (c *Controller) recordUpload(format, status string) {
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordUpload(format, status)
	}
}

// formUint parses an optional numeric form field, nil when absent.
func formUint(ctx echo.Context, field string) (*uint, error) {
	raw := strings.TrimSpace(ctx.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	id := uint(parsed)
	return &id, nil
}
