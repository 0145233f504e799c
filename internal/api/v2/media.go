// media.go: serves stored audio clips and spectrograms. Spectrograms
// are rendered on first request and cached on disk.
package api

import (
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/spectrogram"
)

func (c *Controller) initMediaRoutes() {
	g := c.Group

	g.GET("/media/audio/:filename", c.ServeAudioClip)
	g.GET("/media/spectrogram/:filename", c.ServeSpectrogram)
	g.GET("/recordings/:id/audio", c.ServeRecordingAudio)
	g.GET("/recordings/:id/spectrogram", c.ServeRecordingSpectrogram)
}

// uploadRef validates a client supplied filename and turns it into a
// reference under the uploads area.
func uploadRef(filename string) (mediastore.Ref, error) {
	rel, err := mediastore.ValidateRel(path.Join(conf.UploadsDirName, filename))
	if err != nil {
		return mediastore.Ref{}, err
	}
	return mediastore.Ref{Area: mediastore.AreaMedia, Rel: rel}, nil
}

// ServeAudioClip streams an uploaded audio file. Range requests are
// honored so the frontend player can seek.
func (c *Controller) ServeAudioClip(ctx echo.Context) error {
	ref, err := uploadRef(ctx.Param("filename"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid filename", http.StatusBadRequest)
	}
	return c.Store.ServeFile(ctx, ref)
}

// ServeSpectrogram returns the spectrogram PNG for an uploaded audio
// file, rendering it when it does not exist yet. The size query
// parameter selects a named width, raw drops axes and legend.
func (c *Controller) ServeSpectrogram(ctx echo.Context) error {
	audioRef, err := uploadRef(ctx.Param("filename"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid filename", http.StatusBadRequest)
	}
	return c.serveSpectrogramFor(ctx, audioRef)
}

// ServeRecordingAudio streams the clip attached to a recording row.
func (c *Controller) ServeRecordingAudio(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	clipPath, err := c.DS.GetRecordingClipPath(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	if clipPath == "" {
		return c.HandleError(ctx, nil, "Recording has no stored file", http.StatusNotFound)
	}
	return c.Store.ServeFile(ctx, mediastore.Ref{Area: mediastore.AreaMedia, Rel: clipPath})
}

// ServeRecordingSpectrogram streams or renders the spectrogram of a
// recording row.
func (c *Controller) ServeRecordingSpectrogram(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid recording id", http.StatusBadRequest)
	}
	recording, err := c.DS.GetRecording(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
	}
	if recording.ClipPath == "" {
		return c.HandleError(ctx, nil, "Recording has no stored file", http.StatusNotFound)
	}
	audioRef := mediastore.Ref{Area: mediastore.AreaMedia, Rel: recording.ClipPath}
	return c.serveSpectrogramFor(ctx, audioRef)
}

func (c *Controller) serveSpectrogramFor(ctx echo.Context, audioRef mediastore.Ref) error {
	if !c.Settings.Media.Spectrogram.Enabled {
		return c.HandleError(ctx, nil, "Spectrograms are disabled", http.StatusNotFound)
	}

	width, raw, err := c.spectrogramParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid spectrogram parameters", http.StatusBadRequest)
	}

	exists, err := c.Store.Exists(audioRef)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to locate audio file", http.StatusInternalServerError)
	}
	if !exists {
		return c.HandleError(ctx, nil, "Audio file not found", http.StatusNotFound)
	}

	pngRef, err := spectrogram.PathFor(audioRef, width, raw)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid spectrogram parameters", http.StatusBadRequest)
	}
	if ok, err := c.Store.Exists(pngRef); err == nil && ok {
		return c.Store.ServeFile(ctx, pngRef)
	}

	pngRef, err = c.generator.Generate(ctx.Request().Context(), audioRef, width, raw)
	if err != nil {
		return c.HandleError(ctx, err, "Spectrogram rendering failed", http.StatusInternalServerError)
	}
	return c.Store.ServeFile(ctx, pngRef)
}

// spectrogramParams reads the size and raw query parameters.
func (c *Controller) spectrogramParams(ctx echo.Context) (width int, raw bool, err error) {
	width = c.generator.DefaultWidth()
	if size := ctx.QueryParam("size"); size != "" {
		width, err = spectrogram.SizeToPixels(size)
		if err != nil {
			return 0, false, err
		}
	}
	if rawParam := ctx.QueryParam("raw"); rawParam != "" {
		raw, err = strconv.ParseBool(rawParam)
		if err != nil {
			return 0, false, err
		}
	}
	return width, raw, nil
}
