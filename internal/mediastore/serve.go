package mediastore

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// mapOpenErrorToHTTP converts sandbox open errors to HTTP errors so
// handlers can return them directly.
func mapOpenErrorToHTTP(err error, effectivePath string) *echo.HTTPError {
	switch {
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("File not found: %s", effectivePath))
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, os.ErrPermission):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	case errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrInvalidPath):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file path").SetInternal(err)
	case errors.Is(err, ErrNotRegularFile):
		return echo.NewHTTPError(http.StatusForbidden, "Not a regular file")
	default:
		logger.Error("unhandled error serving file", "path", effectivePath, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error serving file").SetInternal(err)
	}
}

// Audio types served by the catalog. The Go builtin table does not
// know wav or flac, and OS mime tables are not guaranteed in the
// container image.
var audioContentTypes = map[string]string{
	".wav":  "audio/wav",
	".flac": "audio/flac",
}

// contentType resolves a response content type from the file extension.
func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ServeFile streams a sandbox file through an HTTP response with Range
// support, a secure replacement for echo.Context.File.
func (s *Store) ServeFile(c echo.Context, ref Ref) error {
	ref, err := s.Resolve(ref)
	if err != nil {
		return mapOpenErrorToHTTP(err, ref.Rel)
	}

	f, err := s.rootFor(ref.Area).Open(ref.Rel)
	if err != nil {
		return mapOpenErrorToHTTP(err, ref.Rel)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close file", "ref", ref.String(), "error", err)
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get file info").SetInternal(err)
	}

	if !stat.Mode().IsRegular() {
		return mapOpenErrorToHTTP(ErrNotRegularFile, ref.Rel)
	}

	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, contentType(ref.Rel))
	}

	http.ServeContent(c.Response(), c.Request(), filepath.Base(ref.Rel), stat.ModTime(), f)
	return nil
}
