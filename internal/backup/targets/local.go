// Package targets provides archive storage implementations for the
// backup manager.
package targets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600

	sidecarName = "metadata.json"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("backup")
	if logger == nil {
		logger = slog.Default().With("service", "backup")
	}
}

// LocalTarget stores archives in a directory tree, one subdirectory
// per backup holding the archive and its metadata sidecar.
type LocalTarget struct {
	path string
}

// LocalConfig holds configuration for the local filesystem target.
type LocalConfig struct {
	Path string
}

// NewLocalTarget creates a local filesystem target rooted at the
// configured path.
func NewLocalTarget(config LocalConfig) (*LocalTarget, error) {
	if config.Path == "" {
		return nil, errors.Newf("local target requires a path").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	clean := filepath.Clean(config.Path)
	if strings.Contains(clean, "..") {
		return nil, errors.Newf("local target path must not traverse upward").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("path", config.Path).
			Build()
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("path", config.Path).
			Build()
	}

	if err := os.MkdirAll(abs, dirPermissions); err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", abs).
			Build()
	}

	return &LocalTarget{path: abs}, nil
}

// Name implements backup.Target.
func (t *LocalTarget) Name() string {
	return "local"
}

// Store copies the archive into a directory named after the backup ID
// and writes the metadata sidecar next to it. Both writes go through a
// temp file renamed into place, a crashed run leaves no half-written
// backup behind.
func (t *LocalTarget) Store(ctx context.Context, archivePath string, meta *backup.Metadata) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryCancellation).
			Build()
	}

	backupDir := filepath.Join(t.path, meta.ID)
	if err := os.MkdirAll(backupDir, dirPermissions); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", backupDir).
			Build()
	}

	success := false
	defer func() {
		if !success {
			if rmErr := os.RemoveAll(backupDir); rmErr != nil {
				logger.Warn("failed to remove partial backup", "path", backupDir, "error", rmErr)
			}
		}
	}()

	dstPath := filepath.Join(backupDir, filepath.Base(archivePath))
	if err := atomicWrite(dstPath, func(f *os.File) error {
		src, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := src.Close(); closeErr != nil {
				logger.Warn("failed to close archive", "error", closeErr)
			}
		}()
		_, err = io.Copy(f, src)
		return err
	}); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dstPath).
			Build()
	}

	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := atomicWrite(filepath.Join(backupDir, sidecarName), func(f *os.File) error {
		_, err := f.Write(sidecar)
		return err
	}); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}

	// Size check catches short writes before the source archive is
	// thrown away.
	info, err := os.Stat(dstPath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dstPath).
			Build()
	}
	if info.Size() != meta.Size {
		return errors.Newf("stored archive size mismatch: want %d, got %d", meta.Size, info.Size()).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dstPath).
			Build()
	}

	success = true
	return nil
}

// atomicWrite writes through a temp file in the destination directory
// and renames it into place.
func atomicWrite(dstPath string, write func(*os.File) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(dstPath), ".backup-*.tmp")
	if err != nil {
		return err
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			if closeErr := tempFile.Close(); closeErr != nil {
				logger.Debug("temp file close after failure", "error", closeErr)
			}
			if rmErr := os.Remove(tempPath); rmErr != nil {
				logger.Warn("failed to remove temp file", "path", tempPath, "error", rmErr)
			}
		}
	}()

	if err := tempFile.Chmod(filePermissions); err != nil {
		return err
	}
	if err := write(tempFile); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempPath, dstPath); err != nil {
		return err
	}

	success = true
	return nil
}

// List reads the metadata sidecars of all stored backups.
func (t *LocalTarget) List(ctx context.Context) ([]backup.StoredBackup, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryCancellation).
			Build()
	}

	entries, err := os.ReadDir(t.path)
	if err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", t.path).
			Build()
	}

	var backups []backup.StoredBackup
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sidecarPath := filepath.Join(t.path, entry.Name(), sidecarName)
		data, err := os.ReadFile(sidecarPath)
		if err != nil {
			logger.Warn("skipping backup without sidecar", "dir", entry.Name(), "error", err)
			continue
		}

		var meta backup.Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			logger.Warn("skipping backup with corrupt sidecar", "dir", entry.Name(), "error", err)
			continue
		}

		backups = append(backups, backup.StoredBackup{Metadata: meta, Target: t.Name()})
	}
	return backups, nil
}

// Delete removes a stored backup by ID.
func (t *LocalTarget) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryCancellation).
			Build()
	}

	// IDs become directory names, refuse anything that resolves
	// outside the target root.
	if id == "" || id != filepath.Base(id) {
		return errors.Newf("invalid backup id %q", id).
			Component("backup").
			Category(errors.CategoryValidation).
			Build()
	}

	backupDir := filepath.Join(t.path, id)
	if _, err := os.Stat(backupDir); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNotFound).
			Context("id", id).
			Build()
	}
	if err := os.RemoveAll(backupDir); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("id", id).
			Build()
	}
	return nil
}

// Validate implements backup.Target.
func (t *LocalTarget) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Probe writability, a read-only mount should fail registration
	// rather than the nightly run.
	probe, err := os.CreateTemp(t.path, ".write-probe-*")
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", t.path).
			Build()
	}
	name := probe.Name()
	if closeErr := probe.Close(); closeErr != nil {
		logger.Debug("probe close", "error", closeErr)
	}
	if rmErr := os.Remove(name); rmErr != nil {
		logger.Warn("failed to remove write probe", "path", name, "error", rmErr)
	}
	return nil
}
