// Package sources provides database snapshot implementations for the
// backup manager.
package sources

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("backup")
	if logger == nil {
		logger = slog.Default().With("service", "backup")
	}
}

// SQLiteSource snapshots the SQLite catalog file.
type SQLiteSource struct {
	settings *conf.Settings
}

// NewSQLiteSource creates a snapshot source for the SQLite backend.
func NewSQLiteSource(settings *conf.Settings) *SQLiteSource {
	return &SQLiteSource{settings: settings}
}

// Name implements backup.Source.
func (s *SQLiteSource) Name() string {
	return "sqlite"
}

// Snapshot writes a consistent copy of the catalog into a temp file.
// VACUUM INTO produces a compacted copy that is safe against
// concurrent writers under WAL; when the running SQLite is too old for
// it the raw file is copied instead.
func (s *SQLiteSource) Snapshot(ctx context.Context) (string, func(), error) {
	dbPath := s.settings.Output.SQLite.Path
	if !filepath.IsAbs(dbPath) {
		abs, err := filepath.Abs(dbPath)
		if err != nil {
			return "", nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryFileIO).
				Context("path", dbPath).
				Build()
		}
		dbPath = abs
	}

	tempDir, err := os.MkdirTemp("", "sqlite-snapshot-*")
	if err != nil {
		return "", nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	cleanup := func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			logger.Warn("failed to remove snapshot dir", "path", tempDir, "error", rmErr)
		}
	}

	snapshotPath := filepath.Join(tempDir,
		"mousetube-sqlite-"+time.Now().UTC().Format("20060102150405")+".db")

	if err := s.vacuumInto(ctx, dbPath, snapshotPath); err != nil {
		logger.Warn("VACUUM INTO failed, falling back to file copy", "error", err)
		if copyErr := copySnapshot(dbPath, snapshotPath); copyErr != nil {
			cleanup()
			return "", nil, copyErr
		}
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		cleanup()
		return "", nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", snapshotPath).
			Build()
	}
	logger.Info("sqlite snapshot created", "path", snapshotPath, "bytes", info.Size())

	return snapshotPath, cleanup, nil
}

// vacuumInto opens the catalog read-only and asks SQLite to write a
// consistent compacted copy.
func (s *SQLiteSource) vacuumInto(ctx context.Context, dbPath, snapshotPath string) error {
	db, err := gorm.Open(sqlite.Open(dbPath+"?mode=ro"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryDatabase).
			Context("path", dbPath).
			Build()
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				logger.Warn("failed to close snapshot connection", "error", closeErr)
			}
		}
	}()

	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", snapshotPath).Error; err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

func copySnapshot(dbPath, snapshotPath string) error {
	src, err := os.Open(dbPath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dbPath).
			Build()
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			logger.Warn("failed to close catalog file", "error", closeErr)
		}
	}()

	dst, err := os.OpenFile(snapshotPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", snapshotPath).
			Build()
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil {
			logger.Warn("failed to close snapshot file", "error", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	return dst.Sync()
}

// Validate implements backup.Source.
func (s *SQLiteSource) Validate() error {
	if !s.settings.Output.SQLite.Enabled {
		return errors.Newf("sqlite backend is not enabled").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	dbPath := s.settings.Output.SQLite.Path
	if dbPath == "" {
		return errors.Newf("sqlite path is not configured").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := os.Stat(dbPath); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dbPath).
			Build()
	}
	return nil
}
