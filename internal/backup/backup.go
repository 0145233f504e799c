// Package backup snapshots the catalog database into compressed
// archives and ships them to configured storage targets.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

const (
	// metadataVersion is the current sidecar format version.
	metadataVersion = 1

	// backupTimeout bounds one full backup run across all targets.
	backupTimeout = 30 * time.Minute

	archivePrefix = "mousetube-backup-"
	archiveSuffix = ".tar.gz"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("backup")
	if logger == nil {
		logger = slog.Default().With("service", "backup")
	}
}

// Source produces a snapshot of one data store. Snapshot returns the
// path of a local file holding the dump; cleanup releases it and is
// never nil on success.
type Source interface {
	Name() string
	Snapshot(ctx context.Context) (path string, cleanup func(), err error)
	Validate() error
}

// Target stores finished archives. Implementations keep a JSON
// metadata sidecar next to each archive so List can report backups
// without opening them.
type Target interface {
	Name() string
	Store(ctx context.Context, archivePath string, meta *Metadata) error
	List(ctx context.Context) ([]StoredBackup, error)
	Delete(ctx context.Context, id string) error
	Validate(ctx context.Context) error
}

// Metadata describes one backup archive. It is written twice: inside
// the archive as metadata.json and next to it as the target sidecar.
type Metadata struct {
	Version      int       `json:"version"`
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Size         int64     `json:"size"`
	Source       string    `json:"source"`
	IsDaily      bool      `json:"is_daily"`
	AppVersion   string    `json:"app_version,omitempty"`
	ConfigHash   string    `json:"config_hash,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	OriginalSize int64     `json:"original_size,omitempty"`
}

// StoredBackup is a backup as reported by a target.
type StoredBackup struct {
	Metadata
	Target string
}

// Manager coordinates sources and targets for backup runs.
type Manager struct {
	settings *conf.Settings
	config   *conf.BackupConfig
	version  string
	sources  []Source
	targets  []Target
	mu       sync.RWMutex
}

// NewManager creates a backup manager. appVersion is stamped into the
// metadata of every archive.
func NewManager(settings *conf.Settings, appVersion string) *Manager {
	return &Manager{
		settings: settings,
		config:   &settings.Backup,
		version:  appVersion,
	}
}

// RegisterSource validates and adds a snapshot source.
func (m *Manager) RegisterSource(source Source) error {
	if err := source.Validate(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("source", source.Name()).
			Build()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
	return nil
}

// RegisterTarget validates and adds a storage target.
func (m *Manager) RegisterTarget(ctx context.Context, target Target) error {
	if err := target.Validate(ctx); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", target.Name()).
			Build()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, target)
	return nil
}

// RunBackup snapshots every source, archives the dumps and stores the
// archives in every target. The backup command calls this directly;
// scheduled runs go through runDaily so retention pruning kicks in.
func (m *Manager) RunBackup(ctx context.Context) error {
	return m.run(ctx, false)
}

// runDaily is the scheduler entry point.
func (m *Manager) runDaily(ctx context.Context) error {
	return m.run(ctx, true)
}

func (m *Manager) run(ctx context.Context, isDaily bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.sources) == 0 {
		return errors.Newf("no backup sources registered").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(m.targets) == 0 {
		return errors.Newf("no backup targets registered").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	now := time.Now().UTC()
	var errs []error

	for _, source := range m.sources {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("backup").
				Category(errors.CategoryCancellation).
				Build()
		}
		if err := m.backupSource(ctx, source, now, isDaily); err != nil {
			logger.Error("backup failed for source",
				"source", source.Name(), "error", err)
			errs = append(errs, err)
		}
	}

	if isDaily {
		if err := m.prune(ctx); err != nil {
			logger.Warn("backup retention pruning failed", "error", err)
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	logger.Info("backup run completed",
		"sources", len(m.sources), "targets", len(m.targets), "daily", isDaily)
	return nil
}

// backupSource dumps one source, wraps the dump in a tar.gz archive
// and hands the archive to every target.
func (m *Manager) backupSource(ctx context.Context, source Source, now time.Time, isDaily bool) error {
	dumpPath, cleanup, err := source.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	dumpInfo, err := os.Stat(dumpPath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dumpPath).
			Build()
	}

	meta := &Metadata{
		Version:      metadataVersion,
		ID:           archivePrefix + now.Format("20060102-150405") + "-" + source.Name(),
		Timestamp:    now,
		Source:       source.Name(),
		IsDaily:      isDaily,
		AppVersion:   m.version,
		OriginalSize: dumpInfo.Size(),
	}

	tempDir, err := os.MkdirTemp("", "mousetube-backup-*")
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			logger.Warn("failed to remove backup staging dir", "path", tempDir, "error", rmErr)
		}
	}()

	archivePath := filepath.Join(tempDir, meta.ID+archiveSuffix)
	if err := m.buildArchive(archivePath, dumpPath, meta); err != nil {
		return err
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", archivePath).
			Build()
	}
	meta.Size = archiveInfo.Size()

	checksum, err := fileChecksum(archivePath)
	if err != nil {
		return err
	}
	meta.Checksum = checksum

	var errs []error
	for _, target := range m.targets {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("backup").
				Category(errors.CategoryCancellation).
				Build()
		}
		if err := target.Store(ctx, archivePath, meta); err != nil {
			logger.Error("failed to store backup",
				"target", target.Name(), "id", meta.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("backup stored",
			"target", target.Name(), "id", meta.ID, "bytes", meta.Size)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// buildArchive writes a tar.gz holding the sanitized configuration,
// metadata.json and the database dump.
func (m *Manager) buildArchive(archivePath, dumpPath string, meta *Metadata) error {
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", archivePath).
			Build()
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			logger.Warn("failed to close archive file", "path", archivePath, "error", closeErr)
		}
	}()

	gzWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzWriter)

	if err := m.addConfigEntry(tarWriter, meta); err != nil {
		return err
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := writeTarEntry(tarWriter, "metadata.json", metaBytes, meta.Timestamp); err != nil {
		return err
	}

	dump, err := os.Open(dumpPath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dumpPath).
			Build()
	}
	defer func() {
		if closeErr := dump.Close(); closeErr != nil {
			logger.Warn("failed to close dump file", "path", dumpPath, "error", closeErr)
		}
	}()

	dumpHeader := &tar.Header{
		Name:    filepath.Base(dumpPath),
		Size:    meta.OriginalSize,
		Mode:    0o644,
		ModTime: meta.Timestamp,
	}
	if err := tarWriter.WriteHeader(dumpHeader); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	if _, err := io.Copy(tarWriter, dump); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}

	// Close order matters, tar before gzip.
	if err := tarWriter.Close(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := gzWriter.Close(); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

// addConfigEntry includes the running configuration in the archive
// with credentials blanked, and records its hash in the metadata.
func (m *Manager) addConfigEntry(tw *tar.Writer, meta *Metadata) error {
	if m.settings == nil {
		return nil
	}

	configData, err := yaml.Marshal(sanitizeSettings(m.settings))
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := writeTarEntry(tw, "config.yaml", configData, meta.Timestamp); err != nil {
		return err
	}

	hash := sha256.Sum256(configData)
	meta.ConfigHash = hex.EncodeToString(hash[:])
	return nil
}

// sanitizeSettings returns a copy of the settings with secrets
// removed. Backups travel to third-party storage, credentials stay
// home.
func sanitizeSettings(settings *conf.Settings) *conf.Settings {
	sanitized := *settings
	sanitized.Security.SessionSecret = ""
	sanitized.Security.BasicAuth.Password = ""
	sanitized.Security.OrcidAuth.ClientSecret = ""
	sanitized.Output.MySQL.Password = ""
	sanitized.Zenodo.AccessToken = ""
	sanitized.Mail.SMTPURL = ""
	sanitized.MQTT.Password = ""
	sanitized.Sentry.DSN = ""
	return &sanitized
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(data)),
		Mode:    0o644,
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("entry", name).
			Build()
	}
	if _, err := tw.Write(data); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("entry", name).
			Build()
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close file after checksum", "path", path, "error", closeErr)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ListBackups returns the stored backups across all targets, newest
// first.
func (m *Manager) ListBackups(ctx context.Context) ([]StoredBackup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []StoredBackup
	for _, target := range m.targets {
		backups, err := target.List(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, backups...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all, nil
}

// prune applies the retention policy per target: the newest MinBackups
// are always kept, anything past MaxBackups goes, and between the two
// bounds age decides.
func (m *Manager) prune(ctx context.Context) error {
	retention := m.config.Retention
	if retention.MaxAge == "" && retention.MaxBackups == 0 {
		return nil
	}

	var maxAge time.Duration
	if retention.MaxAge != "" {
		hours, err := conf.ParseRetentionPeriod(retention.MaxAge)
		if err != nil {
			return errors.New(err).
				Component("backup").
				Category(errors.CategoryConfiguration).
				Context("maxage", retention.MaxAge).
				Build()
		}
		maxAge = time.Duration(hours) * time.Hour
	}

	var errs []error
	for _, target := range m.targets {
		backups, err := target.List(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		sort.Slice(backups, func(i, j int) bool {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		})

		for i := range backups {
			if keepBackup(i, &backups[i], maxAge, retention.MinBackups, retention.MaxBackups) {
				continue
			}
			if err := target.Delete(ctx, backups[i].ID); err != nil {
				errs = append(errs, err)
				continue
			}
			logger.Info("pruned old backup",
				"target", target.Name(), "id", backups[i].ID,
				"age", time.Since(backups[i].Timestamp).Round(time.Hour).String())
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// keepBackup decides retention for the backup at the given recency
// rank (0 is newest).
func keepBackup(rank int, b *StoredBackup, maxAge time.Duration, minBackups, maxBackups int) bool {
	if rank < minBackups {
		return true
	}
	if maxBackups > 0 && rank >= maxBackups {
		return false
	}
	if maxAge > 0 && time.Since(b.Timestamp) > maxAge {
		return false
	}
	return true
}

func joinErrors(errs []error) error {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return errors.Newf("backup errors: %s", strings.Join(msgs, "; ")).
		Component("backup").
		Category(errors.CategoryBackup).
		Build()
}
