package targets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/backup"
)

func writeTestArchive(t *testing.T, id string) (string, *backup.Metadata) {
	t.Helper()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, id+".tar.gz")
	payload := []byte("archive-bytes")
	require.NoError(t, os.WriteFile(archivePath, payload, 0o600))

	return archivePath, &backup.Metadata{
		Version:   1,
		ID:        id,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Size:      int64(len(payload)),
		Source:    "sqlite",
	}
}

func TestNewLocalTargetValidation(t *testing.T) {
	_, err := NewLocalTarget(LocalConfig{})
	require.Error(t, err)

	_, err = NewLocalTarget(LocalConfig{Path: "backups/../../etc"})
	require.Error(t, err)

	target, err := NewLocalTarget(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", target.Name())
}

func TestLocalStoreListDelete(t *testing.T) {
	root := t.TempDir()
	target, err := NewLocalTarget(LocalConfig{Path: root})
	require.NoError(t, err)

	ctx := context.Background()
	archivePath, meta := writeTestArchive(t, "mousetube-backup-20260310-031500-sqlite")

	require.NoError(t, target.Store(ctx, archivePath, meta))

	// Archive and sidecar land in a directory named after the ID.
	storedArchive := filepath.Join(root, meta.ID, filepath.Base(archivePath))
	info, err := os.Stat(storedArchive)
	require.NoError(t, err)
	assert.Equal(t, meta.Size, info.Size())

	sidecarData, err := os.ReadFile(filepath.Join(root, meta.ID, "metadata.json"))
	require.NoError(t, err)
	var sidecar backup.Metadata
	require.NoError(t, json.Unmarshal(sidecarData, &sidecar))
	assert.Equal(t, meta.ID, sidecar.ID)

	backups, err := target.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, meta.ID, backups[0].ID)
	assert.Equal(t, "local", backups[0].Target)

	require.NoError(t, target.Delete(ctx, meta.ID))
	backups, err = target.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestLocalStoreRejectsSizeMismatch(t *testing.T) {
	target, err := NewLocalTarget(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	archivePath, meta := writeTestArchive(t, "mousetube-backup-20260310-031500-sqlite")
	meta.Size = meta.Size + 10

	err = target.Store(context.Background(), archivePath, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestLocalDeleteRejectsTraversal(t *testing.T) {
	target, err := NewLocalTarget(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, target.Delete(ctx, ""))
	require.Error(t, target.Delete(ctx, "../outside"))
	require.Error(t, target.Delete(ctx, "a/b"))
}

func TestLocalDeleteMissingBackup(t *testing.T) {
	target, err := NewLocalTarget(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	require.Error(t, target.Delete(context.Background(), "no-such-backup"))
}

func TestLocalListSkipsForeignDirectories(t *testing.T) {
	root := t.TempDir()
	target, err := NewLocalTarget(LocalConfig{Path: root})
	require.NoError(t, err)

	// A directory without a sidecar and a stray file are both ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-backup"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o600))

	backups, err := target.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestLocalValidate(t *testing.T) {
	target, err := NewLocalTarget(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, target.Validate(context.Background()))
}
