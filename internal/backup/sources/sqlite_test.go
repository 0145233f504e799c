package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mousetube/mousetube-go/internal/conf"
)

func createTestCatalog(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec("CREATE TABLE recordings (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO recordings (name) VALUES ('usv-call-50khz')").Error)
	require.NoError(t, db.Exec("INSERT INTO recordings (name) VALUES ('usv-call-70khz')").Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	return dbPath
}

func sqliteTestSettings(dbPath string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = dbPath
	return settings
}

func TestSQLiteSourceSnapshot(t *testing.T) {
	dbPath := createTestCatalog(t)
	source := NewSQLiteSource(sqliteTestSettings(dbPath))

	require.Equal(t, "sqlite", source.Name())
	require.NoError(t, source.Validate())

	snapshotPath, cleanup, err := source.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	defer cleanup()

	info, err := os.Stat(snapshotPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// The snapshot is a usable database with the catalog rows intact.
	db, err := gorm.Open(sqlite.Open(snapshotPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}()

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM recordings").Scan(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteSourceSnapshotCleanup(t *testing.T) {
	dbPath := createTestCatalog(t)
	source := NewSQLiteSource(sqliteTestSettings(dbPath))

	snapshotPath, cleanup, err := source.Snapshot(context.Background())
	require.NoError(t, err)

	cleanup()
	_, err = os.Stat(snapshotPath)
	require.True(t, os.IsNotExist(err))
}

func TestSQLiteSourceValidate(t *testing.T) {
	settings := &conf.Settings{}
	source := NewSQLiteSource(settings)
	require.Error(t, source.Validate(), "disabled backend")

	settings.Output.SQLite.Enabled = true
	require.Error(t, source.Validate(), "missing path")

	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "missing.db")
	require.Error(t, source.Validate(), "missing file")

	settings.Output.SQLite.Path = createTestCatalog(t)
	require.NoError(t, source.Validate())
}
