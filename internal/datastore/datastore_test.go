// datastore_test.go: shared test fixtures and backend selection tests
package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mousetube/mousetube-go/internal/conf"
)

// setupTestDB creates an in-memory SQLite database with the full
// catalog schema migrated.
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, performAutoMigration(db, false, "SQLite", ":memory:"))

	return &DataStore{DB: db}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	t.Run("sqlite enabled", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Output.SQLite.Enabled = true
		settings.Output.SQLite.Path = "catalog.db"

		store, err := New(settings)
		require.NoError(t, err)
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("mysql enabled", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Output.MySQL.Enabled = true

		store, err := New(settings)
		require.NoError(t, err)
		assert.IsType(t, &MySQLStore{}, store)
	})

	t.Run("sqlite wins when both enabled", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Output.SQLite.Enabled = true
		settings.Output.MySQL.Enabled = true

		store, err := New(settings)
		require.NoError(t, err)
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("no backend enabled", func(t *testing.T) {
		t.Parallel()
		store, err := New(&conf.Settings{})
		require.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestValidateSQLiteConfig(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	require.Error(t, validateSQLiteConfig(settings), "empty path must be rejected")

	settings.Output.SQLite.Path = "catalog.db"
	require.NoError(t, validateSQLiteConfig(settings))
}

func TestValidateMySQLConfig(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.MySQL.Host = "localhost"
	settings.Output.MySQL.Database = "mousetube"
	settings.Output.MySQL.Username = "mousetube"

	require.NoError(t, validateMySQLConfig(settings))

	missingHost := *settings
	missingHost.Output.MySQL.Host = ""
	require.Error(t, validateMySQLConfig(&missingHost))

	missingDB := *settings
	missingDB.Output.MySQL.Database = ""
	require.Error(t, validateMySQLConfig(&missingDB))

	missingUser := *settings
	missingUser.Output.MySQL.Username = ""
	require.Error(t, validateMySQLConfig(&missingUser))
}

// TestSQLiteStoreOpenClose exercises the full open, migrate, write,
// read, close path against a file-backed database.
func TestSQLiteStoreOpenClose(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "catalog.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())

	species := Species{Name: "Mus musculus"}
	require.NoError(t, store.SaveSpecies(&species))
	require.NotZero(t, species.ID)

	got, err := store.GetSpecies(species.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mus musculus", got.Name)

	require.NoError(t, store.Close())
}
