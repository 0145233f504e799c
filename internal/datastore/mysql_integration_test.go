// mysql_integration_test.go: exercises the MySQL backend against a real
// server. Requires Docker, skipped in short mode.
package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/mousetube/mousetube-go/internal/conf"
)

func TestMySQLStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}

	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("mousetube_test"),
		tcmysql.WithUsername("mousetube"),
		tcmysql.WithPassword("mousetube"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	settings.Output.MySQL.Database = "mousetube_test"
	settings.Output.MySQL.Username = "mousetube"
	settings.Output.MySQL.Password = "mousetube"

	store := &MySQLStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	t.Run("full entity roundtrip", func(t *testing.T) {
		mouse := Species{Name: "Mus musculus"}
		require.NoError(t, store.SaveSpecies(&mouse))

		strain := Strain{Name: "C57BL/6J", SpeciesID: &mouse.ID}
		require.NoError(t, store.SaveStrain(&strain))

		subject := Subject{Name: "B6-male-01", StrainID: &strain.ID, Sex: "male"}
		require.NoError(t, store.SaveSubject(&subject))

		session := RecordingSession{Name: "mysql-roundtrip"}
		require.NoError(t, store.SaveRecordingSession(&session))
		require.NoError(t, store.LinkSubjectToSession(subject.ID, session.ID))

		recording := Recording{
			Name:               "roundtrip.wav",
			RecordingSessionID: &session.ID,
			SubjectID:          &subject.ID,
			SpeciesID:          &mouse.ID,
			MetadataJSON:       JSONMap{"room": "A12"},
		}
		require.NoError(t, store.SaveRecording(&recording))

		got, err := store.GetRecording(recording.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, "A12", got.MetadataJSON["room"])
		require.NotNil(t, got.Subject)
		assert.Equal(t, "B6-male-01", got.Subject.Name)
	})

	t.Run("duplicate key surfaces through the driver", func(t *testing.T) {
		first := Species{Name: "Rattus norvegicus"}
		require.NoError(t, store.SaveSpecies(&first))

		dup := Species{Name: "Rattus norvegicus"}
		err := store.SaveSpecies(&dup)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("search runs on mysql", func(t *testing.T) {
		results, total, err := store.SearchRecordings(&RecordingSearchFilters{Query: "roundtrip"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, results, 1)
		assert.Equal(t, "roundtrip.wav", results[0].Name)
	})

	t.Run("page view upsert on mysql", func(t *testing.T) {
		require.NoError(t, store.TrackPageView("/search", "2024-06-01"))
		require.NoError(t, store.TrackPageView("/search", "2024-06-01"))

		total, err := store.GetPageViews("/search")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})
}
