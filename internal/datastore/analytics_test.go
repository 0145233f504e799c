// analytics_test.go: tests for page view tracking and catalog counts.
package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackPageView(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)

	for range 3 {
		require.NoError(t, ds.TrackPageView("/search", "2024-06-01"))
	}
	require.NoError(t, ds.TrackPageView("/search", "2024-06-02"))
	require.NoError(t, ds.TrackPageView("/recordings", "2024-06-01"))

	t.Run("per path", func(t *testing.T) {
		total, err := ds.GetPageViews("/search")
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
	})

	t.Run("all paths", func(t *testing.T) {
		total, err := ds.GetPageViews("")
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("one row per path and day", func(t *testing.T) {
		var rows int64
		require.NoError(t, ds.DB.Model(&PageView{}).Count(&rows).Error)
		assert.Equal(t, int64(3), rows)
	})

	t.Run("validation", func(t *testing.T) {
		require.Error(t, ds.TrackPageView("", "2024-06-01"))
		require.Error(t, ds.TrackPageView("/search", "01/06/2024"))
		require.Error(t, ds.TrackPageView("/search", "2024-6-1"))
	})
}

func TestGetCatalogTotals(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	seedSearchData(t, ds)

	user := User{Username: "curator"}
	require.NoError(t, ds.SaveUser(&user))

	totals, err := ds.GetCatalogTotals()
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Recordings)
	assert.Equal(t, int64(1), totals.PublishedRecordings)
	assert.Equal(t, int64(2), totals.RecordingSessions)
	assert.Equal(t, int64(3), totals.Subjects)
	assert.Equal(t, int64(2), totals.Strains)
	assert.Equal(t, int64(2), totals.Species)
	assert.Equal(t, int64(1), totals.Users)
	assert.Zero(t, totals.Protocols)
}

func TestGetRecordingCountsBySpecies(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	f := seedSearchData(t, ds)

	counts, err := ds.GetRecordingCountsBySpecies()
	require.NoError(t, err)
	require.Len(t, counts, 2)

	// mouse has two recordings and sorts first
	assert.Equal(t, f.mouse.ID, counts[0].SpeciesID)
	assert.Equal(t, "Mus musculus", counts[0].SpeciesName)
	assert.Equal(t, int64(2), counts[0].Count)
	assert.Equal(t, int64(1), counts[1].Count)
}

func TestGetRecentRecordings(t *testing.T) {
	t.Parallel()
	ds := setupTestDB(t)
	seedSearchData(t, ds)

	recent, err := ds.GetRecentRecordings(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "rat-50khz-003.wav", recent[0].Name, "latest addition first")
	require.NotNil(t, recent[0].Species, "species comes back resolved")

	// zero limit falls back to the default page size
	all, err := ds.GetRecentRecordings(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
