package importer

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

// seedSessions stores two recording sessions with three recordings
// between them and returns the sessions.
func seedSessions(t *testing.T, ds datastore.Interface) (datastore.RecordingSession, datastore.RecordingSession) {
	t.Helper()

	morning := datastore.RecordingSession{Name: "morning-pairing"}
	require.NoError(t, ds.SaveRecordingSession(&morning))
	evening := datastore.RecordingSession{Name: "evening-pairing"}
	require.NoError(t, ds.SaveRecordingSession(&evening))

	for _, recording := range []datastore.Recording{
		{Name: "pair-001.wav", RecordingSessionID: &morning.ID},
		{Name: "pair-002.wav", RecordingSessionID: &morning.ID},
		{Name: "pair-003.wav", RecordingSessionID: &evening.ID},
	} {
		require.NoError(t, ds.SaveRecording(&recording))
	}
	return morning, evening
}

func TestCreateDatasetFromFile(t *testing.T) {
	imp, ds := newTestImporter(t)
	_, evening := seedSessions(t, ds)

	// The evening session by ID, the morning one by name, with a blank
	// line and a duplicate that must collapse.
	list := writeFixture(t, "sessions.txt",
		"  "+strconv.Itoa(int(evening.ID))+"\n\nmorning-pairing\nmorning-pairing\n")

	dataset, err := imp.CreateDatasetFromFile(context.Background(), "pairing-calls", list, "")
	require.NoError(t, err)
	require.NotZero(t, dataset.ID)

	stored, err := ds.GetDataset(dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, "pairing-calls", stored.Name)
	assert.Len(t, stored.Recordings, 3)
	assert.Nil(t, stored.CreatedByID)
}

func TestCreateDatasetFromFileWithCreator(t *testing.T) {
	imp, ds := newTestImporter(t)
	seedSessions(t, ds)
	curator := datastore.User{Username: "curator", Email: "curator@example.org"}
	require.NoError(t, ds.SaveUser(&curator))

	list := writeFixture(t, "sessions.txt", "morning-pairing\n")
	dataset, err := imp.CreateDatasetFromFile(context.Background(), "curated", list, "curator")
	require.NoError(t, err)
	require.NotNil(t, dataset.CreatedByID)
	assert.Equal(t, curator.ID, *dataset.CreatedByID)
}

func TestCreateDatasetFromFileUnknownCreator(t *testing.T) {
	imp, ds := newTestImporter(t)
	seedSessions(t, ds)

	list := writeFixture(t, "sessions.txt", "morning-pairing\n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "curated", list, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `user "ghost" does not exist`)
}

func TestCreateDatasetFromFileUnknownID(t *testing.T) {
	imp, ds := newTestImporter(t)
	seedSessions(t, ds)

	list := writeFixture(t, "sessions.txt", "9999\n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "broken", list, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording session 9999 does not exist")
}

func TestCreateDatasetFromFileUnknownName(t *testing.T) {
	imp, ds := newTestImporter(t)
	seedSessions(t, ds)

	list := writeFixture(t, "sessions.txt", "no-such-session\n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "broken", list, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"no-such-session" does not exist`)
}

func TestCreateDatasetFromFileAmbiguousName(t *testing.T) {
	imp, ds := newTestImporter(t)
	for i := 0; i < 2; i++ {
		session := datastore.RecordingSession{Name: "retest"}
		require.NoError(t, ds.SaveRecordingSession(&session))
	}

	list := writeFixture(t, "sessions.txt", "retest\n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "broken", list, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use IDs instead")
}

func TestCreateDatasetFromFileEmptyList(t *testing.T) {
	imp, _ := newTestImporter(t)

	list := writeFixture(t, "sessions.txt", "\n  \n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "empty", list, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names no sessions")
}

func TestCreateDatasetFromFileRequiresName(t *testing.T) {
	imp, ds := newTestImporter(t)
	seedSessions(t, ds)

	list := writeFixture(t, "sessions.txt", "morning-pairing\n")
	_, err := imp.CreateDatasetFromFile(context.Background(), "", list, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestReadSessionListSplitsIDsAndNames(t *testing.T) {
	path := writeFixture(t, "sessions.txt", "12\nthree-chamber\n12\n007\nthree-chamber\n")

	ids, names, err := readSessionList(path)
	require.NoError(t, err)
	assert.Equal(t, []uint{12, 7}, ids)
	assert.Equal(t, []string{"three-chamber"}, names)
}
