package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

// seedSearchCatalog stores two species with one subject and one dated
// session each, plus recordings spread over both.
func seedSearchCatalog(t *testing.T, c *Controller) (mouse, rat datastore.Species) {
	t.Helper()

	mouse = datastore.Species{Name: "Mus musculus"}
	require.NoError(t, c.DS.SaveSpecies(&mouse))
	rat = datastore.Species{Name: "Rattus norvegicus"}
	require.NoError(t, c.DS.SaveSpecies(&rat))

	b6 := datastore.Strain{Name: "C57BL/6J", SpeciesID: &mouse.ID}
	require.NoError(t, c.DS.SaveStrain(&b6))

	femaleMouse := datastore.Subject{Name: "B6-F-01", Sex: "female", StrainID: &b6.ID}
	require.NoError(t, c.DS.SaveSubject(&femaleMouse))
	maleRat := datastore.Subject{Name: "WKY-M-01", Sex: "male"}
	require.NoError(t, c.DS.SaveSubject(&maleRat))

	early := datastore.RecordingSession{
		Name: "winter pairing",
		Date: time.Date(2019, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.DS.SaveRecordingSession(&early))
	late := datastore.RecordingSession{
		Name: "summer pairing",
		Date: time.Date(2019, 7, 20, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.DS.SaveRecordingSession(&late))

	seed := []datastore.Recording{
		{
			Name: "b6 courtship 1", Status: datastore.StatusPublished,
			SamplingRate: 250000, SpeciesID: &mouse.ID,
			SubjectID: &femaleMouse.ID, RecordingSessionID: &early.ID,
		},
		{
			Name: "b6 courtship 2", Status: datastore.StatusPublished,
			SamplingRate: 300000, SpeciesID: &mouse.ID,
			SubjectID: &femaleMouse.ID, RecordingSessionID: &late.ID,
		},
		{
			Name: "rat isolation call", Status: datastore.StatusPublished,
			SamplingRate: 192000, SpeciesID: &rat.ID,
			SubjectID: &maleRat.ID, RecordingSessionID: &late.ID,
		},
	}
	for i := range seed {
		require.NoError(t, c.DS.SaveRecording(&seed[i]))
	}
	return mouse, rat
}

func search(t *testing.T, c *Controller, req SearchRequest) SearchResponse {
	t.Helper()
	rec := doJSON(c, http.MethodPost, "/api/v2/search", req, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[SearchResponse](t, rec)
}

func TestSearchWithoutFilters(t *testing.T) {
	c := newTestAPI(t, nil)
	seedSearchCatalog(t, c)

	resp := search(t, c, SearchRequest{})
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 1, resp.Pages)
	assert.Equal(t, 1, resp.CurrentPage)
}

func TestSearchFreeText(t *testing.T) {
	c := newTestAPI(t, nil)
	seedSearchCatalog(t, c)

	// matches the recording names
	resp := search(t, c, SearchRequest{Query: "courtship"})
	assert.EqualValues(t, 2, resp.Total)

	// matches rows through the species name, case folded
	resp = search(t, c, SearchRequest{Query: "RATTUS"})
	require.EqualValues(t, 1, resp.Total)
	assert.Equal(t, "rat isolation call", resp.Results[0].Name)
}

func TestSearchEntityFilters(t *testing.T) {
	c := newTestAPI(t, nil)
	mouse, _ := seedSearchCatalog(t, c)

	resp := search(t, c, SearchRequest{SpeciesID: &mouse.ID})
	assert.EqualValues(t, 2, resp.Total)

	resp = search(t, c, SearchRequest{Sex: "male"})
	require.EqualValues(t, 1, resp.Total)
	assert.Equal(t, "rat isolation call", resp.Results[0].Name)

	resp = search(t, c, SearchRequest{SamplingRateMin: 200000, SamplingRateMax: 260000})
	require.EqualValues(t, 1, resp.Total)
	assert.Equal(t, "b6 courtship 1", resp.Results[0].Name)
}

func TestSearchSessionDateRange(t *testing.T) {
	c := newTestAPI(t, nil)
	seedSearchCatalog(t, c)

	// only the January session falls in the window, end date inclusive
	resp := search(t, c, SearchRequest{DateStart: "2019-01-01", DateEnd: "2019-01-15"})
	require.EqualValues(t, 1, resp.Total)
	assert.Equal(t, "b6 courtship 1", resp.Results[0].Name)

	resp = search(t, c, SearchRequest{DateStart: "2019-07-01"})
	assert.EqualValues(t, 2, resp.Total)
}

func TestSearchRejectsMalformedDate(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodPost, "/api/v2/search", SearchRequest{DateStart: "15/01/2019"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestSearchPagination(t *testing.T) {
	c := newTestAPI(t, nil)
	seedSearchCatalog(t, c)

	resp := search(t, c, SearchRequest{PerPage: 2, Page: 2, SortBy: "name", SortAscending: true})
	assert.EqualValues(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, 2, resp.CurrentPage)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "rat isolation call", resp.Results[0].Name)
}
