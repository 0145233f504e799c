package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

func TestSpeciesCRUD(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "efischer", false)
	_, adminToken := seedAccount(t, c, "avaldez", true)

	rec := doJSON(c, http.MethodGet, "/api/v2/species", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]datastore.Species](t, rec))

	// mutations need an account
	rec = doJSON(c, http.MethodPost, "/api/v2/species",
		map[string]string{"name": "Mus musculus"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/species",
		map[string]string{"name": "Mus musculus"}, memberToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[datastore.Species](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Mus musculus", created.Name)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/species/%d", created.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[datastore.Species](t, rec).ID)

	rec = doJSON(c, http.MethodPut, fmt.Sprintf("/api/v2/species/%d", created.ID),
		map[string]string{"name": "Mus musculus domesticus"}, memberToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mus musculus domesticus", decodeBody[datastore.Species](t, rec).Name)

	// deletion is reserved for administrators
	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/species/%d", created.ID), nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(c, http.MethodDelete, fmt.Sprintf("/api/v2/species/%d", created.ID), nil, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/species/%d", created.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSpeciesRejectsDuplicate(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/species",
		map[string]string{"name": "Rattus norvegicus"}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/species",
		map[string]string{"name": "Rattus norvegicus"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSpeciesRequiresName(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/species",
		map[string]string{"name": "   "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSpeciesRejectsBadID(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodGet, "/api/v2/species/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStrainsFiltersBySpecies(t *testing.T) {
	c := newTestAPI(t, nil)

	mouse := datastore.Species{Name: "Mus musculus"}
	require.NoError(t, c.DS.SaveSpecies(&mouse))
	rat := datastore.Species{Name: "Rattus norvegicus"}
	require.NoError(t, c.DS.SaveSpecies(&rat))

	require.NoError(t, c.DS.SaveStrain(&datastore.Strain{Name: "C57BL/6J", SpeciesID: &mouse.ID}))
	require.NoError(t, c.DS.SaveStrain(&datastore.Strain{Name: "BTBR", SpeciesID: &mouse.ID}))
	require.NoError(t, c.DS.SaveStrain(&datastore.Strain{Name: "Wistar", SpeciesID: &rat.ID}))

	rec := doJSON(c, http.MethodGet, "/api/v2/strains", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.Strain](t, rec), 3)

	rec = doJSON(c, http.MethodGet, fmt.Sprintf("/api/v2/strains?species_id=%d", mouse.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	strains := decodeBody[[]datastore.Strain](t, rec)
	require.Len(t, strains, 2)
	for _, strain := range strains {
		require.NotNil(t, strain.SpeciesID)
		assert.Equal(t, mouse.ID, *strain.SpeciesID)
	}

	rec = doJSON(c, http.MethodGet, "/api/v2/strains?species_id=banana", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubjectLifecycle(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/subjects", map[string]any{
		"name":     "B6-male-12",
		"sex":      "male",
		"genotype": "wild type",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	subject := decodeBody[datastore.Subject](t, rec)
	assert.Equal(t, "male", subject.Sex)
	require.NotNil(t, subject.CreatedByID)

	rec = doJSON(c, http.MethodPut, fmt.Sprintf("/api/v2/subjects/%d", subject.ID), map[string]any{
		"name":     "B6-male-12",
		"sex":      "male",
		"genotype": "Shank3 +/-",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Shank3 +/-", decodeBody[datastore.Subject](t, rec).Genotype)
}

func TestMetadataVocabulary(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	parent := datastore.MetadataCategory{Name: "context"}
	require.NoError(t, c.DS.SaveMetadataCategory(&parent))
	child := datastore.MetadataCategory{
		Name:       "social context",
		Categories: []*datastore.MetadataCategory{&parent},
	}
	require.NoError(t, c.DS.SaveMetadataCategory(&child))
	field := datastore.MetadataField{Name: "encounter type", Categories: []datastore.MetadataCategory{child}}
	require.NoError(t, c.DS.SaveMetadataField(&field))

	rec := doJSON(c, http.MethodPost, "/api/v2/metadata", map[string]any{
		"name":   "female encounter",
		"fields": []map[string]any{{"id": field.ID, "name": field.Name}},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	entry := decodeBody[datastore.Metadata](t, rec)
	assert.NotZero(t, entry.ID)

	rec = doJSON(c, http.MethodGet, "/api/v2/metadata/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.MetadataCategory](t, rec), 2)

	rec = doJSON(c, http.MethodGet, "/api/v2/metadata/fields", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.MetadataField](t, rec), 1)

	rec = doJSON(c, http.MethodGet, "/api/v2/metadata?category=context", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.Metadata](t, rec), 1)

	rec = doJSON(c, http.MethodGet, "/api/v2/metadata?category=nonexistent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]datastore.Metadata](t, rec))
}
