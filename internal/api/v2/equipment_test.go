package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

func TestListSoftwareByType(t *testing.T) {
	c := newTestAPI(t, nil)

	for _, software := range []datastore.Software{
		{Name: "Avisoft-RECORDER", Type: datastore.SoftwareTypeAcquisition},
		{Name: "DeepSqueak", Type: datastore.SoftwareTypeAnalysis},
		{Name: "Avisoft-SASLab Pro", Type: datastore.SoftwareTypeBoth},
	} {
		require.NoError(t, c.DS.SaveSoftware(&software))
	}

	rec := doJSON(c, http.MethodGet, "/api/v2/software", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.Software](t, rec), 3)

	rec = doJSON(c, http.MethodGet, "/api/v2/software?type=acquisition", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	acquisition := decodeBody[[]datastore.Software](t, rec)
	require.Len(t, acquisition, 1)
	assert.Equal(t, "Avisoft-RECORDER", acquisition[0].Name)

	rec = doJSON(c, http.MethodGet, "/api/v2/software?type=acquisition+and+analysis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	both := decodeBody[[]datastore.Software](t, rec)
	require.Len(t, both, 1)
	assert.Equal(t, "Avisoft-SASLab Pro", both[0].Name)

	rec = doJSON(c, http.MethodGet, "/api/v2/software?type=mixing", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSoftwareDefaultsType(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/software",
		map[string]string{"name": "UltraVox"}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[datastore.Software](t, rec)
	assert.Equal(t, datastore.SoftwareTypeAcquisition, created.Type)

	rec = doJSON(c, http.MethodPost, "/api/v2/software",
		map[string]string{"name": "Weird", "type": "mixing"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHardwareTypeFilter(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/hardware", map[string]string{
		"name": "UltraSoundGate 416H",
		"type": datastore.HardwareTypeSoundcard,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/hardware", map[string]string{
		"name": "CM16/CMPA",
		"type": datastore.HardwareTypeMicrophone,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(c, http.MethodGet, "/api/v2/hardware?type=microphone", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	microphones := decodeBody[[]datastore.Hardware](t, rec)
	require.Len(t, microphones, 1)
	assert.Equal(t, "CM16/CMPA", microphones[0].Name)
}

func TestRepositoryMutationsAreAdminOnly(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "efischer", false)
	_, adminToken := seedAccount(t, c, "avaldez", true)

	body := map[string]string{"name": "Zenodo", "url": "https://zenodo.org"}

	rec := doJSON(c, http.MethodPost, "/api/v2/repositories", body, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/repositories", body, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[datastore.Repository](t, rec)
	assert.Equal(t, "Zenodo", created.Name)

	rec = doJSON(c, http.MethodGet, "/api/v2/repositories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]datastore.Repository](t, rec), 1)
}

func TestCreateReferenceValidatesDOI(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/references", map[string]string{
		"name": "Scattoni 2008",
		"doi":  "not-a-doi",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/references", map[string]string{
		"name": "Scattoni 2008",
		"doi":  "10.1371/journal.pone.0003067",
		"url":  "https://doi.org/10.1371/journal.pone.0003067",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[datastore.Reference](t, rec)
	assert.Equal(t, "10.1371/journal.pone.0003067", created.DOI)
}

func TestContactRequiresAName(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "efischer", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/contacts",
		map[string]string{"email": "nobody@example.org"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/contacts", map[string]string{
		"firstname": "Elodie",
		"lastname":  "Ey",
		"email":     "elodie@example.org",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[datastore.Contact](t, rec)
	assert.Equal(t, "Ey", created.LastName)
}
