package zenodo

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

type depositorFixture struct {
	depositor *Depositor
	ds        datastore.Interface
	store     *mediastore.Store
	session   datastore.RecordingSession
	user      datastore.User
}

func newDepositorFixture(t *testing.T) *depositorFixture {
	t.Helper()

	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(base, "catalog.db")
	settings.Media.BasePath = filepath.Join(base, "media")
	settings.Media.TempPath = filepath.Join(base, "media", "temp")
	settings.Zenodo = conf.ZenodoSettings{
		Enabled:     true,
		APIURL:      testAPIURL,
		AccessToken: "test-token",
	}

	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	store, err := mediastore.New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client, err := NewClient(&settings.Zenodo)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	f := &depositorFixture{
		depositor: NewDepositor(client, ds, store, &settings.Zenodo),
		ds:        ds,
		store:     store,
	}
	f.seedCatalog(t)
	return f
}

// seedCatalog creates a contributor, a subject with strain and species,
// and a protocolled recording session.
func (f *depositorFixture) seedCatalog(t *testing.T) {
	t.Helper()

	f.user = datastore.User{
		Username:  "jdoe",
		Email:     "jdoe@example.org",
		FirstName: "Jane",
		LastName:  "Doe",
		IsActive:  true,
		Profile:   &datastore.UserProfile{Institution: "Institut X", ORCID: "0000-0001-2345-6789"},
	}
	require.NoError(t, f.ds.SaveUser(&f.user))
	f.user.Profile.UserID = f.user.ID
	require.NoError(t, f.ds.SaveUserProfile(f.user.Profile))

	species := datastore.Species{Name: "Mus musculus"}
	require.NoError(t, f.ds.SaveSpecies(&species))
	strain := datastore.Strain{Name: "C57BL/6J", SpeciesID: &species.ID}
	require.NoError(t, f.ds.SaveStrain(&strain))
	subject := datastore.Subject{Name: "M42", StrainID: &strain.ID, Sex: "male", Genotype: "WT", Treatment: "none"}
	require.NoError(t, f.ds.SaveSubject(&subject))

	protocol := datastore.Protocol{Name: "Female urine sniffing", Description: "5 min exposure"}
	require.NoError(t, f.ds.SaveProtocol(&protocol))

	f.session = datastore.RecordingSession{
		Name:       "Session A",
		Date:       time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		Duration:   300,
		ProtocolID: &protocol.ID,
	}
	require.NoError(t, f.ds.SaveRecordingSession(&f.session))
	require.NoError(t, f.ds.LinkSubjectToSession(subject.ID, f.session.ID))
}

// addRecording saves a session recording, optionally writing its media file.
func (f *depositorFixture) addRecording(t *testing.T, rec datastore.Recording, content string) datastore.Recording {
	t.Helper()

	rec.RecordingSessionID = &f.session.ID
	if rec.CreatedByID == nil {
		rec.CreatedByID = &f.user.ID
	}
	require.NoError(t, f.ds.SaveRecording(&rec))

	if content != "" && rec.ClipPath != "" {
		ref := mediastore.Ref{Area: mediastore.AreaMedia, Rel: rec.ClipPath}
		file, err := f.store.OpenFile(ref, os.O_WRONLY|os.O_CREATE, 0o640)
		require.NoError(t, err)
		_, err = file.WriteString(content)
		require.NoError(t, err)
		require.NoError(t, file.Close())
	}
	return rec
}

// registerDepositionResponders mocks the full deposition API for one
// deposition id and returns captures of uploads and metadata.
func registerDepositionResponders(t *testing.T, depositionID string, uploads *[]string, meta *Metadata) {
	t.Helper()

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions",
		httpmock.NewStringResponder(http.StatusCreated, `{"id": `+depositionID+`}`))

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions/"+depositionID+"/files",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			file, header, err := req.FormFile("file")
			require.NoError(t, err)
			_ = file.Close()
			*uploads = append(*uploads, header.Filename)
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{
				"id": "f-" + header.Filename, "filename": header.Filename, "filesize": header.Size,
			})
		})

	httpmock.RegisterResponder(http.MethodPut, testAPIURL+"/deposit/depositions/"+depositionID,
		func(req *http.Request) (*http.Response, error) {
			var payload map[string]Metadata
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			*meta = payload["metadata"]
			return httpmock.NewStringResponse(http.StatusOK, `{"id": `+depositionID+`}`), nil
		})

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions/"+depositionID+"/actions/publish",
		httpmock.NewStringResponder(http.StatusAccepted,
			`{"id": `+depositionID+`, "doi": "10.5281/zenodo.`+depositionID+`", "submitted": true}`))
}

func TestDepositSession(t *testing.T) {
	f := newDepositorFixture(t)

	ready := f.addRecording(t, datastore.Recording{
		Name: "call one.wav", ClipPath: "uploads/r1_call_one.wav",
		Format: "wav", SamplingRate: 250000, Duration: 60, BitDepth: 16,
		Status: datastore.StatusMetadataExtracted,
	}, "RIFFdata")
	pending := f.addRecording(t, datastore.Recording{
		Name: "call two.wav", ClipPath: "uploads/r2_call_two.wav",
		Status: datastore.StatusPending,
	}, "RIFFdata")
	missing := f.addRecording(t, datastore.Recording{
		Name: "call three.wav", ClipPath: "uploads/r3_call_three.wav",
		Status: datastore.StatusMetadataExtracted,
	}, "")

	// Staged through the temp area, e.g. fetched from a legacy link.
	stagedRef, err := f.store.SaveTemp("staged call.wav", strings.NewReader("RIFFstaged"))
	require.NoError(t, err)
	staged := f.addRecording(t, datastore.Recording{
		Name: "staged call.wav", Link: mediastore.Link(stagedRef),
		Format: "wav", SamplingRate: 300000, Duration: 30, BitDepth: 16,
		Status: datastore.StatusMetadataExtracted,
	}, "")

	var uploads []string
	var meta Metadata
	registerDepositionResponders(t, "555", &uploads, &meta)

	doi, err := f.depositor.DepositSession(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.5281/zenodo.555", doi)

	assert.ElementsMatch(t, []string{"call_one.wav", "staged_call.wav"}, uploads)

	// Published member gets DOI, per-file download link and landing page.
	got, err := f.ds.GetRecording(ready.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusPublished, got.Status)
	assert.Equal(t, doi, got.DOI)
	assert.Equal(t, "555", got.ExternalID)
	assert.Equal(t, "https://sandbox.zenodo.org/records/555/files/call_one.wav?download=1", got.Link)
	assert.Equal(t, "https://sandbox.zenodo.org/records/555", got.ExternalURL)
	require.NotNil(t, got.RepositoryID)
	repo, err := f.ds.GetRepository(*got.RepositoryID)
	require.NoError(t, err)
	assert.Equal(t, "Zenodo", repo.Name)

	// Pending recordings stay untouched.
	gotPending, err := f.ds.GetRecording(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusPending, gotPending.Status)
	assert.Empty(t, gotPending.DOI)

	// A missing file errors its recording without failing the session.
	gotMissing, err := f.ds.GetRecording(missing.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusError, gotMissing.Status)
	assert.Contains(t, gotMissing.StatusDetail, "missing")

	// The temp staging copy is gone once the archive holds the file.
	exists, err := f.store.Exists(stagedRef)
	require.NoError(t, err)
	assert.False(t, exists, "staged file should be removed after deposition")
	gotStaged, err := f.ds.GetRecording(staged.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusPublished, gotStaged.Status)

	// Metadata assembled from session, protocol, subjects and files.
	assert.Equal(t, "Session A", meta.Title)
	assert.Equal(t, "dataset", meta.UploadType)
	assert.Equal(t, []Community{{Identifier: "mousetube"}}, meta.Communities)
	require.Len(t, meta.Creators, 1)
	assert.Equal(t, "Doe, Jane", meta.Creators[0].Name)
	assert.Equal(t, "Institut X", meta.Creators[0].Affiliation)
	assert.Equal(t, "0000-0001-2345-6789", meta.Creators[0].ORCID)
	assert.Contains(t, meta.Description, "Recording session: Session A")
	assert.Contains(t, meta.Description, "Date: 2025-06-12")
	assert.Contains(t, meta.Description, "Protocol: Female urine sniffing")
	assert.Contains(t, meta.Description, "Animal: M42, Strain: C57BL/6J, Species: Mus musculus, Sex: male")
	assert.Contains(t, meta.Description, "Sampling rate: 250000 Hz")
}

func TestDepositSessionReusesExistingDeposition(t *testing.T) {
	f := newDepositorFixture(t)

	repo, err := f.ds.GetOrCreateRepository("Zenodo")
	require.NoError(t, err)

	f.addRecording(t, datastore.Recording{
		Name: "call one.wav", ClipPath: "uploads/r1_call_one.wav",
		Format: "wav", Status: datastore.StatusPublished,
		ExternalID: "777", RepositoryID: &repo.ID,
	}, "RIFFdata")
	fresh := f.addRecording(t, datastore.Recording{
		Name: "call two.wav", ClipPath: "uploads/r2_call_two.wav",
		Format: "wav", Status: datastore.StatusMetadataExtracted,
	}, "RIFFmore")

	var uploads []string
	var meta Metadata
	registerDepositionResponders(t, "777", &uploads, &meta)

	doi, err := f.depositor.DepositSession(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.5281/zenodo.777", doi)

	// Only the new file is uploaded, and no deposition is created.
	assert.Equal(t, []string{"call_two.wav"}, uploads)
	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["POST "+testAPIURL+"/deposit/depositions"], "must reuse the existing deposition")

	got, err := f.ds.GetRecording(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "777", got.ExternalID)
	assert.Equal(t, datastore.StatusPublished, got.Status)
}

func TestDepositSessionNoPublishableRecordings(t *testing.T) {
	f := newDepositorFixture(t)

	f.addRecording(t, datastore.Recording{
		Name: "call one.wav", ClipPath: "uploads/r1_call_one.wav",
		Status: datastore.StatusPending,
	}, "RIFFdata")

	_, err := f.depositor.DepositSession(context.Background(), f.session.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "unexpected error: %v", err)
}

func TestDepositSessionAllFilesMissing(t *testing.T) {
	f := newDepositorFixture(t)

	f.addRecording(t, datastore.Recording{
		Name: "call one.wav", ClipPath: "uploads/r1_call_one.wav",
		Status: datastore.StatusMetadataExtracted,
	}, "")

	var uploads []string
	var meta Metadata
	registerDepositionResponders(t, "888", &uploads, &meta)

	_, err := f.depositor.DepositSession(context.Background(), f.session.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDeposition), "unexpected error: %v", err)
	assert.Empty(t, uploads)
}
