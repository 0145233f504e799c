package zenodo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
)

const testAPIURL = "https://sandbox.zenodo.org/api"

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(&conf.ZenodoSettings{
		Enabled:     true,
		APIURL:      testAPIURL,
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(&conf.ZenodoSettings{APIURL: testAPIURL})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), "unexpected error: %v", err)
}

func TestNewClientDefaultsAPIURL(t *testing.T) {
	client, err := NewClient(&conf.ZenodoSettings{AccessToken: "test-token"})
	require.NoError(t, err)
	assert.Equal(t, conf.DefaultZenodoAPIURL, client.apiURL)
}

func TestCreateDeposition(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-token", req.URL.Query().Get("access_token"))
			return httpmock.NewStringResponse(http.StatusCreated, `{"id": 12345, "state": "unsubmitted"}`), nil
		})

	dep, err := client.CreateDeposition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), dep.ID)
	assert.Equal(t, "unsubmitted", dep.State)
}

func TestUploadFile(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions/12345/files",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			file, header, err := req.FormFile("file")
			require.NoError(t, err)
			defer func() { _ = file.Close() }()

			data, err := io.ReadAll(file)
			require.NoError(t, err)
			assert.Equal(t, "call_1.wav", header.Filename)
			assert.Equal(t, "RIFFdata", string(data))

			return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{
				"id": "f-1", "filename": "call_1.wav", "filesize": len(data),
			})
		})

	file, err := client.UploadFile(context.Background(), "12345", "call_1.wav", strings.NewReader("RIFFdata"))
	require.NoError(t, err)
	assert.Equal(t, "call_1.wav", file.Filename)
	assert.Equal(t, int64(8), file.Filesize)
}

func TestSetMetadata(t *testing.T) {
	client := newTestClient(t)

	var captured map[string]Metadata
	httpmock.RegisterResponder(http.MethodPut, testAPIURL+"/deposit/depositions/12345",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewStringResponse(http.StatusOK, `{"id": 12345}`), nil
		})

	meta := Metadata{
		Title:       "Session A",
		Description: "Recording session: Session A",
		Creators:    []Creator{{Name: "Doe, Jane", Affiliation: "Institut X", ORCID: "0000-0001-2345-6789"}},
		Communities: []Community{{Identifier: "mousetube"}},
	}
	require.NoError(t, client.SetMetadata(context.Background(), "12345", meta))

	got := captured["metadata"]
	assert.Equal(t, "Session A", got.Title)
	assert.Equal(t, "dataset", got.UploadType, "upload type must default to dataset")
	assert.Equal(t, meta.Creators, got.Creators)
	assert.Equal(t, meta.Communities, got.Communities)
}

func TestPublish(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions/12345/actions/publish",
		httpmock.NewStringResponder(http.StatusAccepted, `{"id": 12345, "doi": "10.5281/zenodo.12345", "submitted": true}`))

	dep, err := client.Publish(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "10.5281/zenodo.12345", dep.DOI)
	assert.True(t, dep.Submitted)
}

func TestPublishWithoutDOI(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions/12345/actions/publish",
		httpmock.NewStringResponder(http.StatusAccepted, `{"id": 12345}`))

	_, err := client.Publish(context.Background(), "12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOI")
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		body         string
		wantCategory errors.ErrorCategory
		wantDetail   string
	}{
		{
			name:         "validation error with field details",
			statusCode:   http.StatusBadRequest,
			body:         `{"message": "Validation error", "status": 400, "errors": [{"field": "metadata.creators", "message": "Missing data"}]}`,
			wantCategory: errors.CategoryDeposition,
			wantDetail:   "metadata.creators: Missing data",
		},
		{
			name:         "bad token",
			statusCode:   http.StatusUnauthorized,
			body:         `{"message": "The server could not verify your credentials", "status": 401}`,
			wantCategory: errors.CategoryConfiguration,
			wantDetail:   "credentials",
		},
		{
			name:         "rate limited",
			statusCode:   http.StatusTooManyRequests,
			body:         `{"message": "Rate limit exceeded", "status": 429}`,
			wantCategory: errors.CategoryLimit,
			wantDetail:   "Rate limit",
		},
		{
			name:         "server error with non-JSON body",
			statusCode:   http.StatusBadGateway,
			body:         `<html>bad gateway</html>`,
			wantCategory: errors.CategoryNetwork,
			wantDetail:   "bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t)
			httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions",
				httpmock.NewStringResponder(tt.statusCode, tt.body))

			_, err := client.CreateDeposition(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.wantCategory), "unexpected error: %v", err)
			assert.Contains(t, err.Error(), tt.wantDetail)
		})
	}
}

func TestErrorOmitsAccessToken(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testAPIURL+"/deposit/depositions",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message": "boom", "status": 500}`))

	_, err := client.CreateDeposition(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-token")
}

func TestPublicURLs(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&conf.ZenodoSettings{APIURL: testAPIURL, AccessToken: "test-token"})
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.zenodo.org", client.RecordsBaseURL())
	assert.Equal(t, "https://sandbox.zenodo.org/records/555", client.RecordURL("555"))
	assert.Equal(t,
		"https://sandbox.zenodo.org/records/555/files/call_1.wav?download=1",
		client.FileDownloadURL("555", "call_1.wav"))
}
