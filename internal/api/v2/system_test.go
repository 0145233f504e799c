package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemInfoIsAdminOnly(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodGet, "/api/v2/system/info", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(c, http.MethodGet, "/api/v2/system/info", nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(c, http.MethodGet, "/api/v2/system/info", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info := decodeBody[map[string]any](t, rec)
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "runtime")
	assert.Contains(t, info, "media_disk")
}

func TestSystemQueueWithoutProcessor(t *testing.T) {
	c := newTestAPI(t, nil)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodGet, "/api/v2/system/queue", nil, adminToken)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}

func TestMQTTTestWhenDisabled(t *testing.T) {
	c := newTestAPI(t, nil)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodPost, "/api/v2/system/mqtt/test", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["message"], "not enabled")
}
