package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/security"
)

func TestLoginWithPassword(t *testing.T) {
	c := newTestAPI(t, nil)
	user, _ := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": "carmen",
		"password":   "correct horse battery staple",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LoginResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	assert.Positive(t, resp.ExpiresIn)
	assert.Equal(t, "carmen", resp.User["username"])

	// the issued token authenticates follow-up requests
	rec = doJSON(c, http.MethodGet, "/api/v2/users/me", nil, resp.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// email works as the identifier too
	rec = doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": user.Email,
		"password":   "correct horse battery staple",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// older clients send username instead of identifier
	rec = doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"username": "carmen",
		"password": "correct horse battery staple",
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestAPI(t, nil)
	seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": "carmen",
		"password":   "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": "nobody",
		"password":   "whatever else",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	c := newTestAPI(t, nil)
	user, _ := seedAccount(t, c, "carmen", false)
	require.NoError(t, c.DS.SetUserActive(user.ID, false))

	rec := doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": "carmen",
		"password":   "correct horse battery staple",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "not activated")
}

func TestLoginLegacyAccountNeedsReset(t *testing.T) {
	c := newTestAPI(t, nil)

	// imported accounts carry only the old site's hash
	user := datastore.User{
		Username:       "oldtimer",
		Email:          "oldtimer@example.org",
		LegacyPassword: "md5$salt$0123456789abcdef",
		IsActive:       true,
	}
	require.NoError(t, c.DS.SaveUser(&user))

	rec := doJSON(c, http.MethodPost, "/api/v2/auth/login", map[string]any{
		"identifier": "oldtimer",
		"password":   "whatever they used before",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "reset your password")
}

func TestLogoutRevokesToken(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodGet, "/api/v2/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(c, http.MethodGet, "/api/v2/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked token must stop working")
}

func TestAuthStatus(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodGet, "/api/v2/auth/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	anon := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, anon["authenticated"])

	rec = doJSON(c, http.MethodGet, "/api/v2/auth/status", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	authed := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, authed["authenticated"])
	assert.Equal(t, string(security.AuthMethodToken), authed["method"])
	user, ok := authed["user"].(map[string]any)
	require.True(t, ok, "status must include the account summary")
	assert.Equal(t, "carmen", user["username"])
}

func TestORCIDLoginDisabled(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodGet, "/api/v2/auth/orcid", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
