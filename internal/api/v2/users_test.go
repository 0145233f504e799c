package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/mail"
	"github.com/mousetube/mousetube-go/internal/security"
)

func TestRegisterUserActivatesWithoutMailer(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodPost, "/api/v2/users/register", map[string]any{
		"username":    "carmen",
		"email":       "carmen@example.org",
		"password":    "correct horse battery staple",
		"first_name":  "Carmen",
		"last_name":   "Fuentes",
		"institution": "Institut Pasteur",
		"country":     "fr",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[datastore.User](t, rec)
	assert.True(t, created.IsActive, "no mailer configured, account activates immediately")
	require.NotNil(t, created.Profile)
	assert.Equal(t, "FR", created.Profile.CountryCode, "country code is upper-cased")

	stored, err := c.DS.GetUserByUsername("carmen")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.True(t, security.CheckPassword(stored.PasswordHash, "correct horse battery staple"))

	// password hashes never surface in responses
	assert.NotContains(t, rec.Body.String(), stored.PasswordHash)
}

func TestRegisterUserValidation(t *testing.T) {
	c := newTestAPI(t, nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"short username", map[string]any{"username": "cf", "email": "cf@example.org", "password": "long enough pw"}},
		{"bad email", map[string]any{"username": "carmen", "email": "not-an-address", "password": "long enough pw"}},
		{"short password", map[string]any{"username": "carmen", "email": "carmen@example.org", "password": "short"}},
		{"unknown country", map[string]any{"username": "carmen", "email": "carmen@example.org", "password": "long enough pw", "country": "XX"}},
	}
	for _, tc := range cases {
		rec := doJSON(c, http.MethodPost, "/api/v2/users/register", tc.body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s: %s", tc.name, rec.Body.String())
	}
}

func TestRegisterUserRejectsDuplicateUsername(t *testing.T) {
	c := newTestAPI(t, nil)
	seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPost, "/api/v2/users/register", map[string]any{
		"username": "carmen",
		"email":    "other@example.org",
		"password": "long enough pw",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestActivateUserRedeemsToken(t *testing.T) {
	c := newTestAPI(t, nil)

	user := datastore.User{Username: "carmen", Email: "carmen@example.org", IsActive: false}
	require.NoError(t, c.DS.SaveUser(&user))

	raw, hash, err := mail.NewToken()
	require.NoError(t, err)
	require.NoError(t, c.DS.CreateUserToken(&datastore.UserToken{
		UserID:    user.ID,
		Purpose:   datastore.TokenPurposeActivation,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	rec := doJSON(c, http.MethodPost, "/api/v2/users/activate", map[string]any{"token": raw}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := c.DS.GetUser(user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	// a token only works once
	rec = doJSON(c, http.MethodPost, "/api/v2/users/activate", map[string]any{"token": raw}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestActivateUserRejectsUnknownToken(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodPost, "/api/v2/users/activate", map[string]any{"token": "not-a-token"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v2/users/activate", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	c := newTestAPI(t, nil)
	user, _ := seedAccount(t, c, "carmen", false)

	// the response is the same whether or not the address exists
	rec := doJSON(c, http.MethodPost, "/api/v2/users/password-reset",
		map[string]any{"email": "nobody@example.org"}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = doJSON(c, http.MethodPost, "/api/v2/users/password-reset",
		map[string]any{"email": user.Email}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	raw, hash, err := mail.NewToken()
	require.NoError(t, err)
	require.NoError(t, c.DS.CreateUserToken(&datastore.UserToken{
		UserID:    user.ID,
		Purpose:   datastore.TokenPurposePasswordReset,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	rec = doJSON(c, http.MethodPost, "/api/v2/users/password-reset/confirm", map[string]any{
		"token":    raw,
		"password": "brand new password",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := c.DS.GetUser(user.ID)
	require.NoError(t, err)
	assert.True(t, security.CheckPassword(stored.PasswordHash, "brand new password"))
	assert.False(t, security.CheckPassword(stored.PasswordHash, "correct horse battery staple"))
}

func TestConfirmPasswordResetRejectsShortPassword(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodPost, "/api/v2/users/password-reset/confirm", map[string]any{
		"token":    "whatever",
		"password": "short",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentUserProfile(t *testing.T) {
	c := newTestAPI(t, nil)
	user, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodGet, "/api/v2/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decodeBody[datastore.User](t, rec)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "carmen", me.Username)

	rec = doJSON(c, http.MethodGet, "/api/v2/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateCurrentUser(t *testing.T) {
	c := newTestAPI(t, nil)
	_, token := seedAccount(t, c, "carmen", false)

	rec := doJSON(c, http.MethodPatch, "/api/v2/users/me", map[string]any{
		"first_name":  "Carmen",
		"institution": "Institut Pasteur",
		"country":     "fr",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[datastore.User](t, rec)
	assert.Equal(t, "Carmen", updated.FirstName)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, "Institut Pasteur", updated.Profile.Institution)
	assert.Equal(t, "FR", updated.Profile.CountryCode)

	// fields left out of the patch stay as they are
	rec = doJSON(c, http.MethodPatch, "/api/v2/users/me", map[string]any{
		"unit": "Neuroscience",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	updated = decodeBody[datastore.User](t, rec)
	assert.Equal(t, "Carmen", updated.FirstName)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, "Institut Pasteur", updated.Profile.Institution)
	assert.Equal(t, "Neuroscience", updated.Profile.Unit)

	rec = doJSON(c, http.MethodPatch, "/api/v2/users/me", map[string]any{
		"country": "XX",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersIsAdminOnly(t *testing.T) {
	c := newTestAPI(t, nil)
	_, memberToken := seedAccount(t, c, "carmen", false)
	_, adminToken := seedAccount(t, c, "root", true)

	rec := doJSON(c, http.MethodGet, "/api/v2/users", nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(c, http.MethodGet, "/api/v2/users", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody[[]datastore.User](t, rec)
	assert.Len(t, users, 2)
}

func TestListCountries(t *testing.T) {
	c := newTestAPI(t, nil)

	rec := doJSON(c, http.MethodGet, "/api/v2/countries", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}](t, rec)
	require.NotEmpty(t, list)

	codes := make(map[string]string, len(list))
	for _, country := range list {
		codes[country.Code] = country.Name
	}
	assert.Equal(t, "France", codes["FR"])
	assert.Contains(t, codes, "DE")
}
