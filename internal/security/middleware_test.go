package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/markbates/goth/gothic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestRequireAuthBearerToken(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)
	token, err := m.NewAccessToken(&user)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/recordings", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, m.RequireAuth(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AuthMethodToken, c.Get(ContextAuthMethodKey))

	got, ok := CurrentUser(c)
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
}

func TestRequireAuthLowercaseScheme(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)
	token, err := m.NewAccessToken(&user)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.NoError(t, m.RequireAuth(okHandler)(c))
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	m, _ := newTestManager(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/recordings", http.NoBody)
	c := e.NewContext(req, httptest.NewRecorder())

	err := m.RequireAuth(okHandler)(c)
	assert.Equal(t, http.StatusUnauthorized, httpErrorCode(t, err))

	_, ok := CurrentUser(c)
	assert.False(t, ok)
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)
	token, err := m.NewAccessToken(&user)
	require.NoError(t, err)
	m.RevokeAccessToken(token)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err = m.RequireAuth(okHandler)(c)
	assert.Equal(t, http.StatusUnauthorized, httpErrorCode(t, err))
}

func TestRequireAuthRejectsDeactivatedUser(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)
	token, err := m.NewAccessToken(&user)
	require.NoError(t, err)

	// Tokens outlive account suspension, the lookup catches it.
	require.NoError(t, ds.SetUserActive(user.ID, false))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err = m.RequireAuth(okHandler)(c)
	assert.Equal(t, http.StatusUnauthorized, httpErrorCode(t, err))
}

func TestRequireAuthSessionCookie(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)

	e := echo.New()

	// Establish a session the way the login handler does.
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v2/auth/login", http.NoBody)
	loginRec := httptest.NewRecorder()
	require.NoError(t, m.SignInSession(e.NewContext(loginReq, loginRec), &user))

	cookie := lastSessionCookie(t, loginRec)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/recordings", http.NoBody)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, m.RequireAuth(okHandler)(c))
	assert.Equal(t, AuthMethodSession, c.Get(ContextAuthMethodKey))

	got, ok := CurrentUser(c)
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
}

// lastSessionCookie picks the freshest session cookie from a response.
// Sign-in first expires any previous session, so the recorder holds a
// deletion cookie followed by the real one.
func lastSessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	var found *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == gothic.SessionName && cookie.Value != "" {
			found = cookie
		}
	}
	require.NotNil(t, found, "sign-in must set a session cookie")
	return found
}

func TestRequireAuthSubnetBypass(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	m, _ := newTestManager(t, func(s *conf.Settings) {
		s.Security.AllowSubnetBypass.Enabled = true
		s.Security.AllowSubnetBypass.Subnet = "192.0.2.0/24"
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/recordings", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, m.RequireAuth(okHandler)(c))
	assert.Equal(t, AuthMethodSubnet, c.Get(ContextAuthMethodKey))

	_, ok := CurrentUser(c)
	assert.False(t, ok, "subnet requests carry no user record")
}

func TestRequireAdmin(t *testing.T) {
	m, ds := newTestManager(t, nil)
	admin := seedUser(t, ds, func(u *datastore.User) {
		u.Username = "curator"
		u.Email = "curator@example.org"
		u.IsAdmin = true
	})
	member := seedUser(t, ds, nil)

	e := echo.New()
	request := func(token string) error {
		req := httptest.NewRequest(http.MethodDelete, "/api/v2/users/5", http.NoBody)
		if token != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		return m.RequireAdmin(okHandler)(e.NewContext(req, httptest.NewRecorder()))
	}

	adminToken, err := m.NewAccessToken(&admin)
	require.NoError(t, err)
	memberToken, err := m.NewAccessToken(&member)
	require.NoError(t, err)

	assert.NoError(t, request(adminToken))
	assert.Equal(t, http.StatusForbidden, httpErrorCode(t, request(memberToken)))
	assert.Equal(t, http.StatusUnauthorized, httpErrorCode(t, request("")))
}

func TestRequireAdminSubnetCountsAsAdmin(t *testing.T) {
	m, _ := newTestManager(t, func(s *conf.Settings) {
		s.Security.AllowSubnetBypass.Enabled = true
		s.Security.AllowSubnetBypass.Subnet = "192.0.2.0/24"
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v2/users/5", http.NoBody)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.NoError(t, m.RequireAdmin(okHandler)(c))
	assert.Equal(t, AuthMethodSubnet, c.Get(ContextAuthMethodKey))
}
