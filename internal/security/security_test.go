package security

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

// newTestManager builds a Manager backed by a throwaway SQLite store.
// Tests that construct managers must not run in parallel, the session
// store behind the goth integration is package-global.
func newTestManager(t *testing.T, mutate func(*conf.Settings)) (*Manager, datastore.Interface) {
	t.Helper()

	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(base, "catalog.db")
	settings.Security.SessionSecret = testSessionSecret
	settings.Mail.FrontendBaseURL = "https://mousetube.example.org"
	if mutate != nil {
		mutate(settings)
	}

	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	m, err := NewManager(settings, ds, filepath.Join(base, "config"))
	require.NoError(t, err)
	return m, ds
}

func seedUser(t *testing.T, ds datastore.Interface, mutate func(*datastore.User)) datastore.User {
	t.Helper()

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	user := datastore.User{
		Username:     "efischer",
		Email:        "elodie@example.org",
		FirstName:    "Elodie",
		LastName:     "Fischer",
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	if mutate != nil {
		mutate(&user)
	}
	require.NoError(t, ds.SaveUser(&user))
	return user
}

func TestNewManagerGeneratesEphemeralSecret(t *testing.T) {
	m, ds := newTestManager(t, func(s *conf.Settings) {
		s.Security.SessionSecret = ""
	})
	user := seedUser(t, ds, nil)

	// Tokens signed with the generated secret still round trip.
	token, err := m.NewAccessToken(&user)
	require.NoError(t, err)
	claims, err := m.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.Username, claims.Username)
}

func TestNewManagerRejectsBadFrontendURL(t *testing.T) {
	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(base, "catalog.db")
	settings.Security.SessionSecret = testSessionSecret
	settings.Mail.FrontendBaseURL = "http://bad url with spaces"

	ds, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	_, err = NewManager(settings, ds, "")
	require.Error(t, err)
}

func TestAccessTokenTTL(t *testing.T) {
	m, _ := newTestManager(t, nil)
	assert.Equal(t, DefaultAccessTokenTTL, m.AccessTokenTTL())

	m.Settings.Security.AccessTokenExp = 30 * time.Minute
	assert.Equal(t, 30*time.Minute, m.AccessTokenTTL())
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	a := deriveKey("secret", "access-tokens")
	b := deriveKey("secret", "access-tokens")
	c := deriveKey("secret", "session-auth")

	assert.Len(t, a, 32)
	assert.Equal(t, a, b, "same inputs must derive the same key")
	assert.NotEqual(t, a, c, "purpose must separate keys")
}
