package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

func TestHashAndCheckPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("squeak-22kHz")
	require.NoError(t, err)
	assert.NotEqual(t, "squeak-22kHz", hash)

	assert.True(t, CheckPassword(hash, "squeak-22kHz"))
	assert.False(t, CheckPassword(hash, "squeak-50kHz"))
	assert.False(t, CheckPassword("", "squeak-22kHz"))
}

func TestAuthenticateUser(t *testing.T) {
	m, ds := newTestManager(t, nil)
	user := seedUser(t, ds, nil)

	t.Run("by username", func(t *testing.T) {
		got, err := m.AuthenticateUser("efischer", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := m.AuthenticateUser("elodie@example.org", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("records login time", func(t *testing.T) {
		got, err := ds.GetUser(user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := m.AuthenticateUser("efischer", "not the password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := m.AuthenticateUser("nobody", "correct horse battery staple")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("empty credentials", func(t *testing.T) {
		_, err := m.AuthenticateUser("", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = m.AuthenticateUser("efischer", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("identifier is trimmed", func(t *testing.T) {
		got, err := m.AuthenticateUser("  efischer  ", "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})
}

func TestAuthenticateUserInactiveAccount(t *testing.T) {
	m, ds := newTestManager(t, nil)
	seedUser(t, ds, func(u *datastore.User) {
		u.Username = "dormant"
		u.Email = "dormant@example.org"
		u.IsActive = false
	})

	_, err := m.AuthenticateUser("dormant", "correct horse battery staple")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthenticateUserLegacyAccount(t *testing.T) {
	m, ds := newTestManager(t, nil)
	seedUser(t, ds, func(u *datastore.User) {
		u.Username = "imported"
		u.Email = "imported@example.org"
		u.PasswordHash = ""
		u.LegacyPassword = "sha1$f2eb0$0e53a1f6ad7b1ad7b1ad7b1a"
	})

	// Accounts carried over from the old site must reset their password,
	// even with the original credentials in hand.
	_, err := m.AuthenticateUser("imported", "correct horse battery staple")
	assert.ErrorIs(t, err, ErrPasswordResetRequired)
}
