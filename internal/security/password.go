// password.go: password hashing and the password login flow.
package security

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// Sentinel errors for the login flow. Handlers map all of them to the
// same generic 401 message, the distinction is for logs and tests.
var (
	ErrInvalidCredentials    = errors.NewStd("invalid username or password")
	ErrAccountInactive       = errors.NewStd("account is not activated")
	ErrPasswordResetRequired = errors.NewStd("password reset required")
)

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New(err).
			Component("security").
			Category(errors.CategorySystem).
			Context("operation", "hash_password").
			Build()
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AuthenticateUser validates a password login by username or email.
// Accounts imported from the legacy site carry only their old hash and
// must go through a password reset first.
func (m *Manager) AuthenticateUser(identifier, password string) (datastore.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return datastore.User{}, ErrInvalidCredentials
	}

	user, err := m.lookupUser(identifier)
	if err != nil {
		// Burn a comparison so unknown and known users take the same time.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0H1rJpJcnvMRtJtmLn07rATq9sa"),
			[]byte(password))
		return datastore.User{}, ErrInvalidCredentials
	}

	if user.PasswordHash == "" {
		if user.LegacyPassword != "" {
			return datastore.User{}, ErrPasswordResetRequired
		}
		return datastore.User{}, ErrInvalidCredentials
	}

	if !CheckPassword(user.PasswordHash, password) {
		logger.Warn("failed login attempt", "user_id", user.ID)
		return datastore.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return datastore.User{}, ErrAccountInactive
	}

	if err := m.ds.TouchUserLogin(user.ID, time.Now()); err != nil {
		logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (m *Manager) lookupUser(identifier string) (datastore.User, error) {
	if strings.Contains(identifier, "@") {
		if user, err := m.ds.GetUserByEmail(identifier); err == nil {
			return user, nil
		}
	}
	return m.ds.GetUserByUsername(identifier)
}
