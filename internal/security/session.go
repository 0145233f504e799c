// session.go: cookie session store shared with the goth providers.
package security

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth/gothic"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
)

const sessionUserKey = "user_id"

// configureSessionStore installs the gothic session store: a filesystem
// store under configDir when available, a cookie store otherwise.
func configureSessionStore(settings *conf.Settings, configDir string) {
	authKey := deriveKey(settings.Security.SessionSecret, "session-auth")
	encKey := deriveKey(settings.Security.SessionSecret, "session-encryption")

	secure := settings.Security.RedirectToHTTPS
	maxAge := DefaultSessionMaxAgeSeconds
	if settings.Security.SessionDuration > 0 {
		maxAge = int(settings.Security.SessionDuration.Seconds())
	}

	if configDir == "" {
		gothic.Store = newCookieStore(authKey, encKey, secure, maxAge)
		logger.Info("using in-memory cookie session store")
		return
	}

	sessionPath := filepath.Join(configDir, "sessions")
	if err := os.MkdirAll(sessionPath, DirPermissions); err != nil {
		logger.Error("failed to create session directory, falling back to cookie store",
			"path", sessionPath, "error", err)
		gothic.Store = newCookieStore(authKey, encKey, secure, maxAge)
		return
	}

	store := sessions.NewFilesystemStore(sessionPath, authKey, encKey)
	store.Options = buildSessionOptions(secure, maxAge)
	store.MaxLength(MaxSessionSizeBytes)
	gothic.Store = store

	logger.Info("filesystem session store configured",
		"path", sessionPath, "max_age_seconds", maxAge, "secure", secure)
}

func newCookieStore(authKey, encKey []byte, secure bool, maxAge int) *sessions.CookieStore {
	store := sessions.NewCookieStore(authKey, encKey)
	store.Options = buildSessionOptions(secure, maxAge)
	return store
}

// buildSessionOptions creates session options with the standard cookie
// hardening.
func buildSessionOptions(secure bool, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SignInSession stores the authenticated user in a fresh session. The
// old session is dropped first so a pre-login session id cannot be
// fixed by an attacker.
func (m *Manager) SignInSession(c echo.Context, user *datastore.User) error {
	if err := gothic.Logout(c.Response().Writer, c.Request()); err != nil {
		logger.Debug("no previous session to clear", "error", err)
	}

	id := strconv.FormatUint(uint64(user.ID), 10)
	if err := gothic.StoreInSession(sessionUserKey, id, c.Request(), c.Response()); err != nil {
		return err
	}
	logger.Info("session established", "user_id", user.ID)
	return nil
}

// SignOutSession clears the session cookie.
func (m *Manager) SignOutSession(c echo.Context) {
	if err := gothic.Logout(c.Response().Writer, c.Request()); err != nil {
		logger.Debug("session logout", "error", err)
	}
}

// SessionUserID returns the user id stored in the request session.
func (m *Manager) SessionUserID(c echo.Context) (uint, bool) {
	value, err := gothic.GetFromSession(sessionUserKey, c.Request())
	if err != nil || value == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
