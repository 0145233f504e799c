// Package security implements authentication for the catalog: password
// login against the user table, ORCID OpenID Connect sign-in, signed
// access tokens for the web front end and the subnet bypass used on
// trusted networks.
package security

import (
	"crypto/sha256"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("security")
	if logger == nil {
		logger = slog.Default().With("service", "security")
	}
}

// Manager owns the authentication state: the session store, the token
// signing key, the revocation list and the identity provider wiring.
type Manager struct {
	Settings *conf.Settings

	ds          datastore.Interface
	tokenSecret []byte
	revoked     *RevocationStore
	frontendURL *url.URL
	debug       bool
}

// NewManager builds the authentication manager and prepares the session
// store and the ORCID provider. configDir holds the session files and
// the revocation list; an empty value disables both persistences.
func NewManager(settings *conf.Settings, ds datastore.Interface, configDir string) (*Manager, error) {
	secret := settings.Security.SessionSecret
	if secret == "" {
		// Sessions and tokens die with the process when no secret is
		// configured.
		secret = conf.GenerateRandomSecret()
		logger.Warn("security.sessionsecret is empty, using an ephemeral secret; " +
			"logins will not survive a restart")
	} else if len(secret) < MinSessionSecretLength {
		logger.Warn("security.sessionsecret is shorter than recommended",
			"length", len(secret), "recommended", MinSessionSecretLength)
	}

	m := &Manager{
		Settings:    settings,
		ds:          ds,
		tokenSecret: deriveKey(secret, "access-tokens"),
		debug:       settings.Security.Debug,
	}

	if settings.Mail.FrontendBaseURL != "" {
		parsed, err := url.Parse(settings.Mail.FrontendBaseURL)
		if err != nil {
			return nil, errors.New(err).
				Component("security").
				Category(errors.CategoryConfiguration).
				Context("frontend_base_url", settings.Mail.FrontendBaseURL).
				Build()
		}
		m.frontendURL = parsed
	}

	configureSessionStore(settings, configDir)

	if err := initializeORCIDProvider(settings); err != nil {
		return nil, err
	}

	revocationFile := ""
	if configDir != "" {
		if err := os.MkdirAll(configDir, DirPermissions); err != nil {
			logger.Warn("failed to create config directory, token revocation will not persist",
				"path", configDir, "error", err)
		} else {
			revocationFile = filepath.Join(configDir, "revoked_tokens.json")
		}
	}
	m.revoked = NewRevocationStore(revocationFile)
	if err := m.revoked.Load(); err != nil {
		logger.Warn("failed to load revoked tokens", "error", err)
	}
	m.revoked.StartCleanup(time.Hour)

	logger.Info("security manager initialized",
		"basic_auth", settings.Security.BasicAuth.Enabled,
		"orcid_auth", settings.Security.OrcidAuth.Enabled)
	return m, nil
}

// AccessTokenTTL returns the configured access token lifetime, with a
// short default when unset.
func (m *Manager) AccessTokenTTL() time.Duration {
	if m.Settings.Security.AccessTokenExp > 0 {
		return m.Settings.Security.AccessTokenExp
	}
	return DefaultAccessTokenTTL
}

// deriveKey stretches the session secret into a purpose-specific key.
// AES and HMAC both want fixed-length keys; SHA-256 gives 32 bytes.
func deriveKey(secret, purpose string) []byte {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write([]byte(":"))
	h.Write([]byte(purpose))
	return h.Sum(nil)
}
