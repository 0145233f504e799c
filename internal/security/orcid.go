// orcid.go: ORCID OpenID Connect sign-in through goth.
package security

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/openidConnect"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// orcidDiscoveryURL is ORCID's OpenID Connect discovery document.
const orcidDiscoveryURL = "https://orcid.org/.well-known/openid-configuration"

// orcidProcessKey is the session key remembering why the user went to
// ORCID: a plain login or linking the iD to an existing account.
const orcidProcessKey = "orcid_process"

// ORCIDProcessConnect marks an account-linking round trip.
const ORCIDProcessConnect = "connect"

// Identity is what an ORCID round trip yields.
type Identity struct {
	ORCID      string
	GivenName  string
	FamilyName string
}

// initializeORCIDProvider registers the ORCID OpenID Connect provider
// with goth. Disabled or incomplete configuration is not an error, the
// auth routes then reject ORCID logins.
func initializeORCIDProvider(settings *conf.Settings) error {
	auth := settings.Security.OrcidAuth
	if !auth.Enabled {
		logger.Info("ORCID provider disabled")
		return nil
	}
	if auth.ClientID == "" || auth.ClientSecret == "" || auth.RedirectURI == "" {
		logger.Warn("ORCID provider enabled but not fully configured, skipping")
		return nil
	}

	provider, err := openidConnect.New(auth.ClientID, auth.ClientSecret,
		auth.RedirectURI, orcidDiscoveryURL, "openid")
	if err != nil {
		return errors.New(err).
			Component("security").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_orcid_provider").
			Build()
	}
	provider.SetName(ProviderORCID)
	goth.UseProviders(provider)

	logger.Info("ORCID provider initialized", "redirect_uri", auth.RedirectURI)
	return nil
}

// withProvider injects the provider name where gothic looks for it.
func withProvider(c echo.Context) {
	query := c.Request().URL.Query()
	query.Set("provider", ProviderORCID)
	c.Request().URL.RawQuery = query.Encode()
}

// BeginORCIDLogin remembers the process and redirects to ORCID.
func (m *Manager) BeginORCIDLogin(c echo.Context, process string) {
	withProvider(c)
	if process != "" {
		if err := gothic.StoreInSession(orcidProcessKey, process, c.Request(), c.Response()); err != nil {
			logger.Warn("failed to store ORCID process in session", "error", err)
		}
	}
	gothic.BeginAuthHandler(c.Response().Writer, c.Request())
}

// CompleteORCID finishes the provider round trip and returns the
// asserted identity together with the remembered process.
func (m *Manager) CompleteORCID(c echo.Context) (Identity, string, error) {
	withProvider(c)

	process, _ := gothic.GetFromSession(orcidProcessKey, c.Request())
	// One-shot value, clear it for the next round trip.
	_ = gothic.StoreInSession(orcidProcessKey, "", c.Request(), c.Response())

	gothUser, err := gothic.CompleteUserAuth(c.Response().Writer, c.Request())
	if err != nil {
		return Identity{}, process, errors.New(err).
			Component("security").
			Category(errors.CategoryNetwork).
			Context("operation", "complete_orcid_auth").
			Build()
	}

	identity := Identity{
		ORCID:      gothUser.UserID,
		GivenName:  strings.TrimSpace(gothUser.FirstName),
		FamilyName: strings.TrimSpace(gothUser.LastName),
	}
	if identity.GivenName == "" {
		identity.GivenName = rawClaim(gothUser, "given_name")
	}
	if identity.FamilyName == "" {
		identity.FamilyName = rawClaim(gothUser, "family_name")
	}

	if identity.ORCID == "" {
		return Identity{}, process, errors.Newf("provider response carried no ORCID iD").
			Component("security").
			Category(errors.CategoryValidation).
			Build()
	}
	return identity, process, nil
}

func rawClaim(user goth.User, key string) string {
	if value, ok := user.RawData[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// FrontendRedirect decides where the browser goes after an ORCID round
// trip: a known iD gets an access token on the auth callback page, an
// unknown one lands on the register page, or on the link page when the
// user started from account settings.
func (m *Manager) FrontendRedirect(c echo.Context, identity Identity, process string) (string, error) {
	if m.frontendURL == nil {
		return "", errors.Newf("front end base URL is not configured").
			Component("security").
			Category(errors.CategoryConfiguration).
			Build()
	}

	user, err := m.ds.GetUserByORCID(identity.ORCID)
	switch {
	case err == nil:
		token, tokenErr := m.NewAccessToken(&user)
		if tokenErr != nil {
			return "", tokenErr
		}
		if sessErr := m.SignInSession(c, &user); sessErr != nil {
			logger.Warn("failed to establish session after ORCID login",
				"user_id", user.ID, "error", sessErr)
		}
		logger.Info("ORCID login", "user_id", user.ID)
		return m.frontendPath("/auth/callback", url.Values{"token": {token}}), nil

	case errors.Is(err, datastore.ErrUserNotFound):
		params := url.Values{
			"orcid":      {identity.ORCID},
			"first_name": {identity.GivenName},
			"last_name":  {identity.FamilyName},
		}
		if process == ORCIDProcessConnect {
			return m.frontendPath("/account/link-orcid", params), nil
		}
		return m.frontendPath("/account/register", params), nil

	default:
		return "", err
	}
}

func (m *Manager) frontendPath(path string, params url.Values) string {
	base := strings.TrimRight(m.frontendURL.String(), "/")
	return fmt.Sprintf("%s%s?%s", base, path, params.Encode())
}
