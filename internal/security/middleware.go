// middleware.go: echo middleware enforcing authentication.
package security

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

// RequireAuth rejects unauthenticated requests. Requests from trusted
// subnets pass without credentials; everyone else needs a bearer token
// or a signed-in session.
func (m *Manager) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, method, ok := m.resolveRequestUser(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if user != nil {
			c.Set(ContextUserKey, user)
		}
		c.Set(ContextAuthMethodKey, method)
		return next(c)
	}
}

// RequireAdmin additionally demands an administrator account. Subnet
// access counts as administrative, matching the trust put in the local
// network elsewhere.
func (m *Manager) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, method, ok := m.resolveRequestUser(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if method != AuthMethodSubnet && (user == nil || !user.IsAdmin) {
			return echo.NewHTTPError(http.StatusForbidden, "administrator access required")
		}
		if user != nil {
			c.Set(ContextUserKey, user)
		}
		c.Set(ContextAuthMethodKey, method)
		return next(c)
	}
}

// CurrentUser returns the authenticated user set by the middleware.
// Subnet-authenticated requests have no user record.
func CurrentUser(c echo.Context) (*datastore.User, bool) {
	user, ok := c.Get(ContextUserKey).(*datastore.User)
	return user, ok && user != nil
}

// resolveRequestUser authenticates a request by, in order: subnet
// bypass, bearer token, session cookie.
func (m *Manager) resolveRequestUser(c echo.Context) (*datastore.User, AuthMethod, bool) {
	if m.IsRequestFromAllowedSubnet(c.RealIP()) {
		return nil, AuthMethodSubnet, true
	}

	if token := bearerToken(c); token != "" {
		if claims, err := m.ParseAccessToken(token); err == nil {
			if user := m.activeUserFromClaims(claims); user != nil {
				return user, AuthMethodToken, true
			}
		}
	}

	if id, ok := m.SessionUserID(c); ok {
		if user := m.activeUser(id); user != nil {
			return user, AuthMethodSession, true
		}
	}

	return nil, AuthMethodNone, false
}

func (m *Manager) activeUserFromClaims(claims *Claims) *datastore.User {
	id, err := claims.UserID()
	if err != nil {
		return nil
	}
	return m.activeUser(id)
}

func (m *Manager) activeUser(id uint) *datastore.User {
	user, err := m.ds.GetUser(id)
	if err != nil || !user.IsActive {
		return nil
	}
	return &user
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
