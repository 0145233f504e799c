// auth.go: password logins, JWT issue and revocation, and the ORCID
// round trip.
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/security"
)

func (c *Controller) initAuthRoutes() {
	g := c.Group

	g.POST("/auth/login", c.Login, c.rateLimited(5, 10))
	g.POST("/auth/logout", c.Logout)
	g.GET("/auth/status", c.AuthStatus)
	g.GET("/auth/orcid", c.BeginORCID)
	g.GET("/auth/orcid/callback", c.ORCIDCallback)
}

// LoginRequest accepts a username or email in the identifier field.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// LoginResponse carries the bearer token and the account it belongs to.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresIn int            `json:"expires_in"`
	User      map[string]any `json:"user"`
}

// Login checks credentials, issues an access token and opens a browser
// session.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}

	user, err := c.Security.AuthenticateUser(identifier, req.Password)
	if err != nil {
		c.recordAuth("password", "login", "failure")
		switch {
		case errors.Is(err, security.ErrPasswordResetRequired):
			return c.HandleError(ctx, err,
				"This account was imported from the previous site, please reset your password",
				http.StatusForbidden)
		case errors.Is(err, security.ErrAccountInactive):
			return c.HandleError(ctx, err, "Account is not activated", http.StatusForbidden)
		default:
			return c.HandleError(ctx, err, "Invalid credentials", http.StatusUnauthorized)
		}
	}

	token, err := c.Security.NewAccessToken(&user)
	if err != nil {
		c.recordAuth("password", "login", "failure")
		return c.HandleError(ctx, err, "Failed to issue token", http.StatusInternalServerError)
	}
	if err := c.Security.SignInSession(ctx, &user); err != nil {
		c.apiLogger.Warn("failed to open session", "user_id", user.ID, "error", err)
	}

	c.recordAuth("password", "login", "success")
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int(c.Security.AccessTokenTTL().Seconds()),
		User:      userSummary(&user),
	})
}

// Logout revokes the presented bearer token and clears the session.
func (c *Controller) Logout(ctx echo.Context) error {
	if token := bearerFromRequest(ctx); token != "" {
		c.Security.RevokeAccessToken(token)
	}
	c.Security.SignOutSession(ctx)
	c.recordAuth("password", "logout", "success")
	return ctx.JSON(http.StatusOK, map[string]any{"logged_out": true})
}

// AuthStatus reports how the request authenticated, if at all.
func (c *Controller) AuthStatus(ctx echo.Context) error {
	handler := func(inner echo.Context) error {
		method, _ := inner.Get(security.ContextAuthMethodKey).(security.AuthMethod)
		resp := map[string]any{
			"authenticated": true,
			"method":        string(method),
		}
		if user, ok := security.CurrentUser(inner); ok {
			resp["user"] = userSummary(user)
		}
		return inner.JSON(http.StatusOK, resp)
	}

	if err := c.Security.RequireAuth(handler)(ctx); err != nil {
		return ctx.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return nil
}

// BeginORCID starts the ORCID OpenID Connect round trip. The process
// query parameter distinguishes signing in from linking an account.
func (c *Controller) BeginORCID(ctx echo.Context) error {
	if !c.Settings.Security.OrcidAuth.Enabled {
		return c.HandleError(ctx, nil, "ORCID sign in is not enabled", http.StatusNotFound)
	}
	c.Security.BeginORCIDLogin(ctx, ctx.QueryParam("process"))
	return nil
}

// ORCIDCallback completes the provider round trip and redirects the
// browser back into the frontend.
func (c *Controller) ORCIDCallback(ctx echo.Context) error {
	identity, process, err := c.Security.CompleteORCID(ctx)
	if err != nil {
		c.recordAuth("orcid", "login", "failure")
		return c.HandleError(ctx, err, "ORCID sign in failed", http.StatusBadGateway)
	}

	target, err := c.Security.FrontendRedirect(ctx, identity, process)
	if err != nil {
		c.recordAuth("orcid", "login", "failure")
		return c.HandleError(ctx, err, "ORCID sign in failed", http.StatusInternalServerError)
	}

	c.recordAuth("orcid", "login", "success")
	return ctx.Redirect(http.StatusFound, target)
}

func (c *Controller) recordAuth(authType, operation, status string) {
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordAuthOperation(authType, operation, status)
	}
}

// userSummary strips an account to the fields the frontend shows.
func userSummary(user *datastore.User) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"is_admin":   user.IsAdmin,
	}
}

// bearerFromRequest extracts a bearer token from the Authorization
// header.
func bearerFromRequest(ctx echo.Context) string {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
