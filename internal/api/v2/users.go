// users.go: account registration, activation, password reset and
// profile management.
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/countries"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/events"
	"github.com/mousetube/mousetube-go/internal/mail"
	"github.com/mousetube/mousetube-go/internal/security"
)

const (
	minUsernameLen = 3
	minPasswordLen = 8
)

func (c *Controller) initUserRoutes() {
	g := c.Group

	g.POST("/users/register", c.RegisterUser, c.rateLimited(2, 5))
	g.POST("/users/activate", c.ActivateUser, c.rateLimited(5, 10))
	g.POST("/users/password-reset", c.RequestPasswordReset, c.rateLimited(2, 5))
	g.POST("/users/password-reset/confirm", c.ConfirmPasswordReset, c.rateLimited(5, 10))
	g.GET("/users/me", c.CurrentUserProfile, c.authRequired())
	g.PATCH("/users/me", c.UpdateCurrentUser, c.authRequired())
	g.GET("/users", c.ListUsers, c.adminRequired())
	g.GET("/countries", c.ListCountries)
}

// RegistrationRequest is the body of POST /users/register.
type RegistrationRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Institution string `json:"institution"`
	Unit        string `json:"unit"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Country     string `json:"country"`
	Description string `json:"description"`
	ORCID       string `json:"orcid"`
}

func (r *RegistrationRequest) validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))

	switch {
	case len(r.Username) < minUsernameLen:
		return errors.Newf("username must be at least %d characters", minUsernameLen).
			Component("api").Category(errors.CategoryValidation).Build()
	case !strings.Contains(r.Email, "@"):
		return errors.Newf("a valid email address is required").
			Component("api").Category(errors.CategoryValidation).Build()
	case len(r.Password) < minPasswordLen:
		return errors.Newf("password must be at least %d characters", minPasswordLen).
			Component("api").Category(errors.CategoryValidation).Build()
	case r.Country != "" && !countries.ValidCode(r.Country):
		return errors.Newf("unknown country code %q", r.Country).
			Component("api").Category(errors.CategoryValidation).Build()
	}
	return nil
}

// RegisterUser creates an inactive account and emails the activation
// link. Without a configured mailer the account is activated
// immediately.
func (c *Controller) RegisterUser(ctx echo.Context) error {
	var req RegistrationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if err := req.validate(); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to process password", http.StatusInternalServerError)
	}

	user := datastore.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		IsActive:     false,
	}
	if err := c.DS.SaveUser(&user); err != nil {
		return c.writeStoreError(ctx, err, nil, "user")
	}

	profile := datastore.UserProfile{
		UserID:      user.ID,
		Description: req.Description,
		Phone:       req.Phone,
		Unit:        req.Unit,
		Institution: req.Institution,
		Address:     req.Address,
		CountryCode: req.Country,
		ORCID:       strings.TrimSpace(req.ORCID),
	}
	if err := c.DS.SaveUserProfile(&profile); err != nil {
		return c.writeStoreError(ctx, err, nil, "user profile")
	}
	user.Profile = &profile

	if c.mailer != nil && c.mailer.Enabled() {
		if err := c.mailer.SendActivation(ctx.Request().Context(), &user); err != nil {
			c.apiLogger.Error("failed to send activation mail",
				"user_id", user.ID, "error", err)
		}
	} else {
		if err := c.DS.SetUserActive(user.ID, true); err != nil {
			return c.writeStoreError(ctx, err, datastore.ErrUserNotFound, "user")
		}
		user.IsActive = true
	}

	events.Publish(events.NewEvent(events.TypeUserRegistered, user.ID, map[string]any{
		"username": user.Username,
	}))
	return ctx.JSON(http.StatusCreated, user)
}

// ActivateUser redeems an activation token.
func (c *Controller) ActivateUser(ctx echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.Token == "" {
		return c.HandleError(ctx, nil, "A token is required", http.StatusBadRequest)
	}

	token, err := c.DS.ConsumeUserToken(mail.HashToken(req.Token), datastore.TokenPurposeActivation)
	if err != nil {
		if errors.Is(err, datastore.ErrTokenInvalid) {
			return c.HandleError(ctx, err, "Invalid or expired token", http.StatusBadRequest)
		}
		return c.writeStoreError(ctx, err, nil, "token")
	}
	if err := c.DS.SetUserActive(token.UserID, true); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrUserNotFound, "user")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"user_id":   token.UserID,
		"activated": true,
	})
}

// RequestPasswordReset emails a reset link. The response never reveals
// whether the address is registered.
func (c *Controller) RequestPasswordReset(ctx echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.HandleError(ctx, nil, "An email address is required", http.StatusBadRequest)
	}

	user, err := c.DS.GetUserByEmail(email)
	if err == nil && c.mailer != nil && c.mailer.Enabled() {
		if err := c.mailer.SendPasswordReset(ctx.Request().Context(), &user); err != nil {
			c.apiLogger.Error("failed to send password reset mail",
				"user_id", user.ID, "error", err)
		}
	}
	return ctx.JSON(http.StatusAccepted, map[string]any{
		"status": "if the address is registered, a reset link has been sent",
	})
}

// ConfirmPasswordReset redeems a reset token and stores the new
// password. Legacy imported hashes are cleared, the account becomes a
// regular one.
func (c *Controller) ConfirmPasswordReset(ctx echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.Token == "" {
		return c.HandleError(ctx, nil, "A token is required", http.StatusBadRequest)
	}
	if len(req.Password) < minPasswordLen {
		return c.HandleError(ctx, nil, "Password is too short", http.StatusBadRequest)
	}

	token, err := c.DS.ConsumeUserToken(mail.HashToken(req.Token), datastore.TokenPurposePasswordReset)
	if err != nil {
		if errors.Is(err, datastore.ErrTokenInvalid) {
			return c.HandleError(ctx, err, "Invalid or expired token", http.StatusBadRequest)
		}
		return c.writeStoreError(ctx, err, nil, "token")
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to process password", http.StatusInternalServerError)
	}
	if err := c.DS.SetUserPassword(token.UserID, hash); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrUserNotFound, "user")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"user_id": token.UserID,
		"reset":   true,
	})
}

// CurrentUserProfile returns the signed-in account.
func (c *Controller) CurrentUserProfile(ctx echo.Context) error {
	user, ok := security.CurrentUser(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	fresh, err := c.DS.GetUser(user.ID)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrUserNotFound, "user")
	}
	return ctx.JSON(http.StatusOK, fresh)
}

// ProfileUpdateRequest is the body of PATCH /users/me. Pointer fields
// distinguish absent from empty.
type ProfileUpdateRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Institution *string `json:"institution"`
	Unit        *string `json:"unit"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Country     *string `json:"country"`
	Description *string `json:"description"`
}

// UpdateCurrentUser applies a partial profile update.
func (c *Controller) UpdateCurrentUser(ctx echo.Context) error {
	user, ok := security.CurrentUser(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req ProfileUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	fresh, err := c.DS.GetUser(user.ID)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrUserNotFound, "user")
	}
	if req.FirstName != nil {
		fresh.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		fresh.LastName = strings.TrimSpace(*req.LastName)
	}
	if err := c.DS.SaveUser(&fresh); err != nil {
		return c.writeStoreError(ctx, err, nil, "user")
	}

	profile := datastore.UserProfile{UserID: fresh.ID}
	if fresh.Profile != nil {
		profile = *fresh.Profile
	}
	if req.Institution != nil {
		profile.Institution = *req.Institution
	}
	if req.Unit != nil {
		profile.Unit = *req.Unit
	}
	if req.Address != nil {
		profile.Address = *req.Address
	}
	if req.Phone != nil {
		profile.Phone = *req.Phone
	}
	if req.Description != nil {
		profile.Description = *req.Description
	}
	if req.Country != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Country))
		if code != "" && !countries.ValidCode(code) {
			return c.HandleError(ctx, nil, "Unknown country code", http.StatusBadRequest)
		}
		profile.CountryCode = code
	}
	if err := c.DS.SaveUserProfile(&profile); err != nil {
		return c.writeStoreError(ctx, err, nil, "user profile")
	}
	fresh.Profile = &profile

	return ctx.JSON(http.StatusOK, fresh)
}

// ListUsers returns all accounts, for the admin screen.
func (c *Controller) ListUsers(ctx echo.Context) error {
	users, err := c.DS.ListUsers()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "user")
	}
	return ctx.JSON(http.StatusOK, users)
}

// ListCountries returns the ISO 3166 country list used by the
// registration form.
func (c *Controller) ListCountries(ctx echo.Context) error {
	list, err := countries.All()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load country list", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, list)
}
