// jwt.go: signed access tokens handed to the web front end.
package security

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// ErrInvalidToken covers expired, malformed, revoked and mis-signed
// access tokens.
var ErrInvalidToken = errors.NewStd("invalid access token")

// Claims carried by a catalog access token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Admin    bool   `json:"admin,omitempty"`
}

// UserID returns the numeric user id from the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// NewAccessToken issues a signed short-lived token for the user. The
// token id allows revocation on logout.
func (m *Manager) NewAccessToken(user *datastore.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.AccessTokenTTL())),
			Issuer:    "mousetube",
		},
		Username: user.Username,
		Admin:    user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.tokenSecret)
	if err != nil {
		return "", errors.New(err).
			Component("security").
			Category(errors.CategorySystem).
			Context("operation", "sign_token").
			Build()
	}
	return signed, nil
}

// ParseAccessToken validates a token's signature, expiry and revocation
// state and returns its claims.
func (m *Manager) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return m.tokenSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if m.revoked.IsRevoked(claims.ID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RevokeAccessToken invalidates a token until its natural expiry.
func (m *Manager) RevokeAccessToken(tokenString string) {
	claims := &Claims{}
	// Parse without strict validation: an already expired token needs no
	// revocation entry.
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.tokenSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.ID == "" {
		return
	}

	expiry := time.Now().Add(m.AccessTokenTTL())
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	m.revoked.Revoke(claims.ID, expiry)
}
