// tokens.go: single-use tokens backing activation and password reset links.
package mail

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// tokenTTL matches the three day validity Django applies to account links.
const tokenTTL = 72 * time.Hour

// NewToken generates a URL-safe random token and the hex SHA-256 digest
// under which it is stored. The raw token only ever appears in the email.
func NewToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.New(err).
			Component("mail").
			Category(errors.CategoryMail).
			Build()
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex SHA-256 digest of a raw token. Lookups by
// digest keep raw tokens out of the database.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
