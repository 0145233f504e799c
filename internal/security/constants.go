package security

import "time"

const (
	// ProviderORCID is the goth provider name, used in routes and as
	// the session key prefix.
	ProviderORCID = "orcid"

	// Session and cookie settings
	DefaultSessionMaxAgeDays    = 7
	DefaultSessionMaxAgeSeconds = 86400 * DefaultSessionMaxAgeDays

	// DefaultAccessTokenTTL applies when security.accesstokenexp is unset.
	DefaultAccessTokenTTL = 24 * time.Hour

	// MinSessionSecretLength is the recommended secret size in bytes.
	MinSessionSecretLength = 32

	// File permissions for session and token files
	DirPermissions  = 0o750
	FilePermissions = 0o600

	// MaxSessionSizeBytes caps a single stored session.
	MaxSessionSizeBytes = 1024 * 1024

	// CIDR mask bits for the IPv4 /24 local subnet comparison
	IPv4SubnetMaskBits   = 24
	IPv4TotalAddressBits = 32

	// MaxSafeRedirectLength caps redirect paths accepted from clients.
	MaxSafeRedirectLength = 512
)

// AuthMethod records how a request was authenticated.
type AuthMethod string

const (
	AuthMethodNone    AuthMethod = ""
	AuthMethodSubnet  AuthMethod = "subnet"
	AuthMethodSession AuthMethod = "session"
	AuthMethodToken   AuthMethod = "token"
)

// Echo context keys set by the auth middleware.
const (
	ContextUserKey       = "auth_user"
	ContextAuthMethodKey = "auth_method"
)
