package security

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationStoreMemoryOnly(t *testing.T) {
	t.Parallel()

	store := NewRevocationStore("")
	require.NoError(t, store.Load())

	store.Revoke("token-a", time.Now().Add(time.Hour))
	assert.True(t, store.IsRevoked("token-a"))
	assert.False(t, store.IsRevoked("token-b"))
}

func TestRevocationStorePersists(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "revoked_tokens.json")

	first := NewRevocationStore(file)
	require.NoError(t, first.Load())
	first.Revoke("logged-out", time.Now().Add(time.Hour))

	// A fresh store reading the same file sees the entry, as after a
	// process restart.
	second := NewRevocationStore(file)
	require.NoError(t, second.Load())
	assert.True(t, second.IsRevoked("logged-out"))
}

func TestRevocationStoreLoadDropsExpired(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "revoked_tokens.json")

	first := NewRevocationStore(file)
	first.Revoke("long-lived", time.Now().Add(time.Hour))
	first.Revoke("stale", time.Now().Add(-time.Minute))

	second := NewRevocationStore(file)
	require.NoError(t, second.Load())
	assert.True(t, second.IsRevoked("long-lived"))
	assert.False(t, second.IsRevoked("stale"))
}

func TestRevocationStoreExpiryEndsRevocation(t *testing.T) {
	t.Parallel()

	store := NewRevocationStore("")
	store.Revoke("short", time.Now().Add(10*time.Millisecond))
	assert.True(t, store.IsRevoked("short"))

	assert.Eventually(t, func() bool {
		return !store.IsRevoked("short")
	}, time.Second, 10*time.Millisecond, "revocation must lapse with the token expiry")
}

func TestRevocationStoreCleanupExpired(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "revoked_tokens.json")
	store := NewRevocationStore(file)
	store.Revoke("keep", time.Now().Add(time.Hour))
	store.Revoke("drop", time.Now().Add(-time.Hour))

	store.cleanupExpired()

	assert.True(t, store.IsRevoked("keep"))
	assert.False(t, store.IsRevoked("drop"))

	// The cleanup also rewrote the file without the expired entry.
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep")
	assert.NotContains(t, string(data), "drop")
}

func TestRevocationStoreLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewRevocationStore(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, store.Load())
}
