// revocation.go: persisted denylist of logged-out access tokens.
package security

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// RevocationStore tracks revoked token ids until their expiry. The list
// is persisted so a restart does not resurrect logged-out tokens.
type RevocationStore struct {
	mu      sync.RWMutex
	file    string
	revoked map[string]time.Time
}

// NewRevocationStore creates a store backed by the given file. An empty
// path keeps the list in memory only.
func NewRevocationStore(file string) *RevocationStore {
	return &RevocationStore{
		file:    file,
		revoked: make(map[string]time.Time),
	}
}

// Revoke marks a token id as invalid until expiry.
func (r *RevocationStore) Revoke(tokenID string, expiry time.Time) {
	if tokenID == "" {
		return
	}
	r.mu.Lock()
	r.revoked[tokenID] = expiry
	r.mu.Unlock()

	if err := r.save(); err != nil {
		logger.Warn("failed to persist revoked tokens", "error", err)
	}
}

// IsRevoked reports whether the token id is on the denylist.
func (r *RevocationStore) IsRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	r.mu.RLock()
	expiry, ok := r.revoked[tokenID]
	r.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// Load reads the persisted denylist, dropping entries that expired
// while the service was down.
func (r *RevocationStore) Load() error {
	if r.file == "" {
		return nil
	}

	data, err := os.ReadFile(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var stored map[string]time.Time
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	now := time.Now()
	r.mu.Lock()
	for id, expiry := range stored {
		if now.Before(expiry) {
			r.revoked[id] = expiry
		}
	}
	count := len(r.revoked)
	r.mu.Unlock()

	if count > 0 {
		logger.Info("loaded revoked tokens", "count", count)
	}
	return nil
}

// save writes the denylist atomically: temp file then rename.
func (r *RevocationStore) save() error {
	if r.file == "" {
		return nil
	}

	r.mu.RLock()
	snapshot := make(map[string]time.Time, len(r.revoked))
	for id, expiry := range r.revoked {
		snapshot[id] = expiry
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, FilePermissions); err != nil {
		return err
	}
	if err := os.Rename(tempFile, r.file); err != nil {
		_ = os.Remove(tempFile)
		return err
	}
	return nil
}

// StartCleanup drops expired entries on an interval.
func (r *RevocationStore) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			r.cleanupExpired()
		}
	}()
}

func (r *RevocationStore) cleanupExpired() {
	now := time.Now()
	removed := 0

	r.mu.Lock()
	for id, expiry := range r.revoked {
		if now.After(expiry) {
			delete(r.revoked, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		logger.Debug("dropped expired revocation entries", "count", removed)
		if err := r.save(); err != nil {
			logger.Warn("failed to persist revoked tokens", "error", err)
		}
	}
}
