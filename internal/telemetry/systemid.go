package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// systemIDFile holds the anonymous installation identifier inside the
// config directory. The leading dot keeps it out of casual listings.
const systemIDFile = ".system_id"

// GenerateSystemID returns a fresh installation identifier in the form
// XXXX-XXXX-XXXX. The value is purely random, it carries no hardware or
// user information.
func GenerateSystemID() (string, error) {
	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.New(err).
			Component("telemetry").
			Category(errors.CategorySystem).
			Build()
	}

	id := hex.EncodeToString(raw)
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", id[0:4], id[4:8], id[8:12])), nil
}

// LoadOrCreateSystemID returns the identifier persisted in configDir,
// generating and saving a new one when the file is missing or corrupt.
// The identifier survives restarts so reports from one installation can
// be correlated without identifying the operator.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", errors.New(err).
			Component("telemetry").
			Category(errors.CategoryFileIO).
			Context("config_dir", configDir).
			Build()
	}

	idPath := filepath.Join(configDir, systemIDFile)
	if data, err := os.ReadFile(idPath); err == nil {
		id := strings.TrimSpace(string(data))
		if isValidSystemID(id) {
			return id, nil
		}
		logger.Warn("stored system ID is invalid, generating a new one", "path", idPath)
	}

	id, err := GenerateSystemID()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(idPath, []byte(id), 0o644); err != nil { //nolint:gosec // the identifier is not a secret
		return "", errors.New(err).
			Component("telemetry").
			Category(errors.CategoryFileIO).
			Context("path", idPath).
			Build()
	}

	return id, nil
}

// isValidSystemID reports whether id has the XXXX-XXXX-XXXX shape.
// Hex digits of either case are accepted so hand-edited files survive.
func isValidSystemID(id string) bool {
	if len(id) != 14 {
		return false
	}
	if id[4] != '-' || id[9] != '-' {
		return false
	}
	for i, r := range id {
		if i == 4 || i == 9 {
			continue
		}
		if !isHexChar(r) {
			return false
		}
	}
	return true
}

func isHexChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}
