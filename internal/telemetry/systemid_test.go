package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSystemIDFormat(t *testing.T) {
	id, err := GenerateSystemID()
	require.NoError(t, err)

	assert.Len(t, id, 14)
	assert.True(t, isValidSystemID(id), "generated ID %q must validate", id)
	assert.Equal(t, byte('-'), id[4])
	assert.Equal(t, byte('-'), id[9])
}

func TestGenerateSystemIDIsRandom(t *testing.T) {
	a, err := GenerateSystemID()
	require.NoError(t, err)
	b, err := GenerateSystemID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLoadOrCreateSystemIDPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	require.True(t, isValidSystemID(first))

	// A second call must return the stored value, not a new one
	second, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(dir, systemIDFile))
	require.NoError(t, err)
	assert.Equal(t, first, string(data))
}

func TestLoadOrCreateSystemIDReplacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	idPath := filepath.Join(dir, systemIDFile)
	require.NoError(t, os.WriteFile(idPath, []byte("not-an-id"), 0o644))

	id, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.True(t, isValidSystemID(id))

	data, err := os.ReadFile(idPath)
	require.NoError(t, err)
	assert.Equal(t, id, string(data))
}

func TestLoadOrCreateSystemIDCreatesConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	id, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.True(t, isValidSystemID(id))
	assert.FileExists(t, filepath.Join(dir, systemIDFile))
}

func TestIsValidSystemID(t *testing.T) {
	cases := []struct {
		name  string
		id    string
		valid bool
	}{
		{"uppercase", "ABCD-1234-EF56", true},
		{"lowercase", "abcd-1234-ef56", true},
		{"too short", "ABCD-1234", false},
		{"wrong separator", "ABCD_1234_EF56", false},
		{"non-hex", "GHIJ-1234-EF56", false},
		{"empty", "", false},
		{"surrounding space", " BCD-1234-EF56", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, isValidSystemID(tc.id))
		})
	}
}
