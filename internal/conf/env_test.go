package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEnvBool(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvBool("true"))
	assert.NoError(t, validateEnvBool("0"))
	assert.Error(t, validateEnvBool("yes"))
}

func TestValidateEnvPort(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvPort("8000"))
	assert.NoError(t, validateEnvPort("3306"))
	assert.Error(t, validateEnvPort("0"))
	assert.Error(t, validateEnvPort("70000"))
	assert.Error(t, validateEnvPort("http"))
}

func TestValidateEnvURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvURL("https://zenodo.org/api"))
	assert.NoError(t, validateEnvURL("http://localhost:8000"))
	assert.Error(t, validateEnvURL("ftp://example.org"))
	assert.Error(t, validateEnvURL("https://"))
}

func TestEnvBindingsAreWellFormed(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, binding := range getEnvBindings() {
		assert.NotEmpty(t, binding.ConfigKey)
		assert.NotEmpty(t, binding.EnvVar)
		assert.False(t, seen[binding.EnvVar], "duplicate env var %s", binding.EnvVar)
		seen[binding.EnvVar] = true
	}
}
