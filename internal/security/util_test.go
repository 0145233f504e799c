package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRedirectURI(t *testing.T) {
	t.Parallel()

	valid := []string{
		"/",
		"/recordings",
		"/recordings?species=mus_musculus&page=2",
		"/account/settings#profile",
	}
	for _, uri := range valid {
		assert.NoError(t, ValidateRedirectURI(uri), "uri %q", uri)
	}

	invalid := []string{
		"",
		"https://evil.example.com/",
		"//evil.example.com/",
		"/\\evil.example.com",
		"recordings",
		"/recordings/../../etc/passwd",
		"/line\nbreak",
		"javascript:alert(1)",
		"/" + strings.Repeat("a", MaxSafeRedirectLength),
	}
	for _, uri := range invalid {
		assert.Error(t, ValidateRedirectURI(uri), "uri %q", uri)
	}
}

func TestSafeRedirectPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/recordings", SafeRedirectPath("/recordings"))
	assert.Equal(t, "/", SafeRedirectPath("https://evil.example.com/"))
	assert.Equal(t, "/", SafeRedirectPath(""))
}
