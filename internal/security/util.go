package security

import (
	"net/url"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// ValidateRedirectURI rejects redirect targets that could send a
// browser off-site after login. Only rooted, relative paths pass.
func ValidateRedirectURI(uri string) error {
	if uri == "" {
		return errors.Newf("redirect URI is empty").
			Component("security").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(uri) > MaxSafeRedirectLength {
		return errors.Newf("redirect URI exceeds %d characters", MaxSafeRedirectLength).
			Component("security").
			Category(errors.CategoryValidation).
			Build()
	}
	// Backslashes and protocol-relative prefixes are browser-dependent
	// escape hatches out of the path component.
	if strings.Contains(uri, "\\") || strings.HasPrefix(uri, "//") {
		return errors.Newf("redirect URI uses a disallowed prefix").
			Component("security").
			Category(errors.CategoryValidation).
			Context("uri", uri).
			Build()
	}
	for _, r := range uri {
		if r < 0x20 || r == 0x7f {
			return errors.Newf("redirect URI contains control characters").
				Component("security").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return errors.New(err).
			Component("security").
			Category(errors.CategoryValidation).
			Context("uri", uri).
			Build()
	}
	if parsed.IsAbs() || parsed.Host != "" || parsed.User != nil {
		return errors.Newf("redirect URI must be relative").
			Component("security").
			Category(errors.CategoryValidation).
			Context("uri", uri).
			Build()
	}
	if !strings.HasPrefix(parsed.Path, "/") {
		return errors.Newf("redirect URI must start with /").
			Component("security").
			Category(errors.CategoryValidation).
			Context("uri", uri).
			Build()
	}
	if strings.Contains(parsed.Path, "..") {
		return errors.Newf("redirect URI must not contain path traversal").
			Component("security").
			Category(errors.CategoryValidation).
			Context("uri", uri).
			Build()
	}
	return nil
}

// SafeRedirectPath returns raw when it is a safe in-site path and "/"
// otherwise.
func SafeRedirectPath(raw string) string {
	if err := ValidateRedirectURI(raw); err != nil {
		return "/"
	}
	return raw
}
