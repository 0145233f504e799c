// Package conf provides security helper methods for URL handling in reverse proxy setups.
package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// GetBaseURL returns the base URL for emails, notifications and OAuth redirects.
// Priority order:
//  1. BaseURL field (if set, used as-is with trailing slash trimmed)
//  2. Constructed from Host + port + AutoTLS scheme
//  3. Empty string if no host is available
//
// This method does NOT fall back to localhost - callers should handle empty returns.
func (s *Security) GetBaseURL(port string) string {
	if baseURL := strings.TrimSuffix(strings.TrimSpace(s.BaseURL), "/"); baseURL != "" {
		return baseURL
	}

	if s.Host == "" {
		return ""
	}

	scheme := "http"
	if s.AutoTLS {
		scheme = "https"
	}

	// Omit default ports for cleaner URLs
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		return fmt.Sprintf("%s://%s", scheme, s.Host)
	}

	return fmt.Sprintf("%s://%s:%s", scheme, s.Host, port)
}

// GetHostnameForCertificates extracts the hostname for TLS certificate generation.
// Priority order:
//  1. Host field (if set)
//  2. Hostname extracted from BaseURL (without port)
//  3. Empty string if neither is available
func (s *Security) GetHostnameForCertificates() string {
	if s.Host != "" {
		return s.Host
	}

	if s.BaseURL == "" {
		return ""
	}

	parsed, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil || parsed.Host == "" {
		return ""
	}

	return parsed.Hostname()
}

// GetExternalHost returns the external host:port, useful where the full
// host:port is needed (e.g. the HTTP Host header).
// Priority order:
//  1. Host:port extracted from BaseURL (if valid)
//  2. Host field as fallback
//  3. Empty string if neither is available
func (s *Security) GetExternalHost() string {
	if s.BaseURL != "" {
		parsed, err := url.Parse(strings.TrimSpace(s.BaseURL))
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}

	return s.Host
}
