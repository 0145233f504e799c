// env.go - Environment variable configuration and validation for containerized deployments
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation.
// These match the variables the Compose deployment passes to the api container.
func getEnvBindings() []envBinding {
	return []envBinding{
		// Database connection
		{"output.mysql.enabled", "MOUSETUBE_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "MOUSETUBE_MYSQL_HOST", nil},
		{"output.mysql.port", "MOUSETUBE_MYSQL_PORT", validateEnvPort},
		{"output.mysql.database", "MOUSETUBE_MYSQL_DATABASE", nil},
		{"output.mysql.username", "MOUSETUBE_MYSQL_USERNAME", nil},
		{"output.mysql.password", "MOUSETUBE_MYSQL_PASSWORD", nil},

		// Web server
		{"webserver.port", "MOUSETUBE_PORT", validateEnvPort},

		// Media tree
		{"media.basepath", "MOUSETUBE_MEDIA_PATH", nil},
		{"media.temppath", "MOUSETUBE_TEMP_PATH", nil},

		// Archive deposition
		{"zenodo.enabled", "MOUSETUBE_ZENODO_ENABLED", validateEnvBool},
		{"zenodo.apiurl", "MOUSETUBE_ZENODO_API_URL", validateEnvURL},
		{"zenodo.accesstoken", "MOUSETUBE_ZENODO_TOKEN", nil},
		{"zenodo.community", "MOUSETUBE_ZENODO_COMMUNITY", nil},

		// Mail and front end links
		{"mail.enabled", "MOUSETUBE_MAIL_ENABLED", validateEnvBool},
		{"mail.smtpurl", "MOUSETUBE_MAIL_SMTP_URL", nil},
		{"mail.from", "MOUSETUBE_MAIL_FROM", nil},
		{"mail.frontendbaseurl", "MOUSETUBE_FRONTEND_URL", validateEnvURL},

		// Authentication
		{"security.host", "MOUSETUBE_HOST", nil},
		{"security.sessionsecret", "MOUSETUBE_SESSION_SECRET", nil},
		{"security.orcidauth.enabled", "MOUSETUBE_ORCID_ENABLED", validateEnvBool},
		{"security.orcidauth.clientid", "MOUSETUBE_ORCID_CLIENT_ID", nil},
		{"security.orcidauth.clientsecret", "MOUSETUBE_ORCID_CLIENT_SECRET", nil},

		// Telemetry
		{"telemetry.enabled", "MOUSETUBE_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "MOUSETUBE_TELEMETRY_LISTEN", nil},
		{"sentry.enabled", "MOUSETUBE_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "MOUSETUBE_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

// validateEnvPort validates TCP port environment variables
func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// validateEnvURL validates URL environment variables
func validateEnvURL(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got '%s'", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
