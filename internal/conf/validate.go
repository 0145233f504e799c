// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMediaSettings(&settings.Media); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateZenodoSettings(&settings.Zenodo); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMailSettings(&settings.Mail); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateBackupSettings(&settings.Backup); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		return errors.New("WebServer port is required when enabled")
	}
	return nil
}

// validateSecuritySettings validates the security-specific settings
func validateSecuritySettings(settings *Security) error {
	// Authentication providers form redirect URLs from the host
	if (settings.BasicAuth.Enabled || settings.OrcidAuth.Enabled) &&
		settings.Host == "" && settings.BaseURL == "" {
		return fmt.Errorf("security.host must be set when using authentication providers")
	}

	if settings.OrcidAuth.Enabled {
		if settings.OrcidAuth.ClientID == "" || settings.OrcidAuth.ClientSecret == "" {
			return fmt.Errorf("ORCID client id and secret are required when ORCID auth is enabled")
		}
	}

	if settings.AllowSubnetBypass.Enabled {
		subnets := strings.Split(settings.AllowSubnetBypass.Subnet, ",")
		for _, subnet := range subnets {
			_, _, err := net.ParseCIDR(strings.TrimSpace(subnet))
			if err != nil {
				return fmt.Errorf("invalid subnet format: %w", err)
			}
		}
	}

	return nil
}

// validateOutputSettings checks that exactly the configured store backends make sense
func validateOutputSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("at least one database output (sqlite or mysql) must be enabled")
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.New("sqlite output requires a database path")
	}

	if settings.Output.MySQL.Enabled {
		mysql := &settings.Output.MySQL
		if mysql.Host == "" || mysql.Port == "" || mysql.Database == "" || mysql.Username == "" {
			return errors.New("mysql output requires host, port, database and username")
		}
	}

	return nil
}

// validateMediaSettings validates the media tree settings
func validateMediaSettings(settings *MediaSettings) error {
	if settings.BasePath == "" {
		return errors.New("media base path must not be empty")
	}

	if settings.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("media max upload size must be positive, got %d", settings.MaxUploadSizeMB)
	}

	for _, ext := range settings.AllowedTypes {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("media allowed type %q must start with a dot", ext)
		}
	}

	if settings.Spectrogram.Enabled {
		if settings.Spectrogram.Width < 64 || settings.Spectrogram.Width > 8192 {
			return fmt.Errorf("spectrogram width must be between 64 and 8192 pixels, got %d", settings.Spectrogram.Width)
		}
	}

	return nil
}

// validateZenodoSettings validates the deposition client settings
func validateZenodoSettings(settings *ZenodoSettings) error {
	if !settings.Enabled {
		return nil
	}

	if settings.AccessToken == "" {
		return errors.New("zenodo access token is required when deposition is enabled")
	}

	parsed, err := url.Parse(settings.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid zenodo API URL: %s", settings.APIURL)
	}

	return nil
}

// validateMailSettings validates the mail settings
func validateMailSettings(settings *MailSettings) error {
	if !settings.Enabled {
		return nil
	}

	if settings.SMTPURL == "" {
		return errors.New("mail smtp url is required when mail is enabled")
	}
	if !strings.HasPrefix(settings.SMTPURL, "smtp://") && !strings.HasPrefix(settings.SMTPURL, "smtps://") {
		return fmt.Errorf("mail smtp url must use the smtp:// or smtps:// scheme")
	}
	if settings.From == "" {
		return errors.New("mail sender address is required when mail is enabled")
	}

	return nil
}

// validateBackupSettings validates the backup configuration
func validateBackupSettings(settings *BackupConfig) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Retention.MaxAge != "" {
		if _, err := ParseRetentionPeriod(settings.Retention.MaxAge); err != nil {
			return fmt.Errorf("invalid backup retention maxage: %w", err)
		}
	}

	if settings.Retention.MinBackups > settings.Retention.MaxBackups && settings.Retention.MaxBackups > 0 {
		return fmt.Errorf("backup retention minbackups (%d) must not exceed maxbackups (%d)",
			settings.Retention.MinBackups, settings.Retention.MaxBackups)
	}

	for i := range settings.Targets {
		target := &settings.Targets[i]
		switch target.Type {
		case "local", "ftp", "sftp":
		default:
			return fmt.Errorf("unknown backup target type: %s", target.Type)
		}
	}

	return nil
}
