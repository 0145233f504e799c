package conf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSettings returns a settings struct that passes validation, for tests
// to break one field at a time.
func validSettings() *Settings {
	s := &Settings{}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8000"
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "mousetube.db"
	s.Media.BasePath = "media/"
	s.Media.MaxUploadSizeMB = 512
	s.Media.AllowedTypes = []string{".wav", ".flac"}
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateWebServerRequiresPort(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.WebServer.Port = ""

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")
}

func TestValidateRequiresDatabaseBackend(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Output.SQLite.Enabled = false
	s.Output.MySQL.Enabled = false

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one database output")
}

func TestValidateMySQLRequiresConnectionDetails(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Output.MySQL.Enabled = true
	s.Output.MySQL.Host = "db"
	s.Output.MySQL.Port = "3306"
	// database and username missing

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql output requires")
}

func TestValidateAuthProvidersNeedHost(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Security.OrcidAuth.Enabled = true
	s.Security.OrcidAuth.ClientID = "APP-XYZ"
	s.Security.OrcidAuth.ClientSecret = "secret"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security.host must be set")

	s.Security.Host = "mousetube.example.org"
	require.NoError(t, ValidateSettings(s))
}

func TestValidateSubnetBypassCIDR(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Security.AllowSubnetBypass.Enabled = true
	s.Security.AllowSubnetBypass.Subnet = "192.168.1.0/24, not-a-subnet"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid subnet format")
}

func TestValidateZenodoRequiresToken(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Zenodo.Enabled = true
	s.Zenodo.APIURL = DefaultZenodoAPIURL

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token is required")
}

func TestValidateMailSMTPScheme(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Mail.Enabled = true
	s.Mail.SMTPURL = "http://mail.example.org"
	s.Mail.From = "noreply@example.org"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp://")
}

func TestValidateBackupRetention(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Backup.Enabled = true
	s.Backup.Retention.MaxAge = "30x"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention")

	s.Backup.Retention.MaxAge = "30d"
	s.Backup.Retention.MinBackups = 10
	s.Backup.Retention.MaxBackups = 5
	err = ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "minbackups"))
}

func TestValidateUnknownBackupTarget(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Backup.Enabled = true
	s.Backup.Retention.MaxAge = "30d"
	s.Backup.Retention.MaxBackups = 10
	s.Backup.Retention.MinBackups = 1
	s.Backup.Targets = []BackupTarget{{Type: "gdrive", Enabled: true}}

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backup target type")
}
