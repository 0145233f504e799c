// config.go: settings for the mouseTube catalog service, loaded with viper and
// saved back as YAML.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// MySQLSettings holds the connection settings for the MariaDB/MySQL backend.
type MySQLSettings struct {
	Enabled  bool   // true to store the catalog in MySQL/MariaDB
	Username string // username for mysql database
	Password string // password for mysql database
	Database string // database name for mysql database
	Host     string // host for mysql database
	Port     string // port for mysql database
}

// SQLiteSettings holds the settings for the SQLite backend.
type SQLiteSettings struct {
	Enabled bool   // true to store the catalog in SQLite
	Path    string // path to sqlite database file
}

// SpectrogramSettings controls spectrogram rendering of uploaded recordings.
type SpectrogramSettings struct {
	Enabled    bool   // true to render a spectrogram during ingest
	Width      int    // spectrogram image width in pixels
	Style      string // raw or with axes/legends
	FfmpegPath string `yaml:"-"` // path to ffmpeg, runtime value
	SoxPath    string `yaml:"-"` // path to sox, runtime value
}

// MediaSettings describes the on-disk media tree for uploaded recordings.
type MediaSettings struct {
	BasePath        string               // root of the media tree
	TempPath        string               // staging area for ingest and deposition
	MaxUploadSizeMB int64                // maximum accepted upload size in megabytes
	AllowedTypes    []string             // accepted audio file extensions
	Spectrogram     SpectrogramSettings  // spectrogram rendering settings
	Cleanup         MediaCleanupSettings // temp staging janitor settings
}

// MediaCleanupSettings controls the janitor that removes aged temp staging
// files and orphaned spectrogram images.
type MediaCleanupSettings struct {
	Enabled  bool   // true to run the cleanup janitor
	MaxAge   string // retention for temp staging files ("24h", "7d", "1w")
	Interval string // time between cleanup runs
	Debug    bool   // true to enable debug mode
}

// ZenodoSettings configures the archive deposition client.
type ZenodoSettings struct {
	Enabled     bool   // true to publish recording sessions to Zenodo
	Debug       bool   // true to enable debug mode
	APIURL      string // Zenodo API base URL
	AccessToken string // personal access token for the deposition API
	Community   string // community identifier attached to depositions
}

// MailSettings configures transactional email delivery.
type MailSettings struct {
	Enabled         bool   // true to send account emails
	Debug           bool   // true to enable debug mode
	SMTPURL         string // shoutrrr smtp:// service URL
	From            string // sender address
	SiteName        string // site name used in subjects and bodies
	FrontendBaseURL string // base URL of the web front end for links in emails
	AdminEmail      string // recipient for admin notices, empty to disable
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT
	Debug    bool   // true to enable debug mode
	Broker   string // MQTT broker (tcp://host:port)
	Topic    string // base MQTT topic
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to publish retained messages
}

// TelemetrySettings exposes the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to serve Prometheus metrics
	Listen  string // IP address and port to listen on (e.g. 0.0.0.0:8090)
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting
	DSN     string // Sentry project DSN
}

// BasicAuth holds settings for the password authentication
type BasicAuth struct {
	Enabled        bool          // true to enable password authentication
	Password       string        // password for admin interface
	ClientID       string        // client id for OAuth2
	ClientSecret   string        // client secret for OAuth2
	RedirectURI    string        // redirect uri for OAuth2
	AuthCodeExp    time.Duration // duration for authorization code
	AccessTokenExp time.Duration // duration for access token
}

// SocialProvider holds settings for an OAuth2/OIDC identity provider
type SocialProvider struct {
	Enabled      bool   // true to enable social provider
	ClientID     string // client id for OAuth2
	ClientSecret string // client secret for OAuth2
	RedirectURI  string // redirect uri for OAuth2
	UserId       string // valid user id for OAuth2
}

// AllowSubnetBypass disables authentication for clients inside trusted subnets.
type AllowSubnetBypass struct {
	Enabled bool   // true to enable subnet bypass
	Subnet  string // comma-separated CIDR list that bypasses authentication
}

// Security handles all security-related settings, including authentication,
// TLS, and access control.
type Security struct {
	Debug bool // true to enable debug mode

	// Host is the primary hostname used for TLS certificates
	// and OAuth redirect URLs. Required when using AutoTLS or
	// authentication providers. Used to form the redirect URIs.
	Host string

	// BaseURL overrides the URL derived from Host, for reverse proxy setups
	// where the externally visible scheme or port differs.
	BaseURL string

	// AutoTLS enables automatic TLS certificate management using
	// Let's Encrypt. Requires Host to be set and port 80/443 access.
	AutoTLS bool

	RedirectToHTTPS   bool              // true to redirect to HTTPS
	AllowSubnetBypass AllowSubnetBypass // subnet bypass configuration
	BasicAuth         BasicAuth         // password authentication configuration
	OrcidAuth         SocialProvider    // ORCID OpenID Connect configuration
	SessionSecret     string            // secret for session cookie
	SessionDuration   time.Duration     // duration of authenticated sessions
	AccessTokenExp    time.Duration     // lifetime of issued API access tokens
}

// Settings contains all configuration options for the mouseTube catalog service.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this mouseTube node, used in notifications and MQTT payloads
		Log  LogConfig // logging configuration
	}

	WebServer struct {
		Debug   bool      // true to enable debug mode
		Enabled bool      // true to enable web server
		Port    string    // port for web server
		Log     LogConfig // logging configuration for web server
	}

	Security Security // security configuration

	Output struct {
		SQLite SQLiteSettings // SQLite backend settings
		MySQL  MySQLSettings  // MySQL/MariaDB backend settings
	}

	Media MediaSettings // media tree settings

	Zenodo ZenodoSettings // archive deposition settings

	Mail MailSettings // transactional mail settings

	MQTT MQTTSettings // MQTT integration settings

	Telemetry TelemetrySettings // Prometheus metrics endpoint settings

	Backup BackupConfig // backup configuration

	Sentry SentrySettings // error telemetry settings
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly (as a string: "Sunday", "Monday", etc.)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// BackupRetention defines backup retention policy
type BackupRetention struct {
	MaxAge     string `yaml:"maxage"`     // Duration string like "30d", "6m", "1y"
	MaxBackups int    `yaml:"maxbackups"` // Maximum number of backups to keep
	MinBackups int    `yaml:"minbackups"` // Minimum number of backups to keep regardless of age
}

// BackupTarget defines settings for a backup target
type BackupTarget struct {
	Type     string                 `yaml:"type"`     // "local", "ftp", "sftp"
	Enabled  bool                   `yaml:"enabled"`  // true to enable this target
	Settings map[string]interface{} `yaml:"settings"` // Target-specific settings
}

// BackupConfig defines the configuration for backups
type BackupConfig struct {
	Enabled   bool            `yaml:"enabled"`   // true to enable backup functionality
	Debug     bool            `yaml:"debug"`     // true to enable debug logging
	Schedule  string          `yaml:"schedule"`  // Daily backup time as HH:MM
	Retention BackupRetention `yaml:"retention"` // Backup retention settings
	Targets   []BackupTarget  `yaml:"targets"`   // List of backup targets
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Bind container environment variables, defined in env.go
	if err := bindEnvVars(); err != nil {
		return fmt.Errorf("error binding environment variables: %w", err)
	}

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// If the session secret is not set, generate a random one
	if viper.GetString("security.sessionsecret") == "" {
		viper.Set("security.sessionsecret", GenerateRandomSecret())
	}
	if viper.GetString("security.basicauth.clientsecret") == "" {
		viper.Set("security.basicauth.clientsecret", GenerateRandomSecret())
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so the replace is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Rename can fail across filesystems, fall back to copy and delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for use as a client secret. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
