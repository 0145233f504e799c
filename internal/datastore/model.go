// model.go defines the catalog data model
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Recording status lifecycle. A recording enters the catalog as pending,
// moves through processing and metadata_extracted while the ingest
// pipeline works on it, and ends up published or error.
const (
	StatusPending           = "pending"
	StatusProcessing        = "processing"
	StatusMetadataExtracted = "metadata_extracted"
	StatusPublished         = "published"
	StatusError             = "error"
)

// Software roles as entered by contributors.
const (
	SoftwareTypeAcquisition = "acquisition"
	SoftwareTypeAnalysis    = "analysis"
	SoftwareTypeBoth        = "acquisition and analysis"
)

// Hardware roles as entered by contributors.
const (
	HardwareTypeSoundcard  = "soundcard"
	HardwareTypeMicrophone = "microphone"
	HardwareTypeSpeaker    = "speaker"
	HardwareTypeAmplifier  = "amplifier"
)

// Token purposes for account flows.
const (
	TokenPurposeActivation    = "activation"
	TokenPurposePasswordReset = "password_reset"
)

// MaxStatusDetailLen bounds the stored failure detail of a recording.
const MaxStatusDetailLen = 500

// JSONMap stores loose JSON metadata in a text column. Both database
// backends receive the serialized form, so no JSON column type is needed.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata json: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata json source type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// GormDataType tells the migrator to use a plain text column.
func (JSONMap) GormDataType() string {
	return "text"
}

// Audit carries the bookkeeping columns shared by catalog rows:
// creation and modification timestamps plus who entered the row.
type Audit struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"modified_at"`
	CreatedByID *uint     `gorm:"index" json:"created_by,omitempty"`
}

// User is a local account. Contributors authenticate with a username and
// password or through ORCID, accounts are inactive until the activation
// link from the registration email is followed.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:255;index" json:"email"`
	FirstName    string `gorm:"size:150" json:"first_name"`
	LastName     string `gorm:"size:150" json:"last_name"`
	PasswordHash string `gorm:"size:255" json:"-"`
	// LegacyPassword keeps the hash imported from the v0 site. Those
	// accounts must reset their password before the first login.
	LegacyPassword string       `gorm:"size:255" json:"-"`
	IsActive       bool         `gorm:"index" json:"is_active"`
	IsAdmin        bool         `json:"is_admin"`
	DateJoined     time.Time    `json:"date_joined"`
	LastLogin      *time.Time   `json:"last_login,omitempty"`
	Profile        *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// UserProfile holds the affiliation details shown next to published
// recordings and used as deposition creator metadata.
type UserProfile struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Description string `gorm:"type:text" json:"description"`
	Phone       string `gorm:"size:255" json:"phone"`
	Unit        string `gorm:"size:255" json:"unit"`
	Institution string `gorm:"size:255" json:"institution"`
	Address     string `gorm:"size:255" json:"address"`
	// CountryCode is an ISO 3166-1 alpha-2 code, empty when unknown
	CountryCode string `gorm:"size:2;index" json:"country"`
	ORCID       string `gorm:"column:orcid;size:255;index" json:"orcid"`
	Audit
}

// Contact is a loose person record attached to software entries, not
// necessarily a registered account.
type Contact struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:255" json:"firstname"`
	LastName  string `gorm:"size:255" json:"lastname"`
	Email     string `gorm:"size:255" json:"email"`
	// UserID links the contact to a registered account when one exists
	UserID *uint `gorm:"index" json:"user_id,omitempty"`
	Audit
}

// Repository is an external archive recordings are deposited to, such as
// Zenodo.
type Repository struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	LogoPath    string `gorm:"size:255" json:"logo,omitempty"`
	URL         string `gorm:"size:255" json:"url"`
	APIURL      string `gorm:"size:255" json:"url_api"`
	// CountryCode is the hosting country, informational only
	CountryCode string `gorm:"size:2" json:"area"`
	Audit
}

// Reference is a literature or web reference attached to catalog entries.
type Reference struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	URL         string `gorm:"size:255" json:"url"`
	DOI         string `gorm:"column:doi;size:255" json:"doi"`
	Audit
}

// Software is an acquisition or analysis program used to produce or
// process recordings.
type Software struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	Name                  string      `gorm:"size:255;not null" json:"name"`
	Type                  string      `gorm:"size:64;index;default:acquisition" json:"type"`
	MadeBy                string      `gorm:"type:text" json:"made_by"`
	Description           string      `gorm:"type:text" json:"description"`
	TechnicalRequirements string      `gorm:"type:text" json:"technical_requirements"`
	References            []Reference `gorm:"many2many:software_references" json:"references,omitempty"`
	Contacts              []Contact   `gorm:"many2many:software_contacts" json:"contacts,omitempty"`
	Audit
}

// TableName avoids the "softwares" pluralization.
func (Software) TableName() string { return "software" }

// Hardware is a recording chain component.
type Hardware struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	Type        string      `gorm:"size:64;index" json:"type"`
	MadeBy      string      `gorm:"type:text" json:"made_by"`
	Description string      `gorm:"type:text" json:"description"`
	References  []Reference `gorm:"many2many:hardware_references" json:"references,omitempty"`
	Audit
}

// TableName avoids the "hardwares" pluralization.
func (Hardware) TableName() string { return "hardware" }

// Species is a recorded species, e.g. Mus musculus.
type Species struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Audit
}

// Strain is a genetic line within a species.
type Strain struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"size:255;uniqueIndex;not null" json:"name"`
	SpeciesID    *uint       `gorm:"index" json:"species_id,omitempty"`
	Species      *Species    `json:"species,omitempty"`
	Background   string      `gorm:"size:255" json:"background"`
	Bibliography string      `gorm:"type:text" json:"bibliography"`
	References   []Reference `gorm:"many2many:strain_references" json:"references,omitempty"`
	Audit
}

// Subject is an individual animal appearing in recording sessions.
type Subject struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Name      string  `gorm:"size:255;not null;index" json:"name"`
	StrainID  *uint   `gorm:"index" json:"strain_id,omitempty"`
	Strain    *Strain `json:"strain,omitempty"`
	Sex       string  `gorm:"size:16" json:"sex"`
	Genotype  string  `gorm:"size:255" json:"genotype"`
	Treatment string  `gorm:"size:255" json:"treatment"`
	Audit
}

// MetadataCategory groups metadata fields. Categories may nest, the
// Categories field holds the parent categories of this one.
type MetadataCategory struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Name        string              `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string              `gorm:"type:text" json:"description"`
	Categories  []*MetadataCategory `gorm:"many2many:metadata_category_links;joinForeignKey:ChildID;joinReferences:ParentID" json:"categories,omitempty"`
}

// MetadataField is a named field within one or more categories.
type MetadataField struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Name        string             `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string             `gorm:"type:text" json:"description"`
	Categories  []MetadataCategory `gorm:"many2many:metadata_field_categories" json:"categories,omitempty"`
}

// Metadata is a controlled vocabulary value attached to protocols,
// recordings and datasets.
type Metadata struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	Name   string          `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Fields []MetadataField `gorm:"many2many:metadata_field_links" json:"fields,omitempty"`
}

// TableName avoids the "metadatas" pluralization.
func (Metadata) TableName() string { return "metadata" }

// Protocol describes an experimental procedure.
type Protocol struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Metadata    []Metadata  `gorm:"many2many:protocol_metadata" json:"metadata,omitempty"`
	References  []Reference `gorm:"many2many:protocol_references" json:"references,omitempty"`
	Audit
}

// RecordingSession is one recording event, usually producing several
// files, following a protocol.
type RecordingSession struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;index" json:"name"`
	Date        time.Time `gorm:"index" json:"date"`
	Duration    int       `json:"duration"`
	Description string    `gorm:"type:text" json:"description"`
	ProtocolID  *uint     `gorm:"index" json:"protocol_id,omitempty"`
	Protocol    *Protocol `json:"protocol,omitempty"`
	Audit
}

// SubjectSession links a subject to a recording session. Kept as an
// explicit model because the join rows are exposed through the API.
type SubjectSession struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	SubjectID          uint              `gorm:"not null;uniqueIndex:idx_subject_session" json:"subject_id"`
	RecordingSessionID uint              `gorm:"not null;index;uniqueIndex:idx_subject_session" json:"recording_session_id"`
	Subject            *Subject          `json:"subject,omitempty"`
	RecordingSession   *RecordingSession `json:"recording_session,omitempty"`
	Audit
}

// Recording is a catalogued vocalization file. Link points at the
// retrievable copy, either a /media/ path served by this instance or an
// external archive URL once the file is deposited. ClipPath is the path
// of an uploaded clip inside the media store, relative to its root.
type Recording struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:255;not null;index" json:"name"`
	FileNumber *int   `json:"file_number,omitempty"`
	Link       string `gorm:"size:255;index" json:"link"`
	DOI        string `gorm:"column:doi;size:255;index" json:"doi"`
	ClipPath   string `gorm:"size:512" json:"-"`
	Format     string `gorm:"size:8" json:"format"`
	Channels   int    `gorm:"default:1" json:"number_of_channels"`
	SizeBytes  int64  `json:"size_bytes"`
	// SamplingRate in Hz, Duration in whole seconds
	SamplingRate    int    `gorm:"index" json:"sampling_rate"`
	Duration        int    `json:"duration"`
	BitDepth        int    `json:"bit_depth"`
	SpectrogramPath string `gorm:"size:512" json:"-"`
	Status          string `gorm:"size:32;index;default:pending" json:"status"`
	StatusDetail    string `gorm:"size:500" json:"status_detail,omitempty"`
	// ExternalID is the deposition id in the external repository,
	// ExternalURL the landing page of the published record
	ExternalID            string            `gorm:"size:64;index" json:"external_id,omitempty"`
	ExternalURL           string            `gorm:"size:255" json:"external_url,omitempty"`
	RepositoryID          *uint             `gorm:"index" json:"repository_id,omitempty"`
	Repository            *Repository       `json:"repository,omitempty"`
	RecordingSessionID    *uint             `gorm:"index" json:"recording_session_id,omitempty"`
	RecordingSession      *RecordingSession `json:"recording_session,omitempty"`
	SubjectID             *uint             `gorm:"index" json:"subject_id,omitempty"`
	Subject               *Subject          `json:"subject,omitempty"`
	SpeciesID             *uint             `gorm:"index" json:"species_id,omitempty"`
	Species               *Species          `json:"species,omitempty"`
	AcquisitionSoftwareID *uint             `gorm:"index" json:"acquisition_software_id,omitempty"`
	AcquisitionSoftware   *Software         `json:"acquisition_software,omitempty"`
	AcquisitionHardwareID *uint             `gorm:"index" json:"acquisition_hardware_id,omitempty"`
	AcquisitionHardware   *Hardware         `json:"acquisition_hardware,omitempty"`
	Microphones           []Hardware        `gorm:"many2many:recording_microphones" json:"microphones,omitempty"`
	MetadataJSON          JSONMap           `gorm:"type:text" json:"metadata_json,omitempty"`
	MetadataTags          []Metadata        `gorm:"many2many:recording_metadata" json:"metadata,omitempty"`
	Audit
}

// Dataset bundles published recordings under one citable entry.
type Dataset struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"size:255;not null" json:"name"`
	Link         string      `gorm:"size:255" json:"link"`
	DOI          string      `gorm:"column:doi;size:255" json:"doi"`
	Recordings   []Recording `gorm:"many2many:dataset_recordings" json:"recordings,omitempty"`
	MetadataJSON JSONMap     `gorm:"type:text" json:"metadata_json,omitempty"`
	MetadataTags []Metadata  `gorm:"many2many:dataset_metadata" json:"metadata,omitempty"`
	Audit
}

// PageView counts visits per path and day for the lightweight usage
// statistics shown to administrators.
type PageView struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Day is the visit date in YYYY-MM-DD form
	Day   string `gorm:"size:10;not null;uniqueIndex:idx_pageview_path_day" json:"day"`
	Path  string `gorm:"size:255;not null;uniqueIndex:idx_pageview_path_day" json:"path"`
	Count int64  `gorm:"not null;default:0" json:"count"`
}

// UserToken is a single-use token for account activation and password
// reset links. Only the SHA-256 of the token is stored.
type UserToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Purpose   string    `gorm:"size:32;index;not null"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

// TruncateStatusDetail bounds a failure message to what the status_detail
// column can hold.
func TruncateStatusDetail(detail string) string {
	if len(detail) > MaxStatusDetailLen {
		return detail[:MaxStatusDetailLen]
	}
	return detail
}
