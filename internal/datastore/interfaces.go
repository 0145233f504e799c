// interfaces.go defines the interface for catalog database operations
package datastore

import (
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines
// the catalog operations. Both the MySQL and the SQLite store implement
// it through the shared DataStore embedding.
type Interface interface {
	Open() error
	Close() error

	// catalog vocabulary
	SaveSpecies(species *Species) error
	GetSpecies(id uint) (Species, error)
	GetSpeciesByName(name string) (Species, error)
	ListSpecies() ([]Species, error)
	DeleteSpecies(id uint) error

	SaveStrain(strain *Strain) error
	GetStrain(id uint) (Strain, error)
	GetStrainByName(name string) (Strain, error)
	ListStrains() ([]Strain, error)
	ListStrainsBySpecies(speciesID uint) ([]Strain, error)
	DeleteStrain(id uint) error

	SaveSoftware(software *Software) error
	GetSoftware(id uint) (Software, error)
	ListSoftware() ([]Software, error)
	ListSoftwareByType(softwareType string) ([]Software, error)
	DeleteSoftware(id uint) error

	SaveHardware(hardware *Hardware) error
	GetHardware(id uint) (Hardware, error)
	ListHardware() ([]Hardware, error)
	ListHardwareByType(hardwareType string) ([]Hardware, error)
	DeleteHardware(id uint) error

	SaveReference(reference *Reference) error
	GetReference(id uint) (Reference, error)
	ListReferences() ([]Reference, error)
	DeleteReference(id uint) error

	SaveRepository(repository *Repository) error
	GetRepository(id uint) (Repository, error)
	GetOrCreateRepository(name string) (Repository, error)
	ListRepositories() ([]Repository, error)
	DeleteRepository(id uint) error

	SaveContact(contact *Contact) error
	GetContact(id uint) (Contact, error)
	ListContacts() ([]Contact, error)
	DeleteContact(id uint) error

	SaveProtocol(protocol *Protocol) error
	GetProtocol(id uint) (Protocol, error)
	ListProtocols() ([]Protocol, error)
	DeleteProtocol(id uint) error

	// metadata vocabulary
	SaveMetadataCategory(category *MetadataCategory) error
	ListMetadataCategories() ([]MetadataCategory, error)
	SaveMetadataField(field *MetadataField) error
	ListMetadataFields() ([]MetadataField, error)
	SaveMetadata(metadata *Metadata) error
	GetMetadata(id uint) (Metadata, error)
	GetMetadataByName(name string) (Metadata, error)
	ListMetadata() ([]Metadata, error)
	ListMetadataForCategory(categoryName string) ([]Metadata, error)
	DeleteMetadata(id uint) error

	// subjects and sessions
	SaveSubject(subject *Subject) error
	GetSubject(id uint) (Subject, error)
	ListSubjects() ([]Subject, error)
	DeleteSubject(id uint) error

	SaveRecordingSession(session *RecordingSession) error
	GetRecordingSession(id uint) (RecordingSession, error)
	GetRecordingSessionByName(name string) (RecordingSession, error)
	ListRecordingSessions() ([]RecordingSession, error)
	DeleteRecordingSession(id uint) error

	LinkSubjectToSession(subjectID, sessionID uint) error
	SubjectsForSession(sessionID uint) ([]Subject, error)
	ListSubjectSessions() ([]SubjectSession, error)
	DeleteSubjectSession(id uint) error

	// recordings
	SaveRecording(recording *Recording) error
	GetRecording(id uint) (Recording, error)
	ListRecordings(limit, offset int) ([]Recording, error)
	DeleteRecording(id uint) error
	RecordingsForSession(sessionID uint) ([]Recording, error)
	PublishableRecordingsForSession(sessionID uint) ([]Recording, error)
	UpdateRecordingStatus(id uint, status, detail string) error
	UpdateRecordingAudioInfo(id uint, info AudioInfoUpdate) error
	UpdateRecordingSpectrogram(id uint, spectrogramPath string) error
	UpdateRecordingDeposition(id, repositoryID uint, externalID string) error
	UpdateRecordingPublication(id uint, doi, link, externalURL string) error
	GetRecordingClipPath(id uint) (string, error)

	// datasets
	SaveDataset(dataset *Dataset) error
	GetDataset(id uint) (Dataset, error)
	ListDatasets() ([]Dataset, error)
	DeleteDataset(id uint) error
	AddRecordingsToDataset(datasetID uint, recordingIDs []uint) error

	// users
	SaveUser(user *User) error
	GetUser(id uint) (User, error)
	GetUserByUsername(username string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByORCID(orcid string) (User, error)
	ListUsers() ([]User, error)
	SaveUserProfile(profile *UserProfile) error
	SetUserActive(id uint, active bool) error
	SetUserPassword(id uint, passwordHash string) error
	TouchUserLogin(id uint, when time.Time) error
	CreateUserToken(token *UserToken) error
	ConsumeUserToken(tokenHash, purpose string) (UserToken, error)
	PurgeExpiredTokens() (int64, error)

	// search
	SearchRecordings(filters *RecordingSearchFilters) ([]Recording, int64, error)

	// analytics
	TrackPageView(path, day string) error
	GetPageViews(path string) (int64, error)
	GetCatalogTotals() (CatalogTotals, error)
	GetRecordingCountsBySpecies() ([]SpeciesRecordingCount, error)
	GetRecentRecordings(limit int) ([]Recording, error)
}

// AudioInfoUpdate carries the columns the ingest pipeline fills after
// reading an audio file header.
type AudioInfoUpdate struct {
	SamplingRate int
	Duration     int
	BitDepth     int
	Channels     int
	SizeBytes    int64
	Format       string
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *Metrics
}

// New creates a datastore for whichever backend the configuration
// enables. SQLite wins when both are enabled, matching the validation
// order.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SetMetrics attaches datastore metrics. Call before Open so the query
// logger can record durations from the first migration on.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metrics = m
}

// newGormConfig builds the GORM configuration shared by both backends.
// TranslateError turns driver duplicate-key errors into
// gorm.ErrDuplicatedKey.
func (ds *DataStore) newGormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         NewGormLogger(200*time.Millisecond, logger.Warn, ds.metrics),
		TranslateError: true,
	}
}

// performAutoMigration migrates the full catalog schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&User{},
		&UserProfile{},
		&UserToken{},
		&Contact{},
		&Repository{},
		&Reference{},
		&Software{},
		&Hardware{},
		&Species{},
		&Strain{},
		&Subject{},
		&MetadataCategory{},
		&MetadataField{},
		&Metadata{},
		&Protocol{},
		&RecordingSession{},
		&SubjectSession{},
		&Recording{},
		&Dataset{},
		&PageView{},
	); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		getLogger().Debug("Database schema migrated",
			"db_type", dbType,
			"connection", connectionInfo)
	}

	return nil
}

// sortAscendingString returns the SQL sort keyword for a direction flag.
func sortAscendingString(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}
