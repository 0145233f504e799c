// errors.go provides sentinel errors and error helpers for database operations
package datastore

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/mousetube/mousetube-go/internal/errors"
	"gorm.io/gorm"
)

// Sentinel errors returned when a looked-up row does not exist. Handlers
// map these to 404 responses without inspecting GORM internals.
var (
	ErrSpeciesNotFound    = errors.NewStd("species not found")
	ErrStrainNotFound     = errors.NewStd("strain not found")
	ErrSoftwareNotFound   = errors.NewStd("software not found")
	ErrHardwareNotFound   = errors.NewStd("hardware not found")
	ErrReferenceNotFound  = errors.NewStd("reference not found")
	ErrRepositoryNotFound = errors.NewStd("repository not found")
	ErrContactNotFound    = errors.NewStd("contact not found")
	ErrProtocolNotFound   = errors.NewStd("protocol not found")
	ErrMetadataNotFound   = errors.NewStd("metadata entry not found")
	ErrSubjectNotFound    = errors.NewStd("subject not found")
	ErrSessionNotFound    = errors.NewStd("recording session not found")
	ErrLinkNotFound       = errors.NewStd("subject session link not found")
	ErrRecordingNotFound  = errors.NewStd("recording not found")
	ErrDatasetNotFound    = errors.NewStd("dataset not found")
	ErrUserNotFound       = errors.NewStd("user not found")
	ErrTokenInvalid       = errors.NewStd("token invalid or expired")

	// ErrDuplicateKey signals a unique constraint violation, e.g. a
	// species name that is already catalogued.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// dbError creates a categorized database error with context.
func dbError(err error, operation string, contextPairs ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i+1 < len(contextPairs); i += 2 {
		if key, ok := contextPairs[i].(string); ok {
			builder = builder.Context(key, contextPairs[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error for rejected input values.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// mapLookupError translates gorm.ErrRecordNotFound into the entity
// sentinel and wraps anything else as a database error.
func mapLookupError(err error, sentinel error, operation string, contextPairs ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return dbError(err, operation, contextPairs...)
}

// mapWriteError wraps write failures, translating backend duplicate-key
// errors into ErrDuplicateKey so callers can answer 409.
func mapWriteError(err error, operation string, contextPairs ...any) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	return dbError(err, operation, contextPairs...)
}

const mysqlErrDuplicateEntry = 1062

// isDuplicateKeyError detects unique constraint violations across both
// backends. GORM's error translation covers most paths, the driver
// checks catch errors surfacing outside GORM's create/update hooks.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
