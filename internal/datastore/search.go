// search.go implements the recording search behind POST /search.
package datastore

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// RecordingSearchFilters defines the filter parameters for recording
// searches.
type RecordingSearchFilters struct {
	// Free text matched against recording, species and strain names
	Query string

	// Entity filters
	SpeciesID  *uint
	StrainID   *uint
	SoftwareID *uint
	SessionID  *uint

	// Subject filters
	Sex      string
	Genotype string

	// Sampling rate bounds in Hz, zero means unbounded
	SamplingRateMin int
	SamplingRateMax int

	// Session date range, inclusive
	DateStart *time.Time
	DateEnd   *time.Time

	// Lifecycle filter
	Status string

	// Pagination
	Limit  int
	Offset int

	// Sort order
	SortBy        string
	SortAscending bool
}

// searchSortColumns whitelists sortable columns, table-qualified so the
// joins cannot make them ambiguous.
var searchSortColumns = map[string]string{
	"created_at":    "recordings.created_at",
	"name":          "recordings.name",
	"sampling_rate": "recordings.sampling_rate",
	"duration":      "recordings.duration",
}

// foldForSearch lowercases the query and strips combining marks so
// "Müller" matches rows stored as "muller".
func foldForSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// SearchRecordings finds recordings matching the given filters and
// returns the page plus the total match count. An empty filter set
// returns the newest recordings first.
func (ds *DataStore) SearchRecordings(filters *RecordingSearchFilters) ([]Recording, int64, error) {
	if filters == nil {
		filters = &RecordingSearchFilters{}
	}
	if filters.Status != "" && !ValidStatus(filters.Status) {
		return nil, 0, validationError("unknown recording status", "status", filters.Status)
	}

	query := ds.DB.Model(&Recording{})

	// Joins are applied at most once even when several filters need the
	// same table. All joins are many-to-one from recordings, so they
	// cannot multiply result rows.
	freeText := strings.TrimSpace(filters.Query)
	joinSpecies := freeText != ""
	joinSubjects := freeText != "" || filters.StrainID != nil || filters.Sex != "" || filters.Genotype != ""
	joinStrains := freeText != "" || filters.StrainID != nil
	joinSessions := filters.DateStart != nil || filters.DateEnd != nil

	if joinSpecies {
		query = query.Joins("LEFT JOIN species ON species.id = recordings.species_id")
	}
	if joinSubjects {
		query = query.Joins("LEFT JOIN subjects ON subjects.id = recordings.subject_id")
	}
	if joinStrains {
		query = query.Joins("LEFT JOIN strains ON strains.id = subjects.strain_id")
	}
	if joinSessions {
		query = query.Joins("LEFT JOIN recording_sessions rs ON rs.id = recordings.recording_session_id")
	}

	if freeText != "" {
		pattern := "%" + foldForSearch(freeText) + "%"
		query = query.Where(
			"lower(recordings.name) LIKE ? OR lower(species.name) LIKE ? OR lower(strains.name) LIKE ?",
			pattern, pattern, pattern)
	}
	if filters.SpeciesID != nil {
		query = query.Where("recordings.species_id = ?", *filters.SpeciesID)
	}
	if filters.StrainID != nil {
		query = query.Where("subjects.strain_id = ?", *filters.StrainID)
	}
	if filters.SoftwareID != nil {
		query = query.Where("recordings.acquisition_software_id = ?", *filters.SoftwareID)
	}
	if filters.SessionID != nil {
		query = query.Where("recordings.recording_session_id = ?", *filters.SessionID)
	}
	if filters.Sex != "" {
		query = query.Where("subjects.sex = ?", filters.Sex)
	}
	if filters.Genotype != "" {
		query = query.Where("subjects.genotype = ?", filters.Genotype)
	}
	if filters.SamplingRateMin > 0 {
		query = query.Where("recordings.sampling_rate >= ?", filters.SamplingRateMin)
	}
	if filters.SamplingRateMax > 0 {
		query = query.Where("recordings.sampling_rate <= ?", filters.SamplingRateMax)
	}
	if filters.DateStart != nil {
		query = query.Where("rs.date >= ?", *filters.DateStart)
	}
	if filters.DateEnd != nil {
		query = query.Where("rs.date <= ?", *filters.DateEnd)
	}
	if filters.Status != "" {
		query = query.Where("recordings.status = ?", filters.Status)
	}

	// Count before ordering and pagination
	var total int64
	countQuery := query.Session(&gorm.Session{})
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, dbError(err, "search_recordings_count")
	}

	sortColumn, ok := searchSortColumns[filters.SortBy]
	if !ok {
		sortColumn = searchSortColumns["created_at"]
	}
	direction := "DESC"
	if filters.SortAscending {
		direction = "ASC"
	}
	query = query.Order(sortColumn + " " + direction + ", recordings.id " + direction)

	limit := clampListLimit(filters.Limit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	var recordings []Recording
	err := query.
		Preload("Species").
		Preload("RecordingSession").
		Preload("Repository").
		Limit(limit).
		Offset(offset).
		Find(&recordings).Error
	if err != nil {
		return nil, 0, dbError(err, "search_recordings", "limit", limit, "offset", offset)
	}
	return recordings, total, nil
}
