// internal/datastore/analytics.go
package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogTotals contains the headline numbers for the catalog overview.
type CatalogTotals struct {
	Recordings          int64 `json:"recordings"`
	PublishedRecordings int64 `json:"published_recordings"`
	RecordingSessions   int64 `json:"recording_sessions"`
	Subjects            int64 `json:"subjects"`
	Strains             int64 `json:"strains"`
	Species             int64 `json:"species"`
	Protocols           int64 `json:"protocols"`
	Users               int64 `json:"users"`
}

// SpeciesRecordingCount represents recording counts per species.
type SpeciesRecordingCount struct {
	SpeciesID   uint   `json:"species_id"`
	SpeciesName string `json:"species_name"`
	Count       int64  `json:"count"`
}

const pageViewDayFormat = "2006-01-02"

// TrackPageView increments the visit counter for a path on a day,
// creating the row on first visit. The upsert keeps concurrent visits
// from losing counts.
func (ds *DataStore) TrackPageView(path, day string) error {
	if path == "" {
		return validationError("page path is required", "path", path)
	}
	if _, err := time.Parse(pageViewDayFormat, day); err != nil {
		return validationError("day must be YYYY-MM-DD", "day", day)
	}

	view := PageView{Day: day, Path: path, Count: 1}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}, {Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("count + 1")}),
	}).Create(&view).Error
	if err != nil {
		return dbError(err, "track_page_view", "path", path, "day", day)
	}
	return nil
}

// GetPageViews returns the accumulated view count for a path, or across
// all paths when path is empty.
func (ds *DataStore) GetPageViews(path string) (int64, error) {
	query := ds.DB.Model(&PageView{}).Select("COALESCE(SUM(count), 0)")
	if path != "" {
		query = query.Where("path = ?", path)
	}
	var total int64
	if err := query.Scan(&total).Error; err != nil {
		return 0, dbError(err, "get_page_views", "path", path)
	}
	return total, nil
}

// GetCatalogTotals counts the catalogued entities for the overview
// endpoint.
func (ds *DataStore) GetCatalogTotals() (CatalogTotals, error) {
	var totals CatalogTotals
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{ds.DB.Model(&Recording{}), &totals.Recordings},
		{ds.DB.Model(&Recording{}).Where("status = ?", StatusPublished), &totals.PublishedRecordings},
		{ds.DB.Model(&RecordingSession{}), &totals.RecordingSessions},
		{ds.DB.Model(&Subject{}), &totals.Subjects},
		{ds.DB.Model(&Strain{}), &totals.Strains},
		{ds.DB.Model(&Species{}), &totals.Species},
		{ds.DB.Model(&Protocol{}), &totals.Protocols},
		{ds.DB.Model(&User{}), &totals.Users},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return CatalogTotals{}, dbError(err, "get_catalog_totals")
		}
	}
	return totals, nil
}

// GetRecordingCountsBySpecies retrieves recording counts grouped by
// species, most recorded first.
func (ds *DataStore) GetRecordingCountsBySpecies() ([]SpeciesRecordingCount, error) {
	var counts []SpeciesRecordingCount
	err := ds.DB.Table("recordings").
		Select("species.id AS species_id, species.name AS species_name, COUNT(recordings.id) AS count").
		Joins("JOIN species ON species.id = recordings.species_id").
		Group("species.id, species.name").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, dbError(err, "get_recording_counts_by_species")
	}
	return counts, nil
}

// GetRecentRecordings retrieves the most recently added recordings.
func (ds *DataStore) GetRecentRecordings(limit int) ([]Recording, error) {
	limit = clampListLimit(limit)
	var recordings []Recording
	err := ds.DB.
		Preload("Species").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recordings).Error
	if err != nil {
		return nil, dbError(err, "get_recent_recordings", "limit", limit)
	}
	return recordings, nil
}
