// recordings.go implements persistence for subjects, recording
// sessions, recordings and datasets, including the column updates the
// ingest pipeline performs while a recording moves through its
// lifecycle.
package datastore

import (
	"gorm.io/gorm"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// clampListLimit bounds API page sizes.
func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// ValidStatus reports whether status is a known recording lifecycle
// value.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusMetadataExtracted, StatusPublished, StatusError:
		return true
	}
	return false
}

// --- subjects ---

func (ds *DataStore) SaveSubject(subject *Subject) error {
	if subject.Name == "" {
		return validationError("subject name is required", "name", subject.Name)
	}
	return mapWriteError(ds.DB.Omit("Strain").Save(subject).Error, "save_subject", "name", subject.Name)
}

func (ds *DataStore) GetSubject(id uint) (Subject, error) {
	var subject Subject
	err := ds.DB.Preload("Strain.Species").First(&subject, id).Error
	if err != nil {
		return Subject{}, mapLookupError(err, ErrSubjectNotFound, "get_subject", "id", id)
	}
	return subject, nil
}

func (ds *DataStore) ListSubjects() ([]Subject, error) {
	var subjects []Subject
	err := ds.DB.Preload("Strain.Species").Order("name ASC").Find(&subjects).Error
	if err != nil {
		return nil, dbError(err, "list_subjects")
	}
	return subjects, nil
}

func (ds *DataStore) DeleteSubject(id uint) error {
	return ds.deleteByID(&Subject{ID: id}, ErrSubjectNotFound, "delete_subject", id)
}

// --- recording sessions ---

func (ds *DataStore) SaveRecordingSession(session *RecordingSession) error {
	if session.Name == "" {
		return validationError("session name is required", "name", session.Name)
	}
	return mapWriteError(ds.DB.Omit("Protocol").Save(session).Error, "save_recording_session", "name", session.Name)
}

func (ds *DataStore) GetRecordingSession(id uint) (RecordingSession, error) {
	var session RecordingSession
	err := ds.DB.Preload("Protocol").First(&session, id).Error
	if err != nil {
		return RecordingSession{}, mapLookupError(err, ErrSessionNotFound, "get_recording_session", "id", id)
	}
	return session, nil
}

func (ds *DataStore) GetRecordingSessionByName(name string) (RecordingSession, error) {
	var session RecordingSession
	err := ds.DB.Preload("Protocol").Where("name = ?", name).First(&session).Error
	if err != nil {
		return RecordingSession{}, mapLookupError(err, ErrSessionNotFound, "get_recording_session_by_name", "name", name)
	}
	return session, nil
}

func (ds *DataStore) ListRecordingSessions() ([]RecordingSession, error) {
	var sessions []RecordingSession
	err := ds.DB.Preload("Protocol").Order("date DESC, id DESC").Find(&sessions).Error
	if err != nil {
		return nil, dbError(err, "list_recording_sessions")
	}
	return sessions, nil
}

func (ds *DataStore) DeleteRecordingSession(id uint) error {
	return ds.deleteByID(&RecordingSession{ID: id}, ErrSessionNotFound, "delete_recording_session", id)
}

// --- subject session links ---

// LinkSubjectToSession records that a subject took part in a session.
// Linking the same pair twice is a no-op.
func (ds *DataStore) LinkSubjectToSession(subjectID, sessionID uint) error {
	link := SubjectSession{SubjectID: subjectID, RecordingSessionID: sessionID}
	err := ds.DB.
		Where(SubjectSession{SubjectID: subjectID, RecordingSessionID: sessionID}).
		FirstOrCreate(&link).Error
	return mapWriteError(err, "link_subject_to_session", "subject_id", subjectID, "session_id", sessionID)
}

// SubjectsForSession returns the subjects recorded in a session with
// their strain and species resolved, ordered by id for stable output.
func (ds *DataStore) SubjectsForSession(sessionID uint) ([]Subject, error) {
	var subjects []Subject
	err := ds.DB.
		Preload("Strain.Species").
		Joins("JOIN subject_sessions ss ON ss.subject_id = subjects.id").
		Where("ss.recording_session_id = ?", sessionID).
		Order("subjects.id ASC").
		Find(&subjects).Error
	if err != nil {
		return nil, dbError(err, "subjects_for_session", "session_id", sessionID)
	}
	return subjects, nil
}

func (ds *DataStore) ListSubjectSessions() ([]SubjectSession, error) {
	var links []SubjectSession
	err := ds.DB.Preload("Subject").Preload("RecordingSession").Order("id ASC").Find(&links).Error
	if err != nil {
		return nil, dbError(err, "list_subject_sessions")
	}
	return links, nil
}

func (ds *DataStore) DeleteSubjectSession(id uint) error {
	return ds.deleteByID(&SubjectSession{ID: id}, ErrLinkNotFound, "delete_subject_session", id)
}

// --- recordings ---

func (ds *DataStore) SaveRecording(recording *Recording) error {
	if recording.Name == "" {
		return validationError("recording name is required", "name", recording.Name)
	}
	if recording.Status == "" {
		recording.Status = StatusPending
	}
	if !ValidStatus(recording.Status) {
		return validationError("unknown recording status", "status", recording.Status)
	}
	recording.StatusDetail = TruncateStatusDetail(recording.StatusDetail)

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(
			"Repository", "RecordingSession", "Subject", "Species",
			"AcquisitionSoftware", "AcquisitionHardware",
			"Microphones", "MetadataTags",
		).Save(recording).Error
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, recording, "Microphones", recording.Microphones); err != nil {
			return err
		}
		return replaceAssociation(tx, recording, "MetadataTags", recording.MetadataTags)
	})
	return mapWriteError(err, "save_recording", "name", recording.Name)
}

func (ds *DataStore) GetRecording(id uint) (Recording, error) {
	var recording Recording
	err := ds.DB.
		Preload("Repository").
		Preload("RecordingSession.Protocol").
		Preload("Subject.Strain.Species").
		Preload("Species").
		Preload("AcquisitionSoftware").
		Preload("AcquisitionHardware").
		Preload("Microphones").
		Preload("MetadataTags").
		First(&recording, id).Error
	if err != nil {
		return Recording{}, mapLookupError(err, ErrRecordingNotFound, "get_recording", "id", id)
	}
	return recording, nil
}

func (ds *DataStore) ListRecordings(limit, offset int) ([]Recording, error) {
	limit = clampListLimit(limit)
	if offset < 0 {
		offset = 0
	}
	var recordings []Recording
	err := ds.DB.
		Preload("Species").
		Preload("RecordingSession").
		Preload("Repository").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&recordings).Error
	if err != nil {
		return nil, dbError(err, "list_recordings", "limit", limit, "offset", offset)
	}
	return recordings, nil
}

func (ds *DataStore) DeleteRecording(id uint) error {
	return ds.deleteByID(&Recording{ID: id}, ErrRecordingNotFound, "delete_recording", id)
}

func (ds *DataStore) RecordingsForSession(sessionID uint) ([]Recording, error) {
	var recordings []Recording
	err := ds.DB.
		Where("recording_session_id = ?", sessionID).
		Order("id ASC").
		Find(&recordings).Error
	if err != nil {
		return nil, dbError(err, "recordings_for_session", "session_id", sessionID)
	}
	return recordings, nil
}

// PublishableRecordingsForSession returns session recordings that are
// far enough through the pipeline to deposit. Recordings still pending,
// in flight or failed are excluded, the caller adds the recording that
// triggered the deposition itself.
func (ds *DataStore) PublishableRecordingsForSession(sessionID uint) ([]Recording, error) {
	var recordings []Recording
	err := ds.DB.
		Where("recording_session_id = ?", sessionID).
		Where("status NOT IN ?", []string{StatusPending, StatusProcessing, StatusError}).
		Order("id ASC").
		Find(&recordings).Error
	if err != nil {
		return nil, dbError(err, "publishable_recordings_for_session", "session_id", sessionID)
	}
	return recordings, nil
}

// updateRecordingColumns applies a column update to one recording,
// verifying the row exists first so an unchanged update is not mistaken
// for a missing recording.
func (ds *DataStore) updateRecordingColumns(id uint, operation string, cols map[string]any) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var recording Recording
		if err := tx.Select("id").First(&recording, id).Error; err != nil {
			return err
		}
		return tx.Model(&recording).Updates(cols).Error
	})
	return mapLookupError(err, ErrRecordingNotFound, operation, "id", id)
}

func (ds *DataStore) UpdateRecordingStatus(id uint, status, detail string) error {
	if !ValidStatus(status) {
		return validationError("unknown recording status", "status", status)
	}
	return ds.updateRecordingColumns(id, "update_recording_status", map[string]any{
		"status":        status,
		"status_detail": TruncateStatusDetail(detail),
	})
}

func (ds *DataStore) UpdateRecordingAudioInfo(id uint, info AudioInfoUpdate) error {
	return ds.updateRecordingColumns(id, "update_recording_audio_info", map[string]any{
		"sampling_rate": info.SamplingRate,
		"duration":      info.Duration,
		"bit_depth":     info.BitDepth,
		"channels":      info.Channels,
		"size_bytes":    info.SizeBytes,
		"format":        info.Format,
	})
}

func (ds *DataStore) UpdateRecordingSpectrogram(id uint, spectrogramPath string) error {
	return ds.updateRecordingColumns(id, "update_recording_spectrogram", map[string]any{
		"spectrogram_path": spectrogramPath,
	})
}

func (ds *DataStore) UpdateRecordingDeposition(id, repositoryID uint, externalID string) error {
	return ds.updateRecordingColumns(id, "update_recording_deposition", map[string]any{
		"repository_id": repositoryID,
		"external_id":   externalID,
	})
}

func (ds *DataStore) UpdateRecordingPublication(id uint, doi, link, externalURL string) error {
	return ds.updateRecordingColumns(id, "update_recording_publication", map[string]any{
		"doi":          doi,
		"link":         link,
		"external_url": externalURL,
	})
}

func (ds *DataStore) GetRecordingClipPath(id uint) (string, error) {
	var recording Recording
	err := ds.DB.Select("id, clip_path").First(&recording, id).Error
	if err != nil {
		return "", mapLookupError(err, ErrRecordingNotFound, "get_recording_clip_path", "id", id)
	}
	return recording.ClipPath, nil
}

// --- datasets ---

func (ds *DataStore) SaveDataset(dataset *Dataset) error {
	if dataset.Name == "" {
		return validationError("dataset name is required", "name", dataset.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Recordings", "MetadataTags").Save(dataset).Error; err != nil {
			return err
		}
		if err := replaceAssociation(tx, dataset, "Recordings", dataset.Recordings); err != nil {
			return err
		}
		return replaceAssociation(tx, dataset, "MetadataTags", dataset.MetadataTags)
	})
	return mapWriteError(err, "save_dataset", "name", dataset.Name)
}

func (ds *DataStore) GetDataset(id uint) (Dataset, error) {
	var dataset Dataset
	err := ds.DB.Preload("Recordings").Preload("MetadataTags").First(&dataset, id).Error
	if err != nil {
		return Dataset{}, mapLookupError(err, ErrDatasetNotFound, "get_dataset", "id", id)
	}
	return dataset, nil
}

func (ds *DataStore) ListDatasets() ([]Dataset, error) {
	var datasets []Dataset
	err := ds.DB.Preload("MetadataTags").Order("name ASC").Find(&datasets).Error
	if err != nil {
		return nil, dbError(err, "list_datasets")
	}
	return datasets, nil
}

func (ds *DataStore) DeleteDataset(id uint) error {
	return ds.deleteByID(&Dataset{ID: id}, ErrDatasetNotFound, "delete_dataset", id)
}

// AddRecordingsToDataset appends recordings to a dataset without
// touching its existing members.
func (ds *DataStore) AddRecordingsToDataset(datasetID uint, recordingIDs []uint) error {
	if len(recordingIDs) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var dataset Dataset
		if err := tx.Select("id").First(&dataset, datasetID).Error; err != nil {
			return err
		}
		recordings := make([]Recording, len(recordingIDs))
		for i, id := range recordingIDs {
			recordings[i] = Recording{ID: id}
		}
		return tx.Model(&dataset).Association("Recordings").Append(&recordings)
	})
	return mapLookupError(err, ErrDatasetNotFound, "add_recordings_to_dataset", "dataset_id", datasetID)
}
