package importer

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// CreateDatasetFromFile builds a dataset from a list of recording
// session identifiers, one per line. Numeric lines are session IDs,
// anything else is matched against session names. Blank lines are
// ignored. The dataset collects the recordings of every listed session.
func (i *Importer) CreateDatasetFromFile(ctx context.Context, name, path, createdBy string) (*datastore.Dataset, error) {
	if name == "" {
		return nil, errors.Newf("dataset name is required").
			Component("importer").
			Category(errors.CategoryValidation).
			Build()
	}

	ids, names, err := readSessionList(path)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && len(names) == 0 {
		return nil, errors.Newf("session list %s names no sessions", path).
			Component("importer").
			Category(errors.CategoryValidation).
			Build()
	}

	var createdByID *uint
	if createdBy != "" {
		user, err := i.ds.GetUserByUsername(createdBy)
		if err != nil {
			return nil, errors.Newf("user %q does not exist", createdBy).
				Component("importer").
				Category(errors.CategoryNotFound).
				Build()
		}
		createdByID = &user.ID
	}

	sessions, err := i.resolveSessions(ctx, ids, names)
	if err != nil {
		return nil, err
	}

	var recordingIDs []uint
	for _, session := range sessions {
		recordings, err := i.ds.RecordingsForSession(session.ID)
		if err != nil {
			return nil, err
		}
		for _, recording := range recordings {
			recordingIDs = append(recordingIDs, recording.ID)
		}
	}

	dataset := datastore.Dataset{Name: name}
	dataset.CreatedByID = createdByID
	if err := i.ds.SaveDataset(&dataset); err != nil {
		return nil, err
	}
	if err := i.ds.AddRecordingsToDataset(dataset.ID, recordingIDs); err != nil {
		return nil, err
	}

	logger.Info("dataset created", "name", name,
		"sessions", len(sessions), "recordings", len(recordingIDs))
	return &dataset, nil
}

// readSessionList reads the identifier file. Lines parsing as integers
// are IDs, the rest are names. Duplicates collapse, first occurrence
// wins.
func readSessionList(path string) (ids []uint, names []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close session list", "path", path, "error", closeErr)
		}
	}()

	seenIDs := map[uint]bool{}
	seenNames := map[string]bool{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if id, convErr := strconv.ParseUint(line, 10, 32); convErr == nil {
			if !seenIDs[uint(id)] {
				seenIDs[uint(id)] = true
				ids = append(ids, uint(id))
			}
			continue
		}
		if !seenNames[line] {
			seenNames[line] = true
			names = append(names, line)
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, nil, errors.New(scanErr).
			Component("importer").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return ids, names, nil
}

// resolveSessions loads every listed session, failing on unknown IDs,
// unknown names and ambiguous names.
func (i *Importer) resolveSessions(ctx context.Context, ids []uint, names []string) ([]datastore.RecordingSession, error) {
	var sessions []datastore.RecordingSession

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		session, err := i.ds.GetRecordingSession(id)
		if err != nil {
			return nil, errors.Newf("recording session %d does not exist", id).
				Component("importer").
				Category(errors.CategoryNotFound).
				Build()
		}
		sessions = append(sessions, session)
	}

	if len(names) > 0 {
		all, err := i.ds.ListRecordingSessions()
		if err != nil {
			return nil, err
		}
		byName := make(map[string][]datastore.RecordingSession)
		for _, session := range all {
			byName[session.Name] = append(byName[session.Name], session)
		}

		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			matches := byName[name]
			switch len(matches) {
			case 0:
				return nil, errors.Newf("recording session %q does not exist", name).
					Component("importer").
					Category(errors.CategoryNotFound).
					Build()
			case 1:
				sessions = append(sessions, matches[0])
			default:
				return nil, errors.Newf("multiple recording sessions named %q, use IDs instead", name).
					Component("importer").
					Category(errors.CategoryValidation).
					Build()
			}
		}
	}
	return sessions, nil
}
