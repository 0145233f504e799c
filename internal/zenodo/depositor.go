package zenodo

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

// repositoryName is the catalog-side name of the archive backend.
const repositoryName = "Zenodo"

// Depositor publishes a recording session as one archive deposition:
// every publishable recording of the session is uploaded into a shared
// deposition, metadata is assembled from the session and its subjects,
// and after publishing each member recording gets its DOI and public
// download link written back.
type Depositor struct {
	client    *Client
	ds        datastore.Interface
	store     *mediastore.Store
	community string
	logger    *slog.Logger
}

// NewDepositor wires the deposition flow to the catalog and media store.
func NewDepositor(client *Client, ds datastore.Interface, store *mediastore.Store, settings *conf.ZenodoSettings) *Depositor {
	community := settings.Community
	if community == "" {
		community = conf.DefaultZenodoCommunity
	}
	return &Depositor{
		client:    client,
		ds:        ds,
		store:     store,
		community: community,
		logger:    logger.With("component", "depositor"),
	}
}

// DepositSession runs the deposition flow for one recording session and
// returns the minted DOI. Recordings in pending, processing or error
// status are excluded. A recording whose file is missing or empty is
// marked as errored and skipped rather than failing the whole session.
func (d *Depositor) DepositSession(ctx context.Context, sessionID uint) (string, error) {
	session, err := d.ds.GetRecordingSession(sessionID)
	if err != nil {
		return "", err
	}

	recordings, err := d.ds.PublishableRecordingsForSession(sessionID)
	if err != nil {
		return "", err
	}
	if len(recordings) == 0 {
		return "", errors.Newf("no publishable recordings in session").
			Category(errors.CategoryValidation).
			Component("zenodo").
			Context("operation", "deposit_session").
			Context("session_id", sessionID).
			Build()
	}

	depositionID, repo, err := d.resolveDeposition(ctx, recordings)
	if err != nil {
		return "", err
	}

	uploaded := d.uploadRecordings(ctx, depositionID, repo.ID, recordings)
	if len(uploaded) == 0 {
		return "", errors.Newf("no recording could be uploaded to the deposition").
			Category(errors.CategoryDeposition).
			Component("zenodo").
			Context("operation", "deposit_session").
			Context("session_id", sessionID).
			Context("deposition_id", depositionID).
			Build()
	}

	d.removeStagedFiles(recordings)

	meta, err := d.buildMetadata(&session, recordings)
	if err != nil {
		return "", err
	}
	if err := d.client.SetMetadata(ctx, depositionID, meta); err != nil {
		return "", err
	}

	dep, err := d.client.Publish(ctx, depositionID)
	if err != nil {
		return "", err
	}

	d.recordPublication(depositionID, dep.DOI, uploaded)

	d.logger.Info("session deposited",
		"session_id", sessionID,
		"deposition_id", depositionID,
		"doi", dep.DOI,
		"recordings", len(uploaded))
	return dep.DOI, nil
}

// resolveDeposition reuses the deposition any session recording already
// belongs to, creating a fresh one otherwise.
func (d *Depositor) resolveDeposition(ctx context.Context, recordings []datastore.Recording) (string, datastore.Repository, error) {
	for i := range recordings {
		rec := &recordings[i]
		if rec.RepositoryID != nil && rec.ExternalID != "" {
			repo, err := d.ds.GetRepository(*rec.RepositoryID)
			if err != nil {
				return "", datastore.Repository{}, err
			}
			d.logger.Debug("reusing existing deposition",
				"deposition_id", rec.ExternalID, "repository", repo.Name)
			return rec.ExternalID, repo, nil
		}
	}

	dep, err := d.client.CreateDeposition(ctx)
	if err != nil {
		return "", datastore.Repository{}, err
	}
	repo, err := d.ds.GetOrCreateRepository(repositoryName)
	if err != nil {
		return "", datastore.Repository{}, err
	}
	return strconv.FormatInt(dep.ID, 10), repo, nil
}

// uploadedRecording pairs a deposition member with the filename it was
// uploaded under, which the public download link is built from.
type uploadedRecording struct {
	id       uint
	filename string
}

// uploadRecordings uploads every recording not yet part of the deposition
// and returns the members of the deposition including previous uploads.
func (d *Depositor) uploadRecordings(ctx context.Context, depositionID string, repositoryID uint, recordings []datastore.Recording) []uploadedRecording {
	var members []uploadedRecording

	for i := range recordings {
		rec := &recordings[i]

		if rec.ExternalID == depositionID {
			members = append(members, uploadedRecording{id: rec.ID, filename: d.archiveFilename(rec)})
			continue
		}

		ref, err := d.localRef(rec)
		if err != nil {
			d.markErrored(rec.ID, "file location unresolvable: "+err.Error())
			continue
		}

		info, err := d.store.Stat(ref)
		if err != nil || info.Size() == 0 {
			d.logger.Warn("skipping recording, file missing or empty",
				"recording_id", rec.ID, "ref", ref.String())
			d.markErrored(rec.ID, "file missing or empty: "+ref.String())
			continue
		}

		f, err := d.store.Open(ref)
		if err != nil {
			d.markErrored(rec.ID, "file unreadable: "+err.Error())
			continue
		}

		filename := d.archiveFilename(rec)
		_, uploadErr := d.client.UploadFile(ctx, depositionID, filename, f)
		_ = f.Close()
		if uploadErr != nil {
			d.logger.Warn("upload failed", "recording_id", rec.ID, "error", uploadErr)
			d.markErrored(rec.ID, "archive upload failed: "+uploadErr.Error())
			continue
		}

		if err := d.ds.UpdateRecordingDeposition(rec.ID, repositoryID, depositionID); err != nil {
			d.logger.Error("failed to record deposition membership",
				"recording_id", rec.ID, "error", err)
			continue
		}
		members = append(members, uploadedRecording{id: rec.ID, filename: filename})
	}

	return members
}

// archiveFilename returns the sanitized name a recording is uploaded
// under. The recording name is preferred over the opaque stored basename
// so the published record lists meaningful filenames.
func (d *Depositor) archiveFilename(rec *datastore.Recording) string {
	name := rec.Name
	if name == "" {
		name = path.Base(rec.ClipPath)
	}
	if rec.Format != "" && path.Ext(name) == "" {
		name += "." + rec.Format
	}
	return mediastore.SanitizeName(name)
}

// localRef resolves where a recording's file lives in the media store:
// the upload clip path when set, otherwise the stored link.
func (d *Depositor) localRef(rec *datastore.Recording) (mediastore.Ref, error) {
	if rec.ClipPath != "" {
		rel, err := mediastore.ValidateRel(rec.ClipPath)
		if err != nil {
			return mediastore.Ref{}, err
		}
		return mediastore.Ref{Area: mediastore.AreaMedia, Rel: rel}, nil
	}
	return d.store.ResolveLink(rec.Link)
}

// removeStagedFiles deletes temp staging copies after they reached the
// archive. Files under the media root stay, they keep being served.
func (d *Depositor) removeStagedFiles(recordings []datastore.Recording) {
	for i := range recordings {
		ref, err := d.localRef(&recordings[i])
		if err != nil || ref.Area != mediastore.AreaTemp {
			continue
		}
		if err := d.store.Remove(ref); err == nil {
			d.logger.Debug("removed staged file", "ref", ref.String())
		}
	}
}

// markErrored flips a recording to error status without aborting the
// session deposition.
func (d *Depositor) markErrored(recordingID uint, detail string) {
	if err := d.ds.UpdateRecordingStatus(recordingID, datastore.StatusError, detail); err != nil {
		d.logger.Error("failed to mark recording as errored",
			"recording_id", recordingID, "error", err)
	}
}

// buildMetadata assembles the deposition metadata from the session, its
// protocol and subjects, and the per-file facts.
func (d *Depositor) buildMetadata(session *datastore.RecordingSession, recordings []datastore.Recording) (Metadata, error) {
	subjects, err := d.ds.SubjectsForSession(session.ID)
	if err != nil {
		return Metadata{}, err
	}

	title := session.Name
	if title == "" {
		title = "Untitled session"
	}

	return Metadata{
		Title:       title,
		UploadType:  uploadTypeDataset,
		Description: buildSessionDescription(session, subjects, recordings),
		Creators:    d.creatorsFor(recordings),
		Communities: []Community{{Identifier: d.community}},
	}, nil
}

// creatorsFor derives the creator list from the contributor who entered
// the first recording of the session.
func (d *Depositor) creatorsFor(recordings []datastore.Recording) []Creator {
	unknown := []Creator{{Name: "Unknown, Unknown"}}
	if len(recordings) == 0 || recordings[0].CreatedByID == nil {
		return unknown
	}

	user, err := d.ds.GetUser(*recordings[0].CreatedByID)
	if err != nil {
		d.logger.Warn("creator lookup failed", "user_id", *recordings[0].CreatedByID, "error", err)
		return unknown
	}

	family := user.LastName
	if family == "" {
		family = "Unknown"
	}
	given := user.FirstName
	if given == "" {
		given = "Unknown"
	}

	creator := Creator{Name: fmt.Sprintf("%s, %s", family, given)}
	if user.Profile != nil {
		creator.Affiliation = user.Profile.Institution
		creator.ORCID = user.Profile.ORCID
	}
	return []Creator{creator}
}

// recordPublication writes the DOI, the per-file download link and the
// record landing page back to every deposition member and marks them
// published.
func (d *Depositor) recordPublication(depositionID, doi string, members []uploadedRecording) {
	recordURL := d.client.RecordURL(depositionID)
	for _, m := range members {
		link := d.client.FileDownloadURL(depositionID, m.filename)
		if err := d.ds.UpdateRecordingPublication(m.id, doi, link, recordURL); err != nil {
			d.logger.Error("failed to record publication",
				"recording_id", m.id, "doi", doi, "error", err)
			continue
		}
		if err := d.ds.UpdateRecordingStatus(m.id, datastore.StatusPublished, ""); err != nil {
			d.logger.Error("failed to mark recording published",
				"recording_id", m.id, "error", err)
		}
	}
}
