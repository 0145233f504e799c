// cleanup.go: the two cleanup passes over the media tree.
package diskmanager

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/spectrogram"
)

// cleanupTemp removes staging files older than the retention period.
// Fresh files may belong to an ingest in flight and are left alone.
func (j *Janitor) cleanupTemp() error {
	cutoff := time.Now().Add(-j.maxAge)

	entries, err := j.store.ReadDir(mediastore.Ref{Area: mediastore.AreaTemp})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if diskMetrics != nil {
			diskMetrics.RecordCleanupError("walk")
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ref := mediastore.Ref{Area: mediastore.AreaTemp, Rel: entry.Name()}

		info, err := entry.Info()
		if err != nil {
			if diskMetrics != nil {
				diskMetrics.RecordCleanupError("stat")
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := j.store.Remove(ref); err != nil {
			if diskMetrics != nil {
				diskMetrics.RecordCleanupError("remove")
			}
			logger.Warn("failed to remove aged temp file", "file", ref.String(), "error", err)
			continue
		}

		if diskMetrics != nil {
			diskMetrics.RecordFileDeleted("temp", info.Size())
		}
		if j.debug {
			logger.Debug("removed aged temp file",
				"file", ref.String(), "age", time.Since(info.ModTime()).String())
		}
	}

	return nil
}

// cleanupOrphanedSpectrograms removes rendered images whose source
// recording no longer exists under uploads/.
func (j *Janitor) cleanupOrphanedSpectrograms() error {
	stems, err := j.uploadStems()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if diskMetrics != nil {
			diskMetrics.RecordCleanupError("walk")
		}
		return err
	}

	entries, err := j.store.ReadDir(mediastore.Ref{Area: mediastore.AreaMedia, Rel: conf.SpectrogramsDirName})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if diskMetrics != nil {
			diskMetrics.RecordCleanupError("walk")
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem, ok := spectrogramStem(entry.Name())
		if !ok {
			// Not a name this service writes, leave it alone
			continue
		}
		if stems[stem] {
			continue
		}

		ref := mediastore.Ref{
			Area: mediastore.AreaMedia,
			Rel:  path.Join(conf.SpectrogramsDirName, entry.Name()),
		}

		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}

		if err := j.store.Remove(ref); err != nil {
			if diskMetrics != nil {
				diskMetrics.RecordCleanupError("remove")
			}
			logger.Warn("failed to remove orphaned spectrogram", "file", ref.String(), "error", err)
			continue
		}

		if diskMetrics != nil {
			diskMetrics.RecordFileDeleted("spectrogram", size)
		}
		if j.debug {
			logger.Debug("removed orphaned spectrogram", "file", ref.String())
		}
	}

	return nil
}

// uploadStems collects the extension-less base names of every uploaded
// recording, the key spectrogram image names are derived from.
func (j *Janitor) uploadStems() (map[string]bool, error) {
	entries, err := j.store.ReadDir(mediastore.Ref{Area: mediastore.AreaMedia, Rel: conf.UploadsDirName})
	if err != nil {
		return nil, err
	}

	stems := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stems[strings.TrimSuffix(name, path.Ext(name))] = true
	}
	return stems, nil
}

// spectrogramStem strips the ".<size>[.raw].png" suffix the renderer
// appends, returning false for names it does not recognise.
func spectrogramStem(name string) (string, bool) {
	stem, found := strings.CutSuffix(name, ".png")
	if !found {
		return "", false
	}
	stem = strings.TrimSuffix(stem, ".raw")

	for _, size := range spectrogram.GetValidSizes() {
		if cut, found := strings.CutSuffix(stem, "."+size); found {
			return cut, true
		}
	}
	return "", false
}
