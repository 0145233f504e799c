// Package audioinfo reads technical metadata from recording files
// without decoding their sample data. The catalog stores sampling rate,
// duration, bit depth and channel count for every published recording,
// and the ingest pipeline fills those columns from the file header
// right after upload.
package audioinfo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// Sentinel errors for unreadable or out-of-policy files. Callers map
// these to validation failures rather than transient I/O errors.
var (
	ErrUnsupportedFormat = errors.NewStd("unsupported audio format")
	ErrInvalidFile       = errors.NewStd("invalid audio file")
)

// Supported file formats, matching the upload whitelist.
const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Info describes an audio file header.
type Info struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
	Format       string
	SizeBytes    int64
}

// Duration derives the playing time from the sample count. Returns zero
// when the header carried no usable rate.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 || i.TotalSamples <= 0 {
		return 0
	}
	seconds := float64(i.TotalSamples) / float64(i.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// FormatForFile returns the canonical format name for a file path, or
// an empty string when the extension is not a supported audio format.
func FormatForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	}
	return ""
}

// ReadFile opens an audio file and parses its header. The format is
// picked from the file extension, so a renamed file fails header
// validation rather than being probed as every known codec.
func ReadFile(path string) (Info, error) {
	format := FormatForFile(path)
	if format == "" {
		return Info{}, errors.New(ErrUnsupportedFormat).
			Component("audioinfo").
			Category(errors.CategoryValidation).
			Context("extension", filepath.Ext(path)).
			Build()
	}

	file, err := os.Open(path)
	if err != nil {
		return Info{}, errors.New(err).
			Component("audioinfo").
			Category(errors.CategoryFileIO).
			Context("operation", "open").
			Build()
	}
	defer file.Close()

	var info Info
	switch format {
	case FormatWAV:
		info, err = readWAVInfo(file)
	case FormatFLAC:
		info, err = readFLACInfo(file)
	}
	if err != nil {
		return Info{}, errors.New(err).
			Component("audioinfo").
			Category(errors.CategoryAudio).
			Context("format", format).
			Build()
	}

	stat, err := file.Stat()
	if err != nil {
		return Info{}, errors.New(err).
			Component("audioinfo").
			Category(errors.CategoryFileIO).
			Context("operation", "stat").
			Build()
	}

	info.Format = format
	info.SizeBytes = stat.Size()
	return info, nil
}
