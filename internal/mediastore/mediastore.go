// Package mediastore manages the on-disk media tree holding uploaded
// recordings, staged temp files and rendered spectrograms. All access
// goes through os.Root so path traversal and symlink escapes are
// stopped at the OS level, mirroring the sandboxing used for any
// user-influenced file path in this codebase.
package mediastore

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

// Sentinel errors usable with errors.Is.
var (
	// ErrPathTraversal indicates an attempt to escape the media tree
	// via relative components or absolute paths.
	ErrPathTraversal = errors.NewStd("media store: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates a malformed path specification.
	ErrInvalidPath = errors.NewStd("media store: invalid path specification")

	// ErrNotRegularFile indicates the target exists but is not a plain file.
	ErrNotRegularFile = errors.NewStd("media store: not a regular file")

	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.NewStd("media store: file exceeds maximum allowed size")

	// ErrUnresolvableLink is returned when a stored link does not map
	// into the media or temp tree.
	ErrUnresolvableLink = errors.NewStd("media store: link does not resolve to a local file")
)

// Area selects which sandbox a reference lives in.
type Area string

const (
	AreaMedia Area = "media"
	AreaTemp  Area = "temp"
)

// Ref addresses one file inside the store: an area plus a validated
// path relative to that area's root.
type Ref struct {
	Area Area
	Rel  string
}

func (r Ref) String() string { return string(r.Area) + ":" + r.Rel }

var logger *slog.Logger

func init() {
	logger = logging.ForService("mediastore")
	if logger == nil {
		logger = slog.Default().With("service", "mediastore")
	}
}

// Store is the sandboxed media tree. The media root holds the uploads
// and spectrograms subtrees, the temp root holds staging files that
// the disk janitor reclaims.
type Store struct {
	baseDir string
	tempDir string
	media   *os.Root
	temp    *os.Root
}

// New opens (creating if needed) the media and temp trees configured
// in settings and pre-creates the uploads and spectrograms subtrees.
func New(settings *conf.Settings) (*Store, error) {
	media, baseDir, err := openRoot(settings.Media.BasePath)
	if err != nil {
		return nil, storeError(err, "open-media-root", "path", settings.Media.BasePath)
	}

	temp, tempDir, err := openRoot(settings.Media.TempPath)
	if err != nil {
		media.Close()
		return nil, storeError(err, "open-temp-root", "path", settings.Media.TempPath)
	}

	s := &Store{
		baseDir: baseDir,
		tempDir: tempDir,
		media:   media,
		temp:    temp,
	}

	for _, dir := range []string{conf.UploadsDirName, conf.SpectrogramsDirName} {
		if err := s.MkdirAll(Ref{Area: AreaMedia, Rel: dir}, 0o750); err != nil {
			s.Close()
			return nil, err
		}
	}

	logger.Info("media store opened", "base", baseDir, "temp", tempDir)
	return s, nil
}

// openRoot resolves a directory to an absolute path, creates it with
// restrictive permissions and opens an OS-level sandbox over it.
func openRoot(dir string) (*os.Root, string, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, "", fmt.Errorf("failed to create base directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return root, absPath, nil
}

// Close releases both sandbox roots.
func (s *Store) Close() error {
	var firstErr error
	for _, root := range []*os.Root{s.media, s.temp} {
		if root == nil {
			continue
		}
		if err := root.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BaseDir returns the absolute media root directory.
func (s *Store) BaseDir() string { return s.baseDir }

// TempDir returns the absolute temp staging directory.
func (s *Store) TempDir() string { return s.tempDir }

func (s *Store) rootFor(area Area) *os.Root {
	if area == AreaTemp {
		return s.temp
	}
	return s.media
}

func (s *Store) dirFor(area Area) string {
	if area == AreaTemp {
		return s.tempDir
	}
	return s.baseDir
}

// ValidateRel cleans and validates a path assumed to be relative to an
// area root, rejecting absolute paths and upward traversal.
func ValidateRel(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))

	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: path must be relative, got %q", ErrInvalidPath, rel)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, rel)
	}

	return strings.TrimPrefix(cleaned, string(filepath.Separator)), nil
}

// Resolve validates a Ref and returns a copy with the cleaned path.
func (s *Store) Resolve(ref Ref) (Ref, error) {
	rel, err := ValidateRel(ref.Rel)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Area: ref.Area, Rel: rel}, nil
}

// Abs returns the absolute filesystem path for a validated Ref. Needed
// only where a path leaves the process, e.g. sox and ffmpeg arguments.
func (s *Store) Abs(ref Ref) (string, error) {
	ref, err := s.Resolve(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dirFor(ref.Area), ref.Rel), nil
}

// Open opens a file for reading inside the sandbox.
func (s *Store) Open(ref Ref) (*os.File, error) {
	ref, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.rootFor(ref.Area).Open(ref.Rel)
}

// OpenFile opens a file with the given flags inside the sandbox.
func (s *Store) OpenFile(ref Ref, flag int, perm os.FileMode) (*os.File, error) {
	ref, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.rootFor(ref.Area).OpenFile(ref.Rel, flag, perm)
}

// Stat returns file info for a sandbox path.
func (s *Store) Stat(ref Ref) (fs.FileInfo, error) {
	ref, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.rootFor(ref.Area).Stat(ref.Rel)
}

// Exists reports whether the path exists inside the sandbox.
func (s *Store) Exists(ref Ref) (bool, error) {
	_, err := s.Stat(ref)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Remove deletes a single file inside the sandbox.
func (s *Store) Remove(ref Ref) error {
	ref, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	return s.rootFor(ref.Area).Remove(ref.Rel)
}

// Rename moves a file within one area of the sandbox.
func (s *Store) Rename(oldRef, newRef Ref) error {
	if oldRef.Area != newRef.Area {
		return fmt.Errorf("%w: rename across areas", ErrInvalidPath)
	}
	oldRef, err := s.Resolve(oldRef)
	if err != nil {
		return err
	}
	newRef, err = s.Resolve(newRef)
	if err != nil {
		return err
	}
	return s.rootFor(oldRef.Area).Rename(oldRef.Rel, newRef.Rel)
}

// ReadDir lists a directory inside the sandbox.
func (s *Store) ReadDir(ref Ref) ([]os.DirEntry, error) {
	ref, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if ref.Rel == "" {
		ref.Rel = "."
	}

	dir, err := s.rootFor(ref.Area).Open(ref.Rel)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	return dir.ReadDir(0)
}

// MkdirAll creates a directory and its parents inside the sandbox.
// os.Root has no MkdirAll, so each component is created in turn.
func (s *Store) MkdirAll(ref Ref, perm os.FileMode) error {
	ref, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if ref.Rel == "" || ref.Rel == "." {
		return nil
	}

	root := s.rootFor(ref.Area)
	current := ""
	for _, component := range strings.Split(ref.Rel, string(filepath.Separator)) {
		if component == "" {
			continue
		}
		current = filepath.Join(current, component)
		if err := root.Mkdir(current, perm); err != nil && !os.IsExist(err) {
			return fmt.Errorf("failed to create directory component %s: %w", current, err)
		}
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName reduces a client-supplied filename to a safe basename,
// replacing anything outside [a-zA-Z0-9._-] with underscores.
func SanitizeName(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == ".." {
		return "file"
	}
	return base
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Ref       Ref
	Name      string
	SizeBytes int64
}

// SaveUpload streams an upload into the uploads subtree under a
// uuid-prefixed sanitized name and returns its reference. A limit of
// zero disables the size check. On an oversize upload the partial file
// is removed and ErrFileTooLarge returned.
func (s *Store) SaveUpload(originalName string, src io.Reader, limit int64) (*UploadResult, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), SanitizeName(originalName))
	ref := Ref{Area: AreaMedia, Rel: path.Join(conf.UploadsDirName, name)}

	size, err := s.writeStream(ref, src, limit)
	if err != nil {
		return nil, err
	}

	return &UploadResult{Ref: ref, Name: name, SizeBytes: size}, nil
}

// SaveTemp streams data into the temp staging area.
func (s *Store) SaveTemp(name string, src io.Reader) (Ref, error) {
	ref := Ref{Area: AreaTemp, Rel: SanitizeName(name)}
	if _, err := s.writeStream(ref, src, 0); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

func (s *Store) writeStream(ref Ref, src io.Reader, limit int64) (int64, error) {
	file, err := s.OpenFile(ref, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, storeError(err, "create", "ref", ref.String())
	}

	reader := src
	if limit > 0 {
		reader = io.LimitReader(src, limit+1)
	}

	size, copyErr := io.Copy(file, reader)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		s.discard(ref)
		return 0, storeError(copyErr, "write", "ref", ref.String())
	case closeErr != nil:
		s.discard(ref)
		return 0, storeError(closeErr, "close", "ref", ref.String())
	case limit > 0 && size > limit:
		s.discard(ref)
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}

	return size, nil
}

// discard removes a partially written file, logging rather than
// failing since the caller already has the primary error.
func (s *Store) discard(ref Ref) {
	if err := s.Remove(ref); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove partial file", "ref", ref.String(), "error", err)
	}
}

// Link returns the stored link path for a reference, the form kept in
// the recordings table ("/media/..." or "/temp/...").
func Link(ref Ref) string {
	prefix := "/media/"
	if ref.Area == AreaTemp {
		prefix = "/temp/"
	}
	return prefix + filepath.ToSlash(ref.Rel)
}

// ResolveLink maps a stored link back into the sandbox. Handles
// http(s) URLs whose path points at /media or /temp, bare /media/ and
// /temp/ paths, and absolute paths inside the media root. Anything
// else, such as an external archive URL, yields ErrUnresolvableLink.
func (s *Store) ResolveLink(link string) (Ref, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return Ref{}, fmt.Errorf("%w: empty link", ErrUnresolvableLink)
	}

	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		parsed, err := url.Parse(link)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %v", ErrUnresolvableLink, err)
		}
		link = parsed.Path
	}

	switch {
	case strings.HasPrefix(link, "/media/"):
		return s.Resolve(Ref{Area: AreaMedia, Rel: strings.TrimPrefix(link, "/media/")})
	case strings.HasPrefix(link, "/temp/"):
		return s.Resolve(Ref{Area: AreaTemp, Rel: strings.TrimPrefix(link, "/temp/")})
	}

	// Legacy rows carry absolute paths from the old site layout.
	if filepath.IsAbs(link) {
		for _, area := range []Area{AreaMedia, AreaTemp} {
			base := s.dirFor(area) + string(filepath.Separator)
			if strings.HasPrefix(link, base) {
				return s.Resolve(Ref{Area: area, Rel: strings.TrimPrefix(link, base)})
			}
		}
	}

	return Ref{}, fmt.Errorf("%w: %q", ErrUnresolvableLink, link)
}

func storeError(err error, operation string, contextPairs ...any) error {
	builder := errors.New(err).
		Component("mediastore").
		Category(errors.CategoryMedia).
		Context("operation", operation)

	for i := 0; i+1 < len(contextPairs); i += 2 {
		if key, ok := contextPairs[i].(string); ok {
			builder = builder.Context(key, contextPairs[i+1])
		}
	}

	return builder.Build()
}
