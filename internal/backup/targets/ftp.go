package targets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/errors"
)

const (
	defaultFTPPort    = 21
	defaultFTPTimeout = 30 * time.Second

	ftpSidecarExt = ".meta"
	ftpTempPrefix = "upload-"
)

// FTPTarget stores archives on an FTP server, each next to a JSON
// metadata sidecar.
type FTPTarget struct {
	config FTPConfig
}

// FTPConfig holds configuration for the FTP target.
type FTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
	Timeout  time.Duration
}

// NewFTPTarget creates an FTP target with the given configuration.
func NewFTPTarget(config FTPConfig) (*FTPTarget, error) {
	if config.Host == "" {
		return nil, errors.Newf("ftp target requires a host").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.BasePath == "" {
		return nil, errors.Newf("ftp target requires a base path").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Port == 0 {
		config.Port = defaultFTPPort
	}
	if config.Timeout == 0 {
		config.Timeout = defaultFTPTimeout
	}
	config.BasePath = strings.TrimRight(config.BasePath, "/")

	return &FTPTarget{config: config}, nil
}

// NewFTPTargetFromMap builds the config from the loose settings map of
// the backup target configuration.
func NewFTPTargetFromMap(settings map[string]any) (*FTPTarget, error) {
	config := FTPConfig{}
	if host, ok := settings["host"].(string); ok {
		config.Host = host
	}
	if port, ok := settings["port"].(int); ok {
		config.Port = port
	}
	if username, ok := settings["username"].(string); ok {
		config.Username = username
	}
	if password, ok := settings["password"].(string); ok {
		config.Password = password
	}
	if basePath, ok := settings["path"].(string); ok {
		config.BasePath = basePath
	}
	if timeout, ok := settings["timeout"].(string); ok {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryConfiguration).
				Context("timeout", timeout).
				Build()
		}
		config.Timeout = duration
	}
	return NewFTPTarget(config)
}

// Name implements backup.Target.
func (t *FTPTarget) Name() string {
	return "ftp"
}

// connect dials and logs in, honoring context cancellation.
func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	connChan := make(chan *ftp.ServerConn, 1)
	errChan := make(chan error, 1)

	go func() {
		addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
		conn, err := ftp.Dial(addr, ftp.DialWithTimeout(t.config.Timeout), ftp.DialWithContext(ctx))
		if err != nil {
			errChan <- errors.New(err).
				Component("backup").
				Category(errors.CategoryNetwork).
				Context("host", t.config.Host).
				Build()
			return
		}
		if t.config.Username != "" {
			if err := conn.Login(t.config.Username, t.config.Password); err != nil {
				if quitErr := conn.Quit(); quitErr != nil {
					logger.Warn("ftp quit after failed login", "error", quitErr)
				}
				errChan <- errors.New(err).
					Component("backup").
					Category(errors.CategoryAuth).
					Context("host", t.config.Host).
					Build()
				return
			}
		}
		connChan <- conn
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(ctx.Err()).
			Component("backup").
			Category(errors.CategoryCancellation).
			Build()
	case err := <-errChan:
		return nil, err
	case conn := <-connChan:
		return conn, nil
	}
}

func (t *FTPTarget) quit(conn *ftp.ServerConn) {
	if err := conn.Quit(); err != nil {
		logger.Warn("ftp quit", "error", err)
	}
}

// ensureBasePath creates the base directory chain, tolerating
// already-exists answers.
func (t *FTPTarget) ensureBasePath(conn *ftp.ServerConn) error {
	parts := strings.Split(strings.Trim(t.config.BasePath, "/"), "/")
	current := ""
	if strings.HasPrefix(t.config.BasePath, "/") {
		current = "/"
	}
	for _, part := range parts {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		if err := conn.MakeDir(current); err != nil && !isFTPExistsError(err) {
			return errors.New(err).
				Component("backup").
				Category(errors.CategoryFileIO).
				Context("dir", current).
				Build()
		}
	}
	return nil
}

func isFTPExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "exists") || strings.Contains(msg, "550")
}

// Store uploads the archive under a temporary name, renames it into
// place and uploads the metadata sidecar the same way.
func (t *FTPTarget) Store(ctx context.Context, archivePath string, meta *backup.Metadata) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer t.quit(conn)

	if err := t.ensureBasePath(conn); err != nil {
		return err
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", archivePath).
			Build()
	}
	defer func() {
		if closeErr := archiveFile.Close(); closeErr != nil {
			logger.Warn("failed to close archive", "error", closeErr)
		}
	}()

	remoteName := filepath.Base(archivePath)
	if err := t.atomicUpload(conn, remoteName, archiveFile); err != nil {
		return err
	}

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := t.atomicUpload(conn, remoteName+ftpSidecarExt, strings.NewReader(string(sidecar))); err != nil {
		return err
	}
	return nil
}

// atomicUpload stores under a temp name then renames, a torn transfer
// never shadows a finished backup.
func (t *FTPTarget) atomicUpload(conn *ftp.ServerConn, remoteName string, r io.Reader) error {
	tempName := path.Join(t.config.BasePath,
		fmt.Sprintf("%s%d-%s", ftpTempPrefix, time.Now().UnixNano(), remoteName))
	finalName := path.Join(t.config.BasePath, remoteName)

	if err := conn.Stor(tempName, r); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", tempName).
			Build()
	}
	if err := conn.Rename(tempName, finalName); err != nil {
		if delErr := conn.Delete(tempName); delErr != nil {
			logger.Warn("failed to remove temp upload", "remote", tempName, "error", delErr)
		}
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", finalName).
			Build()
	}
	return nil
}

// List reads the metadata sidecars from the base path.
func (t *FTPTarget) List(ctx context.Context) ([]backup.StoredBackup, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer t.quit(conn)

	entries, err := conn.List(t.config.BasePath)
	if err != nil {
		if strings.Contains(err.Error(), "No such file") {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("path", t.config.BasePath).
			Build()
	}

	var backups []backup.StoredBackup
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !strings.HasSuffix(entry.Name, ftpSidecarExt) {
			continue
		}

		resp, err := conn.Retr(path.Join(t.config.BasePath, entry.Name))
		if err != nil {
			logger.Warn("skipping unreadable sidecar", "name", entry.Name, "error", err)
			continue
		}

		var meta backup.Metadata
		decodeErr := json.NewDecoder(resp).Decode(&meta)
		if closeErr := resp.Close(); closeErr != nil {
			logger.Warn("ftp retr close", "error", closeErr)
		}
		if decodeErr != nil {
			logger.Warn("skipping corrupt sidecar", "name", entry.Name, "error", decodeErr)
			continue
		}

		backups = append(backups, backup.StoredBackup{Metadata: meta, Target: t.Name()})
	}
	return backups, nil
}

// Delete removes the archive and sidecar for the given backup ID.
func (t *FTPTarget) Delete(ctx context.Context, id string) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer t.quit(conn)

	archiveName := path.Join(t.config.BasePath, id+".tar.gz")
	if err := conn.Delete(archiveName); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", archiveName).
			Build()
	}
	if err := conn.Delete(archiveName + ftpSidecarExt); err != nil {
		logger.Warn("failed to delete sidecar", "remote", archiveName+ftpSidecarExt, "error", err)
	}
	return nil
}

// Validate connects and checks the base path is usable.
func (t *FTPTarget) Validate(ctx context.Context) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer t.quit(conn)

	return t.ensureBasePath(conn)
}
