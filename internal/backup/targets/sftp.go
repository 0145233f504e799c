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

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/errors"
)

const (
	defaultSFTPPort    = 22
	defaultSFTPTimeout = 30 * time.Second

	sftpSidecarExt = ".meta"
)

// SFTPTarget stores archives over SFTP, each next to a JSON metadata
// sidecar.
type SFTPTarget struct {
	config SFTPConfig
}

// SFTPConfig holds configuration for the SFTP target.
type SFTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KeyFile        string
	BasePath       string
	KnownHostsFile string
	Timeout        time.Duration
}

// NewSFTPTarget creates an SFTP target with the given configuration.
func NewSFTPTarget(config SFTPConfig) (*SFTPTarget, error) {
	if config.Host == "" {
		return nil, errors.Newf("sftp target requires a host").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Username == "" {
		return nil, errors.Newf("sftp target requires a username").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Password == "" && config.KeyFile == "" {
		return nil, errors.Newf("sftp target requires a password or key file").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Port == 0 {
		config.Port = defaultSFTPPort
	}
	if config.Timeout == 0 {
		config.Timeout = defaultSFTPTimeout
	}
	if config.BasePath == "" {
		config.BasePath = "backups"
	}
	config.BasePath = strings.TrimRight(config.BasePath, "/")

	return &SFTPTarget{config: config}, nil
}

// NewSFTPTargetFromMap builds the config from the loose settings map
// of the backup target configuration.
func NewSFTPTargetFromMap(settings map[string]any) (*SFTPTarget, error) {
	config := SFTPConfig{}
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
	if keyFile, ok := settings["key_file"].(string); ok {
		config.KeyFile = keyFile
	}
	if knownHosts, ok := settings["known_hosts"].(string); ok {
		config.KnownHostsFile = knownHosts
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
	return NewSFTPTarget(config)
}

// Name implements backup.Target.
func (t *SFTPTarget) Name() string {
	return "sftp"
}

// hostKeyCallback returns the host key policy. A known_hosts file pins
// the server key; without one the first-seen key is accepted, which
// only guards against later substitution.
func (t *SFTPTarget) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.config.KnownHostsFile == "" {
		logger.Warn("sftp target has no known_hosts file, host key is not verified",
			"host", t.config.Host)
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in via empty known_hosts
	}
	callback, err := knownhosts.New(t.config.KnownHostsFile)
	if err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("known_hosts", t.config.KnownHostsFile).
			Build()
	}
	return callback, nil
}

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func (s *sftpSession) close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("sftp client close", "error", err)
	}
	if err := s.ssh.Close(); err != nil {
		logger.Warn("ssh connection close", "error", err)
	}
}

// connect establishes the SSH connection and SFTP subsystem, honoring
// context cancellation.
func (t *SFTPTarget) connect(ctx context.Context) (*sftpSession, error) {
	type result struct {
		session *sftpSession
		err     error
	}
	resultChan := make(chan result, 1)

	go func() {
		hostKeys, err := t.hostKeyCallback()
		if err != nil {
			resultChan <- result{nil, err}
			return
		}

		sshConfig := &ssh.ClientConfig{
			User:            t.config.Username,
			HostKeyCallback: hostKeys,
			Timeout:         t.config.Timeout,
		}

		switch {
		case t.config.KeyFile != "":
			key, err := os.ReadFile(t.config.KeyFile)
			if err != nil {
				resultChan <- result{nil, errors.New(err).
					Component("backup").
					Category(errors.CategoryConfiguration).
					Context("key_file", t.config.KeyFile).
					Build()}
				return
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				resultChan <- result{nil, errors.New(err).
					Component("backup").
					Category(errors.CategoryConfiguration).
					Context("key_file", t.config.KeyFile).
					Build()}
				return
			}
			sshConfig.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
		default:
			sshConfig.Auth = []ssh.AuthMethod{ssh.Password(t.config.Password)}
		}

		addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
		sshConn, err := ssh.Dial("tcp", addr, sshConfig)
		if err != nil {
			resultChan <- result{nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryNetwork).
				Context("host", t.config.Host).
				Build()}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			if closeErr := sshConn.Close(); closeErr != nil {
				logger.Warn("ssh close after sftp failure", "error", closeErr)
			}
			resultChan <- result{nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryNetwork).
				Context("host", t.config.Host).
				Build()}
			return
		}

		resultChan <- result{&sftpSession{ssh: sshConn, client: client}, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(ctx.Err()).
			Component("backup").
			Category(errors.CategoryCancellation).
			Build()
	case r := <-resultChan:
		return r.session, r.err
	}
}

// Store uploads the archive and its metadata sidecar.
func (t *SFTPTarget) Store(ctx context.Context, archivePath string, meta *backup.Metadata) error {
	session, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer session.close()

	if err := session.client.MkdirAll(t.config.BasePath); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("dir", t.config.BasePath).
			Build()
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

	remotePath := path.Join(t.config.BasePath, filepath.Base(archivePath))
	if err := t.upload(session.client, remotePath, archiveFile); err != nil {
		return err
	}

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	return t.upload(session.client, remotePath+sftpSidecarExt, strings.NewReader(string(sidecar)))
}

func (t *SFTPTarget) upload(client *sftp.Client, remotePath string, r io.Reader) error {
	dst, err := client.Create(remotePath)
	if err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", remotePath).
			Build()
	}

	_, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()
	if copyErr != nil {
		return errors.New(copyErr).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", remotePath).
			Build()
	}
	if closeErr != nil {
		return errors.New(closeErr).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", remotePath).
			Build()
	}
	return nil
}

// List reads the metadata sidecars from the base path.
func (t *SFTPTarget) List(ctx context.Context) ([]backup.StoredBackup, error) {
	session, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer session.close()

	entries, err := session.client.ReadDir(t.config.BasePath)
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
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
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sftpSidecarExt) {
			continue
		}

		f, err := session.client.Open(path.Join(t.config.BasePath, entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable sidecar", "name", entry.Name(), "error", err)
			continue
		}

		var meta backup.Metadata
		decodeErr := json.NewDecoder(f).Decode(&meta)
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("sftp file close", "error", closeErr)
		}
		if decodeErr != nil {
			logger.Warn("skipping corrupt sidecar", "name", entry.Name(), "error", decodeErr)
			continue
		}

		backups = append(backups, backup.StoredBackup{Metadata: meta, Target: t.Name()})
	}
	return backups, nil
}

// Delete removes the archive and sidecar for the given backup ID.
func (t *SFTPTarget) Delete(ctx context.Context, id string) error {
	session, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer session.close()

	archivePath := path.Join(t.config.BasePath, id+".tar.gz")
	if err := session.client.Remove(archivePath); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryNetwork).
			Context("remote", archivePath).
			Build()
	}
	if err := session.client.Remove(archivePath + sftpSidecarExt); err != nil {
		logger.Warn("failed to delete sidecar", "remote", archivePath+sftpSidecarExt, "error", err)
	}
	return nil
}

// Validate connects and ensures the base path exists.
func (t *SFTPTarget) Validate(ctx context.Context) error {
	session, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer session.close()

	if err := session.client.MkdirAll(t.config.BasePath); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("dir", t.config.BasePath).
			Build()
	}
	return nil
}
