package sources

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// dumpTimeout bounds one mysqldump invocation.
const dumpTimeout = 15 * time.Minute

// MySQLSource snapshots the MariaDB/MySQL catalog through mysqldump.
type MySQLSource struct {
	settings *conf.Settings

	// dumpBinary is overridable for tests.
	dumpBinary string
}

// NewMySQLSource creates a snapshot source for the MySQL backend.
func NewMySQLSource(settings *conf.Settings) *MySQLSource {
	return &MySQLSource{settings: settings, dumpBinary: "mysqldump"}
}

// Name implements backup.Source.
func (s *MySQLSource) Name() string {
	return "mysql"
}

// dumpArgs builds the mysqldump argument list. The password travels
// via MYSQL_PWD instead of the command line, argv is world-readable
// in /proc.
func (s *MySQLSource) dumpArgs() []string {
	mysql := s.settings.Output.MySQL
	args := []string{
		"--host=" + mysql.Host,
		"--port=" + mysql.Port,
		"--user=" + mysql.Username,
		"--single-transaction",
		"--quick",
		"--routines",
		mysql.Database,
	}
	return args
}

// Snapshot runs mysqldump into a temp file.
func (s *MySQLSource) Snapshot(ctx context.Context) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "mysql-snapshot-*")
	if err != nil {
		return "", nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Build()
	}
	cleanup := func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			logger.Warn("failed to remove snapshot dir", "path", tempDir, "error", rmErr)
		}
	}

	dumpPath := filepath.Join(tempDir,
		"mousetube-mysql-"+time.Now().UTC().Format("20060102150405")+".sql")
	out, err := os.OpenFile(dumpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		cleanup()
		return "", nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryFileIO).
			Context("path", dumpPath).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.dumpBinary, s.dumpArgs()...)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+s.settings.Output.MySQL.Password)
	cmd.Stdout = out

	runErr := cmd.Run()
	if closeErr := out.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		cleanup()
		return "", nil, errors.New(runErr).
			Component("backup").
			Category(errors.CategoryDatabase).
			Context("binary", s.dumpBinary).
			Build()
	}

	info, err := os.Stat(dumpPath)
	if err != nil || info.Size() == 0 {
		cleanup()
		return "", nil, errors.Newf("mysqldump produced no output").
			Component("backup").
			Category(errors.CategoryDatabase).
			Build()
	}
	logger.Info("mysql snapshot created", "path", dumpPath, "bytes", info.Size())

	return dumpPath, cleanup, nil
}

// Validate implements backup.Source.
func (s *MySQLSource) Validate() error {
	mysql := s.settings.Output.MySQL
	if !mysql.Enabled {
		return errors.Newf("mysql backend is not enabled").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if mysql.Host == "" || mysql.Database == "" || mysql.Username == "" {
		return errors.Newf("mysql backup requires host, database and username").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := exec.LookPath(s.dumpBinary); err != nil {
		return errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("binary", s.dumpBinary).
			Build()
	}
	return nil
}
