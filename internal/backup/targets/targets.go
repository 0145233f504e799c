package targets

import (
	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// ForConfig builds a backup target from one entry of the configured
// target list. Disabled entries return (nil, nil).
func ForConfig(target *conf.BackupTarget) (backup.Target, error) {
	if !target.Enabled {
		return nil, nil
	}

	switch target.Type {
	case "local":
		path, _ := target.Settings["path"].(string)
		return NewLocalTarget(LocalConfig{Path: path})
	case "ftp":
		return NewFTPTargetFromMap(target.Settings)
	case "sftp":
		return NewSFTPTargetFromMap(target.Settings)
	default:
		return nil, errors.Newf("unknown backup target type: %s", target.Type).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("type", target.Type).
			Build()
	}
}
