// Package backup provides the backup command for the catalog service.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/backup/sources"
	"github.com/mousetube/mousetube-go/internal/backup/targets"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/logging"
)

const runTimeout = 10 * time.Minute

// Command creates and returns the backup command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Perform an immediate backup of the catalog and configuration",
		Long:  `Backup uses the configured backup settings to create an immediate snapshot of the catalog database and the sanitized configuration, and ships the archive to every configured target.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(settings)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the backups stored in the configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listBackups(settings)
		},
	})

	return cmd
}

// BuildManager assembles a backup manager from the settings: the
// snapshot source matching the active database backend plus every
// enabled target. With strict set, a target that fails validation
// aborts; otherwise it is skipped with a warning so the API can start
// while a backup host is down.
func BuildManager(ctx context.Context, settings *conf.Settings, strict bool) (*backup.Manager, error) {
	manager := backup.NewManager(settings, settings.Version)

	var source backup.Source
	switch {
	case settings.Output.SQLite.Enabled:
		source = sources.NewSQLiteSource(settings)
	case settings.Output.MySQL.Enabled:
		source = sources.NewMySQLSource(settings)
	}
	if source != nil {
		if err := manager.RegisterSource(source); err != nil {
			return nil, fmt.Errorf("failed to register backup source: %w", err)
		}
	}

	logger := logging.ForService("backup")
	for i := range settings.Backup.Targets {
		target, err := targets.ForConfig(&settings.Backup.Targets[i])
		if err == nil && target == nil {
			continue // disabled
		}
		if err == nil {
			err = manager.RegisterTarget(ctx, target)
		}
		if err != nil {
			if strict {
				return nil, fmt.Errorf("failed to register backup target: %w", err)
			}
			if logger != nil {
				logger.Warn("skipping backup target",
					"type", settings.Backup.Targets[i].Type, "error", err)
			}
		}
	}

	return manager, nil
}

func runBackup(settings *conf.Settings) error {
	if !settings.Backup.Enabled {
		return fmt.Errorf("backup functionality is not enabled in configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	manager, err := BuildManager(ctx, settings, true)
	if err != nil {
		return err
	}

	if err := manager.RunBackup(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Println("Backup completed successfully")
	return nil
}

func listBackups(settings *conf.Settings) error {
	if !settings.Backup.Enabled {
		return fmt.Errorf("backup functionality is not enabled in configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	manager, err := BuildManager(ctx, settings, true)
	if err != nil {
		return err
	}

	backups, err := manager.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		fmt.Println("No backups stored")
		return nil
	}

	for i := range backups {
		b := &backups[i]
		fmt.Printf("%s  %s  %d bytes  target=%s\n",
			b.Timestamp.Format(time.RFC3339), b.ID, b.Size, b.Target)
	}
	return nil
}
