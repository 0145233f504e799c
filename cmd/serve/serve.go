// Package serve provides the command running the catalog API server.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	backupcmd "github.com/mousetube/mousetube-go/cmd/backup"
	"github.com/mousetube/mousetube-go/internal/backup"
	"github.com/mousetube/mousetube-go/internal/buildinfo"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/server"
	"github.com/mousetube/mousetube-go/internal/telemetry"
)

// Command creates the serve command for the catalog API.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mouseTube catalog API",
		Long:  "Start the HTTP API together with the upload pipeline, the scheduled media cleanup and, when enabled, the daily backups.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Media.BasePath, "media", viper.GetString("media.basepath"), "Path to the media tree holding uploaded recordings")
	cmd.Flags().StringVar(&settings.Security.Host, "host", viper.GetString("security.host"), "Public hostname of this instance")
	cmd.Flags().BoolVar(&settings.Security.AutoTLS, "autotls", viper.GetBool("security.autotls"), "Obtain a TLS certificate via Let's Encrypt")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func runServe(settings *conf.Settings) error {
	logger := logging.ForService("serve")
	if logger == nil {
		logger = slog.Default().With("service", "serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := buildContext(settings, logger)
	logger.Info("starting mouseTube catalog service",
		"version", build.Version(),
		"build_date", build.BuildDate())

	if err := telemetry.InitSentry(settings, build); err != nil {
		return fmt.Errorf("failed to initialize error telemetry: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	ds, err := datastore.New(settings)
	if err != nil {
		return fmt.Errorf("failed to select database backend: %w", err)
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := ds.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	srv, err := server.New(settings, ds, metrics)
	if err != nil {
		return err
	}

	if settings.Backup.Enabled {
		manager, mgrErr := backupcmd.BuildManager(ctx, settings, false)
		if mgrErr != nil {
			return mgrErr
		}
		scheduler, schedErr := backup.NewScheduler(manager, settings.Backup.Schedule)
		if schedErr != nil {
			return schedErr
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	return srv.Start(ctx)
}

// buildContext assembles the build metadata handed to telemetry. A
// missing system ID is not fatal, the accessors fall back to "unknown".
func buildContext(settings *conf.Settings, logger *slog.Logger) *buildinfo.Context {
	systemID := ""
	if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
		id, idErr := telemetry.LoadOrCreateSystemID(paths[0])
		if idErr != nil {
			logger.Warn("failed to load the system ID", "error", idErr)
		} else {
			systemID = id
		}
	}
	return buildinfo.NewContext(settings.Version, settings.BuildDate, systemID)
}
