package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mousetube/mousetube-go/cmd/authors"
	"github.com/mousetube/mousetube-go/cmd/backup"
	"github.com/mousetube/mousetube-go/cmd/dataset"
	"github.com/mousetube/mousetube-go/cmd/entrypoint"
	"github.com/mousetube/mousetube-go/cmd/importer"
	"github.com/mousetube/mousetube-go/cmd/license"
	"github.com/mousetube/mousetube-go/cmd/serve"
	"github.com/mousetube/mousetube-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mousetube",
		Short: "mouseTube catalog service CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings),
		entrypoint.Command(),
		importer.Command(settings),
		dataset.Command(settings),
		backup.Command(settings),
		authors.Command(),
		license.Command(),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port for the HTTP API")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
