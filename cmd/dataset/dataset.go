// Package dataset provides the dataset management commands.
package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/importer"
)

// Command creates the dataset command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage recording datasets",
	}

	cmd.AddCommand(createCommand(settings))

	return cmd
}

func createCommand(settings *conf.Settings) *cobra.Command {
	var createdBy string

	cmd := &cobra.Command{
		Use:   "create <name> <session-list-file>",
		Short: "Create a dataset from a list of recording sessions",
		Long:  "Build a dataset from a file naming one recording session per line, by numeric ID or by exact name. The dataset collects the recordings of every listed session.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), settings, args[0], args[1], createdBy)
		},
	}

	cmd.Flags().StringVar(&createdBy, "created-by", "", "Username recorded as the dataset creator")

	return cmd
}

func runCreate(ctx context.Context, settings *conf.Settings, name, listPath, createdBy string) error {
	ds, err := datastore.New(settings)
	if err != nil {
		return fmt.Errorf("failed to select database backend: %w", err)
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = ds.Close() }()

	dataset, err := importer.New(ds).CreateDatasetFromFile(ctx, name, listPath, createdBy)
	if err != nil {
		return err
	}

	fmt.Printf("Created dataset %q with id %d\n", dataset.Name, dataset.ID)
	return nil
}
