// Package importer provides the import command loading vocabulary and
// legacy site data into the catalog.
package importer

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/importer"
)

// Command creates the import command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load vocabulary and legacy data into the catalog",
	}

	cmd.AddCommand(
		subcommand(settings, "legacy <dump.sql>",
			"Import user accounts from a v0 site database dump",
			func(i *importer.Importer) runFunc { return i.ImportLegacyUsers }),
		subcommand(settings, "species <species.csv>",
			"Import species from a CSV with a name column",
			func(i *importer.Importer) runFunc { return i.ImportSpecies }),
		subcommand(settings, "strains <strains.csv>",
			"Import strains from a CSV with name, species, background and bibliography columns",
			func(i *importer.Importer) runFunc { return i.ImportStrains }),
		subcommand(settings, "metadata <metadata.csv>",
			"Import metadata vocabulary entries from a CSV with name, field and description columns",
			func(i *importer.Importer) runFunc { return i.ImportMetadataVocabulary }),
		subcommand(settings, "schema <schema.json>",
			"Import metadata categories and fields from a JSON schema",
			func(i *importer.Importer) runFunc { return i.ImportMetadataSchema }),
		subcommand(settings, "protocols <protocols.csv>",
			"Import protocols from a CSV with name, description and metadata columns",
			func(i *importer.Importer) runFunc { return i.ImportProtocols }),
	)

	return cmd
}

type runFunc func(ctx context.Context, path string) (*importer.Result, error)

// subcommand builds one file-driven import subcommand. Every importer
// takes a single path argument and reports created/updated/skipped
// counts.
func subcommand(settings *conf.Settings, use, short string, pick func(*importer.Importer) runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), settings, args[0], pick)
		},
	}
}

func runImport(ctx context.Context, settings *conf.Settings, path string, pick func(*importer.Importer) runFunc) error {
	ds, err := datastore.New(settings)
	if err != nil {
		return fmt.Errorf("failed to select database backend: %w", err)
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = ds.Close() }()

	result, err := pick(importer.New(ds))(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d rows: %d created, %d updated, %d skipped\n",
		result.Total(), result.Created, result.Updated, result.Skipped)
	return nil
}
