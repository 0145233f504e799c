// Package entrypoint provides the proxy container entrypoint command.
package entrypoint

import (
	"github.com/spf13/cobra"

	"github.com/mousetube/mousetube-go/internal/entrypoint"
)

// Command creates the entrypoint command rendering the nginx
// configuration for $DOMAIN and handing the process over to nginx.
func Command() *cobra.Command {
	cfg := &entrypoint.Config{}

	cmd := &cobra.Command{
		Use:   "entrypoint",
		Short: "Render the nginx proxy configuration and exec nginx",
		Long:  "Container entrypoint for the proxy image: substitutes the DOMAIN environment variable into the nginx template, writes the rendered configuration and replaces this process with nginx. Fails before starting nginx when DOMAIN is unset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.TemplatePath, "template", entrypoint.DefaultTemplatePath, "Path to the nginx configuration template")
	cmd.Flags().StringVar(&cfg.OutputPath, "output", entrypoint.DefaultOutputPath, "Path the rendered configuration is written to")
	cmd.Flags().StringArrayVar(&cfg.Argv, "nginx", entrypoint.DefaultArgv(), "nginx command to exec, repeat the flag per argument")

	return cmd
}
