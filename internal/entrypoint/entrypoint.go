// Package entrypoint renders the nginx proxy configuration from its
// template and hands the process over to nginx. It backs the container
// entrypoint of the proxy image.
package entrypoint

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

const (
	DefaultTemplatePath = "/etc/nginx/templates/default.conf.template"
	DefaultOutputPath   = "/etc/nginx/conf.d/default.conf"
)

// DefaultArgv is the nginx invocation that keeps the container in the
// foreground.
func DefaultArgv() []string {
	return []string{"nginx", "-g", "daemon off;"}
}

var logger *slog.Logger

func init() {
	logger = logging.ForService("entrypoint")
	if logger == nil {
		logger = slog.Default().With("service", "entrypoint")
	}
}

// Config carries the render inputs and the command to hand over to.
// The zero value is completed with the defaults above; tests override
// the paths and swap exec for a recorder.
type Config struct {
	TemplatePath string
	OutputPath   string
	Argv         []string

	// Exec replaces the current process with the given command. Nil
	// selects the platform implementation.
	Exec func(argv []string) error
}

// Run substitutes the DOMAIN environment variable into the nginx
// template, writes the rendered configuration and execs nginx. It
// returns only on error: on success the process image is replaced.
func Run(cfg *Config) error {
	domain := os.Getenv("DOMAIN")
	if domain == "" {
		return errors.Newf("DOMAIN environment variable is not set").
			Component("entrypoint").
			Category(errors.CategoryConfiguration).
			Build()
	}

	templatePath := cfg.TemplatePath
	if templatePath == "" {
		templatePath = DefaultTemplatePath
	}
	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = DefaultOutputPath
	}
	argv := cfg.Argv
	if len(argv) == 0 {
		argv = DefaultArgv()
	}

	if err := render(templatePath, outputPath, domain); err != nil {
		return err
	}
	logger.Info("proxy configuration rendered",
		"domain", domain, "template", templatePath, "output", outputPath)

	execFn := cfg.Exec
	if execFn == nil {
		execFn = execImpl
	}
	if err := execFn(argv); err != nil {
		return errors.New(err).
			Component("entrypoint").
			Category(errors.CategorySystem).
			Context("argv0", argv[0]).
			Build()
	}
	return nil
}

// render performs the substitution. Both $DOMAIN and ${DOMAIN} forms
// are replaced, everything else in the template passes through
// untouched so nginx runtime variables survive.
func render(templatePath, outputPath, domain string) error {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return errors.New(err).
			Component("entrypoint").
			Category(errors.CategoryFileIO).
			Context("template", templatePath).
			Build()
	}

	replacer := strings.NewReplacer("${DOMAIN}", domain, "$DOMAIN", domain)
	rendered := replacer.Replace(string(template))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.New(err).
			Component("entrypoint").
			Category(errors.CategoryFileIO).
			Context("output", outputPath).
			Build()
	}
	if err := os.WriteFile(outputPath, []byte(rendered), 0o644); err != nil { //nolint:gosec // nginx must read it
		return errors.New(err).
			Component("entrypoint").
			Category(errors.CategoryFileIO).
			Context("output", outputPath).
			Build()
	}
	// WriteFile's mode passes through the umask.
	if err := os.Chmod(outputPath, 0o644); err != nil {
		return errors.New(err).
			Component("entrypoint").
			Category(errors.CategoryFileIO).
			Context("output", outputPath).
			Build()
	}
	return nil
}
