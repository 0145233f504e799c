// Package importer loads catalog vocabulary and legacy site data from
// files. It backs the import and dataset commands.
package importer

import (
	"log/slog"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("importer")
	if logger == nil {
		logger = slog.Default().With("service", "importer")
	}
}

// Importer runs file imports against the catalog database.
type Importer struct {
	ds datastore.Interface
}

// New creates an importer writing to the given datastore.
func New(ds datastore.Interface) *Importer {
	return &Importer{ds: ds}
}

// Result summarizes one import run.
type Result struct {
	Created int
	Updated int
	Skipped int
}

// Total returns the number of rows touched by the run.
func (r *Result) Total() int {
	return r.Created + r.Updated + r.Skipped
}
