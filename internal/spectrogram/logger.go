package spectrogram

import (
	"log/slog"

	"github.com/mousetube/mousetube-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("spectrogram")
	if logger == nil {
		logger = slog.Default().With("service", "spectrogram")
	}
}

// getLogger returns the package-level structured logger.
func getLogger() *slog.Logger {
	return logger
}
