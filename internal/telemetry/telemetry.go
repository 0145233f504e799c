// Package telemetry provides opt-in, privacy-compliant error reporting
// through Sentry. Nothing is sent unless the operator enables it and
// supplies their own project DSN.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mousetube/mousetube-go/internal/buildinfo"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
)

const flushTimeout = 2 * time.Second

var (
	logger      *slog.Logger
	initialized atomic.Bool
)

func init() {
	logger = logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default().With("service", "telemetry")
	}
}

// PlatformInfo holds privacy-safe platform facts attached to events.
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	Container    bool   `json:"container"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Container:    conf.RunningInContainer(),
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK and hooks it into the errors
// package. Disabled settings make this a no-op. Build metadata from
// info ends up in the release string and the event scope.
func InitSentry(settings *conf.Settings, info buildinfo.BuildInfo) error {
	if !settings.Sentry.Enabled {
		logger.Info("error telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("telemetry enabled but no Sentry DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if info == nil {
		info = (*buildinfo.Context)(nil) // nil-safe accessors report "unknown"
	}

	release := fmt.Sprintf("mousetube-go@%s", info.Version())
	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,

		// Privacy-compliant settings
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // never leak the hostname

		Release:    release,
		BeforeSend: beforeSend,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureScope(info)
	initialized.Store(true)

	// From here on enhanced errors flow to Sentry
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	logger.Info("error telemetry initialized",
		"release", release,
		"system_id", info.SystemID())
	return nil
}

// configureScope tags every event with the installation identifier and
// privacy-safe platform facts.
func configureScope(build buildinfo.BuildInfo) {
	platform := collectPlatformInfo()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.SystemID())
		scope.SetTag("version", build.Version())
		scope.SetTag("os", platform.OS)
		scope.SetTag("arch", platform.Architecture)
		scope.SetTag("container", fmt.Sprintf("%t", platform.Container))
		scope.SetContext("application", map[string]any{
			"name":      "mousetube-go",
			"version":   build.Version(),
			"system_id": build.SystemID(),
		})
		scope.SetContext("platform", map[string]any{
			"num_cpu":    platform.NumCPU,
			"go_version": platform.GoVersion,
		})
	})
}

// beforeSend strips identifying data from every outgoing event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// IsInitialized reports whether Sentry is active.
func IsInitialized() bool {
	return initialized.Load()
}

// CaptureMessage sends a plain message when telemetry is active.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !initialized.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		if component != "" {
			scope.SetTag("component", component)
		}
		sentry.CaptureMessage(message)
	})
}

// CaptureError sends an error when telemetry is active.
func CaptureError(err error, component string) {
	if !initialized.Load() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if component != "" {
			scope.SetTag("component", component)
		}
		sentry.CaptureException(err)
	})
}

// Flush drains pending events, bounded by flushTimeout. Call on shutdown.
func Flush() {
	if !initialized.Load() {
		return
	}
	if !sentry.Flush(flushTimeout) {
		logger.Warn("telemetry flush timed out, some events may be lost")
	}
}
