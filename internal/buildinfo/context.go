// Package buildinfo carries build-time metadata injected at startup.
// Version and build date are linker-set in main and threaded through
// here so that configuration stays free of build artifacts.
package buildinfo

// UnknownValue is returned when a metadata field was never populated,
// for example in test binaries or plain `go build` output.
const UnknownValue = "unknown"

// BuildInfo exposes build-time metadata to consumers that should not
// depend on the concrete Context type, such as telemetry and the API.
type BuildInfo interface {
	// Version returns the release version string
	Version() string
	// BuildDate returns the build timestamp string
	BuildDate() string
	// SystemID returns the anonymous installation identifier
	SystemID() string
}

// Context is the canonical BuildInfo implementation. Fields are
// private so a Context is immutable after construction.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext assembles build metadata captured at process start.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{
		version:   version,
		buildDate: buildDate,
		systemID:  systemID,
	}
}

// Version implements BuildInfo. A nil or unpopulated Context reports
// UnknownValue rather than an empty string so log lines stay readable.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate implements BuildInfo.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID implements BuildInfo.
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}
