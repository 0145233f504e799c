// Package api implements the /api/v2 JSON interface of the catalog:
// vocabulary and recording CRUD, uploads, search, account flows and the
// administrative system endpoints.
package api

import (
	"crypto/rand"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/diskmanager"
	"github.com/mousetube/mousetube-go/internal/ingest"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/mail"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/mqtt"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/security"
	"github.com/mousetube/mousetube-go/internal/spectrogram"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Store    *mediastore.Store
	Security *security.Manager

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error

	metrics   *observability.Metrics
	generator *spectrogram.Generator
	processor *ingest.Processor
	mailer    *mail.Mailer
	mqttSvc   *mqtt.Service
	depositor ingest.Depositor

	// listCache holds hot read-mostly responses: analytics and the
	// vocabulary lists the front end polls.
	listCache *cache.Cache
	startTime time.Time
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithProcessor attaches the ingest processor used by the upload and
// reprocess endpoints.
func WithProcessor(p *ingest.Processor) Option {
	return func(c *Controller) { c.processor = p }
}

// WithMailer attaches the transactional mailer for account flows.
func WithMailer(m *mail.Mailer) Option {
	return func(c *Controller) { c.mailer = m }
}

// WithDepositor attaches the archive depositor behind the publish
// endpoint.
func WithDepositor(d ingest.Depositor) Option {
	return func(c *Controller) { c.depositor = d }
}

// WithMQTT attaches the MQTT service for the connection test endpoint.
func WithMQTT(s *mqtt.Service) Option {
	return func(c *Controller) { c.mqttSvc = s }
}

// ipExtractorFromProxyHeader resolves the client IP behind the nginx
// proxy: X-Forwarded-For first, then X-Real-IP, then the socket peer.
// Only meaningful when the proxy is the sole way to reach the server.
func ipExtractorFromProxyHeader(req *http.Request) string {
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		for part := range strings.SplitSeq(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := req.Header.Get(echo.HeaderXRealIP); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	remoteAddr, _, _ := net.SplitHostPort(req.RemoteAddr)
	if ip := net.ParseIP(remoteAddr); ip != nil {
		return ip.String()
	}
	return remoteAddr
}

// New creates the API controller and registers all routes on the
// /api/v2 group.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	store *mediastore.Store, sec *security.Manager, logger *log.Logger,
	metrics *observability.Metrics, opts ...Option) (*Controller, error) {
	return NewWithOptions(e, ds, settings, store, sec, logger, metrics, true, opts...)
}

// NewWithOptions creates the controller with optional route
// registration. Tests that exercise handlers directly pass false.
func NewWithOptions(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	store *mediastore.Store, sec *security.Manager, logger *log.Logger,
	metrics *observability.Metrics, initializeRoutes bool, opts ...Option) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	e.IPExtractor = ipExtractorFromProxyHeader

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Store:     store,
		Security:  sec,
		logger:    logger,
		metrics:   metrics,
		generator: spectrogram.New(settings, store),
		listCache: cache.New(5*time.Minute, 10*time.Minute),
		startTime: time.Now(),
	}

	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	if settings.WebServer.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	}

	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: failed to initialize API structured logger: %v", err)
		c.apiLogger = slog.Default().With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// LoggingMiddleware logs API requests through the structured logger.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API request", attrs...)
			return err
		}
	}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"catalog routes", c.initCatalogRoutes},
		{"equipment routes", c.initEquipmentRoutes},
		{"recording routes", c.initRecordingRoutes},
		{"session routes", c.initSessionRoutes},
		{"dataset routes", c.initDatasetRoutes},
		{"search routes", c.initSearchRoutes},
		{"analytics routes", c.initAnalyticsRoutes},
		{"user routes", c.initUserRoutes},
		{"media routes", c.initMediaRoutes},
		{"system routes", c.initSystemRoutes},
		{"auth routes", c.initAuthRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s", initializer.name)
		initializer.fn()
	}
}

// HealthCheck reports service liveness and database connectivity.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	dbStatus := "connected"
	if _, err := c.DS.GetCatalogTotals(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	// storage details only for probes from the local network
	if security.IsInLocalSubnet(net.ParseIP(ctx.RealIP())) {
		if usage, err := diskmanager.GetDiskUsage(c.Settings.Media.BasePath); err == nil {
			response["media_disk_used_percent"] = usage
		}
		if c.processor != nil {
			response["ingest_queue"] = c.processor.QueueStats()
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
	if c.listCache != nil {
		c.listCache.Flush()
	}
	c.Debug("API controller shut down")
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an API error response with a correlation id
// for matching client reports to server logs.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

const correlationIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCorrelationID() string {
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = correlationIDCharset[int(b[i])%len(correlationIDCharset)]
	}
	return string(b)
}

// HandleError logs the error and returns the JSON error envelope.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs a debug message when the web server debug flag is on.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

// logAPIRequest logs a handler event with the common request fields.
func (c *Controller) logAPIRequest(ctx echo.Context, level slog.Level, msg string, args ...any) {
	if c.apiLogger == nil {
		return
	}

	baseAttrs := []any{
		"path", ctx.Request().URL.Path,
		"ip", ctx.RealIP(),
	}
	baseAttrs = append(baseAttrs, args...)

	c.apiLogger.Log(ctx.Request().Context(), level, msg, baseAttrs...)
}
