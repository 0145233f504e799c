// Package server wires the catalog API, the media tree and the
// background subsystems behind a single Echo instance.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/acme/autocert"

	api "github.com/mousetube/mousetube-go/internal/api/v2"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/diskmanager"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/events"
	"github.com/mousetube/mousetube-go/internal/ingest"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/mail"
	"github.com/mousetube/mousetube-go/internal/mediastore"
	"github.com/mousetube/mousetube-go/internal/mqtt"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/security"
	"github.com/mousetube/mousetube-go/internal/spectrogram"
	"github.com/mousetube/mousetube-go/internal/zenodo"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

var logger *slog.Logger

func init() {
	logger = logging.ForService("server")
	if logger == nil {
		logger = slog.Default().With("service", "server")
	}
}

// Server encapsulates the Echo instance and the subsystems it serves.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings
	Store    *mediastore.Store
	Security *security.Manager
	API      *api.Controller

	Processor *ingest.Processor
	Mailer    *mail.Mailer
	MQTT      *mqtt.Service
	Janitor   *diskmanager.Janitor

	metrics         *observability.Metrics
	metricsEndpoint *observability.Endpoint

	// Structured logger for web operations, backed by a rotating file
	// when webserver logging is enabled.
	webLogger      *slog.Logger
	webLoggerClose func() error

	quitChan  chan struct{}
	quitOnce  sync.Once
	bgWG      sync.WaitGroup
	startTime time.Time
}

// New builds the HTTP server and its subsystems from settings. The
// datastore must be open; metrics may be nil when observability is
// disabled.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) (*Server, error) {
	configureDefaultSettings(settings)

	store, err := mediastore.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open media tree: %w", err)
	}

	configDir := ""
	if configPaths, pathErr := conf.GetDefaultConfigPaths(); pathErr == nil && len(configPaths) > 0 {
		configDir = configPaths[0]
	}

	sec, err := security.NewManager(settings, ds, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize security manager: %w", err)
	}

	var generator *spectrogram.Generator
	if settings.Media.Spectrogram.Enabled {
		generator = spectrogram.New(settings, store)
	}

	var depositor ingest.Depositor
	if settings.Zenodo.Enabled {
		client, clientErr := zenodo.NewClient(&settings.Zenodo)
		if clientErr != nil {
			return nil, fmt.Errorf("failed to initialize archive client: %w", clientErr)
		}
		depositor = zenodo.NewDepositor(client, ds, store, &settings.Zenodo)
	}

	s := &Server{
		Echo:      echo.New(),
		DS:        ds,
		Settings:  settings,
		Store:     store,
		Security:  sec,
		Processor: ingest.New(settings, ds, store, generator, depositor, metrics),
		metrics:   metrics,
		quitChan:  make(chan struct{}),
		startTime: time.Now(),
	}
	s.Echo.HideBanner = true

	if settings.Mail.Enabled {
		mailer, mailErr := mail.NewMailer(settings, ds, metrics)
		if mailErr != nil {
			return nil, fmt.Errorf("failed to initialize mailer: %w", mailErr)
		}
		s.Mailer = mailer
	}

	if settings.MQTT.Enabled {
		svc, mqttErr := mqtt.NewService(settings, metrics)
		if mqttErr != nil {
			return nil, fmt.Errorf("failed to initialize MQTT service: %w", mqttErr)
		}
		s.MQTT = svc
	}

	if settings.Media.Cleanup.Enabled {
		janitor, janErr := diskmanager.NewJanitor(settings, store)
		if janErr != nil {
			return nil, fmt.Errorf("failed to initialize cleanup janitor: %w", janErr)
		}
		s.Janitor = janitor
	}

	if settings.Telemetry.Enabled && metrics != nil {
		endpoint, epErr := observability.NewEndpoint(settings, metrics)
		if epErr != nil {
			return nil, fmt.Errorf("failed to initialize telemetry endpoint: %w", epErr)
		}
		s.metricsEndpoint = endpoint
	}

	s.initLogger()
	s.configureMiddleware()

	opts := []api.Option{api.WithProcessor(s.Processor)}
	if s.Mailer != nil {
		opts = append(opts, api.WithMailer(s.Mailer))
	}
	if depositor != nil {
		opts = append(opts, api.WithDepositor(depositor))
	}
	if s.MQTT != nil {
		opts = append(opts, api.WithMQTT(s.MQTT))
	}

	controller, err := api.New(s.Echo, ds, settings, store, sec, log.Default(), metrics, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API: %w", err)
	}
	s.API = controller

	return s, nil
}

// Start launches the background subsystems and the HTTP listener, then
// blocks until the context is cancelled or the listener fails. On
// cancellation the server shuts down gracefully before returning.
func (s *Server) Start(ctx context.Context) error {
	if _, err := events.Initialize(nil); err != nil {
		logger.Warn("event bus initialization failed, notifications disabled", "error", err)
	}

	s.Processor.Start(ctx)

	if s.MQTT != nil {
		if err := s.MQTT.Start(ctx); err != nil {
			logger.Warn("MQTT service failed to start", "error", err)
		}
	}

	if s.Janitor != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.Janitor.Run(ctx)
		}()
	}

	if s.metricsEndpoint != nil {
		s.metricsEndpoint.Start(&s.bgWG, s.quitChan)
	}

	errChan := make(chan error, 1)
	go func() {
		var err error

		if s.Settings.Security.AutoTLS {
			configPaths, configErr := conf.GetDefaultConfigPaths()
			if configErr != nil {
				errChan <- fmt.Errorf("failed to get config paths: %w", configErr)
				return
			}

			s.Echo.AutoTLSManager.Prompt = autocert.AcceptTOS
			s.Echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
			s.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.Settings.Security.Host)

			err = s.Echo.StartAutoTLS(":" + s.Settings.WebServer.Port)
		} else {
			err = s.Echo.Start(":" + s.Settings.WebServer.Port)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	logger.Info("HTTP server started",
		"port", s.Settings.WebServer.Port,
		"auto_tls", s.Settings.Security.AutoTLS)

	select {
	case err := <-errChan:
		// Listener died on its own, still release the subsystems.
		if shutdownErr := s.Shutdown(); shutdownErr != nil {
			logger.Error("shutdown after listener failure", "error", shutdownErr)
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests, then stops the subsystems in
// reverse start order. Safe to call more than once.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Echo.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown timed out, forcing close", "error", err)
		if closeErr := s.Echo.Close(); closeErr != nil {
			logger.Error("failed to close listener", "error", closeErr)
		}
	}

	if s.MQTT != nil {
		s.MQTT.Stop()
	}

	if err := s.Processor.Stop(); err != nil {
		logger.Warn("ingest processor stop", "error", err)
	}

	if bus := events.GetBus(); bus != nil {
		if err := bus.Shutdown(5 * time.Second); err != nil {
			logger.Warn("event bus shutdown", "error", err)
		}
	}

	if s.API != nil {
		s.API.Shutdown()
	}

	s.quitOnce.Do(func() { close(s.quitChan) })
	s.bgWG.Wait()

	if s.webLoggerClose != nil {
		if err := s.webLoggerClose(); err != nil {
			logger.Error("failed to close web log file", "error", err)
		}
	}

	logger.Info("server stopped", "uptime", time.Since(s.startTime).Round(time.Second).String())
	return nil
}

// configureDefaultSettings fills in server settings left empty.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8000"
	}
}

// initLogger wires the structured web request logger when enabled.
func (s *Server) initLogger() {
	if !s.Settings.WebServer.Log.Enabled {
		return
	}

	webLogPath := s.Settings.WebServer.Log.Path
	if webLogPath == "" {
		webLogPath = "logs/web.log"
	}

	level := slog.LevelInfo
	if s.Settings.WebServer.Debug {
		level = slog.LevelDebug
	}

	webLogger, closeFunc, err := logging.NewFileLogger(webLogPath, "web", level)
	if err != nil {
		logger.Warn("failed to initialize web request logger", "path", webLogPath, "error", err)
		return
	}
	s.webLogger = webLogger
	s.webLoggerClose = closeFunc

	// Request logging goes through our middleware, silence Echo's own
	// logger so lines are not emitted twice.
	s.Echo.Logger.SetOutput(io.Discard)
	s.Echo.Logger.SetLevel(99)
}

// Debug logs a debug message when webserver debug mode is on.
func (s *Server) Debug(format string, v ...any) {
	if !s.Settings.WebServer.Debug {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	if s.webLogger != nil {
		s.webLogger.Debug(msg)
		return
	}
	logger.Debug(msg)
}
