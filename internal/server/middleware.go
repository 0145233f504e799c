package server

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// configureMiddleware sets up the middleware stack for the server.
func (s *Server) configureMiddleware() {
	if s.Settings.Security.RedirectToHTTPS {
		s.Echo.Pre(middleware.HTTPSRedirect())
	}

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.SecureHeadersMiddleware())
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(s.CacheControlMiddleware())
	s.Echo.Use(s.LoggingMiddleware())
}

// SecureHeadersMiddleware sets the baseline security headers. HSTS is
// only advertised when the server terminates TLS itself.
func (s *Server) SecureHeadersMiddleware() echo.MiddlewareFunc {
	config := middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}
	if s.Settings.Security.AutoTLS {
		config.HSTSMaxAge = 31536000
	}
	return middleware.SecureWithConfig(config)
}

// GzipMiddleware configures Gzip compression for the server. Audio
// payloads and spectrogram PNGs are already compressed, recompressing
// them burns CPU for no gain.
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/v2/media/") ||
				strings.HasSuffix(path, "/audio") ||
				strings.HasSuffix(path, "/spectrogram")
		},
	})
}

// CacheControlMiddleware sets cache control headers based on the
// request path.
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			switch {
			case strings.HasPrefix(path, "/api/v2/media/audio"),
				strings.HasPrefix(path, "/api/v2/recordings/") && strings.HasSuffix(path, "/audio"):
				c.Response().Header().Set("Cache-Control", "no-store")
				c.Response().Header().Set("X-Content-Type-Options", "nosniff")
				c.Response().Header().Set("Accept-Ranges", "bytes")
			case strings.HasPrefix(path, "/api/v2/media/spectrogram"),
				strings.HasPrefix(path, "/api/v2/recordings/") && strings.HasSuffix(path, "/spectrogram"):
				// Spectrograms are immutable renders, cache for 30 days.
				c.Response().Header().Set("Cache-Control", "public, max-age=2592000, immutable")
			case strings.HasPrefix(path, "/api/v2/"):
				c.Response().Header().Set("Cache-Control", "no-store")
				c.Response().Header().Set("Pragma", "no-cache")
				c.Response().Header().Set("Expires", "0")
			default:
				c.Response().Header().Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware emits one structured line per request when the web
// logger is enabled. Server errors log at error level, client errors at
// warn, the rest at info.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.webLogger == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			latency := time.Since(start)

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"ip", c.RealIP(),
				"latency_ms", latency.Milliseconds(),
				"bytes_out", res.Size,
			}
			if ua := req.UserAgent(); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}

			switch {
			case res.Status >= 500:
				s.webLogger.Error("request", attrs...)
			case res.Status >= 400:
				s.webLogger.Warn("request", attrs...)
			default:
				s.webLogger.Info("request", attrs...)
			}

			return err
		}
	}
}
