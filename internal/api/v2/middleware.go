// middleware.go: shared route middleware for the API group.
package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// MetricsMiddleware records request counts and durations per route
// pattern. The pattern keeps the label cardinality bounded, raw URLs
// would not.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil {
				return next(ctx)
			}

			start := time.Now()
			c.metrics.HTTP.RequestStarted()
			defer c.metrics.HTTP.RequestFinished()

			err := next(ctx)

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			method := ctx.Request().Method
			c.metrics.HTTP.RecordHTTPRequest(method, path, ctx.Response().Status, time.Since(start).Seconds())
			if err != nil {
				c.metrics.HTTP.RecordHTTPRequestError(method, path, "handler")
			}
			return err
		}
	}
}

// authRequired guards mutating endpoints.
func (c *Controller) authRequired() echo.MiddlewareFunc {
	return c.Security.RequireAuth
}

// adminRequired guards destructive and administrative endpoints.
func (c *Controller) adminRequired() echo.MiddlewareFunc {
	return c.Security.RequireAdmin
}

// rateLimited shields an endpoint from brute force. Used on the login
// and account endpoints that accept secrets or send email.
func (c *Controller) rateLimited(perSecond float64, burst int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
	})
}
