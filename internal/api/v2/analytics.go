// analytics.go: page view tracking and catalog statistics. Aggregates
// are cached for a few minutes, the counters move slowly.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	overviewCacheKey      = "analytics:overview"
	speciesCountsCacheKey = "analytics:species"
	recentRecordingsLimit = 10
)

func (c *Controller) initAnalyticsRoutes() {
	g := c.Group

	g.POST("/track", c.TrackPageView, c.rateLimited(20, 40))
	g.GET("/analytics/overview", c.AnalyticsOverview)
	g.GET("/analytics/species", c.AnalyticsSpecies)
	g.GET("/analytics/pageviews", c.AnalyticsPageViews, c.adminRequired())
}

// TrackPageView bumps the daily counter for one frontend route.
func (c *Controller) TrackPageView(ctx echo.Context) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	path := strings.TrimSpace(req.Path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return c.HandleError(ctx, nil, "A path starting with / is required", http.StatusBadRequest)
	}

	day := time.Now().Format("2006-01-02")
	if err := c.DS.TrackPageView(path, day); err != nil {
		return c.writeStoreError(ctx, err, nil, "page view")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AnalyticsOverview returns catalog totals and the latest additions
// for the landing page.
func (c *Controller) AnalyticsOverview(ctx echo.Context) error {
	if cached, found := c.listCache.Get(overviewCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	totals, err := c.DS.GetCatalogTotals()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "analytics")
	}
	recent, err := c.DS.GetRecentRecordings(recentRecordingsLimit)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "analytics")
	}

	overview := map[string]any{
		"totals": totals,
		"recent": recent,
	}
	c.listCache.SetDefault(overviewCacheKey, overview)
	return ctx.JSON(http.StatusOK, overview)
}

// AnalyticsSpecies returns recording counts per species.
func (c *Controller) AnalyticsSpecies(ctx echo.Context) error {
	if cached, found := c.listCache.Get(speciesCountsCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	counts, err := c.DS.GetRecordingCountsBySpecies()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "analytics")
	}
	c.listCache.SetDefault(speciesCountsCacheKey, counts)
	return ctx.JSON(http.StatusOK, counts)
}

// AnalyticsPageViews reports the accumulated view count of one path.
func (c *Controller) AnalyticsPageViews(ctx echo.Context) error {
	path := ctx.QueryParam("path")
	if path == "" {
		return c.HandleError(ctx, nil, "A path query parameter is required", http.StatusBadRequest)
	}

	views, err := c.DS.GetPageViews(path)
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "page view")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"path":  path,
		"views": views,
	})
}
