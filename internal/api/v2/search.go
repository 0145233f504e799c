// search.go: the combined recording search endpoint backing the
// public catalog browser.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

const (
	defaultSearchPageSize = 20
	maxSearchPageSize     = 100
)

// SearchRequest is the JSON body accepted by POST /search. Absent
// filters match everything.
type SearchRequest struct {
	Query           string `json:"query"`
	SpeciesID       *uint  `json:"species_id"`
	StrainID        *uint  `json:"strain_id"`
	SoftwareID      *uint  `json:"software_id"`
	SessionID       *uint  `json:"session_id"`
	Sex             string `json:"sex"`
	Genotype        string `json:"genotype"`
	SamplingRateMin int    `json:"sampling_rate_min"`
	SamplingRateMax int    `json:"sampling_rate_max"`
	DateStart       string `json:"date_start"`
	DateEnd         string `json:"date_end"`
	Status          string `json:"status"`
	Page            int    `json:"page"`
	PerPage         int    `json:"per_page"`
	SortBy          string `json:"sort_by"`
	SortAscending   bool   `json:"sort_ascending"`
}

// SearchResponse carries one page of results.
type SearchResponse struct {
	Results     []datastore.Recording `json:"results"`
	Total       int64                 `json:"total"`
	Pages       int                   `json:"pages"`
	CurrentPage int                   `json:"current_page"`
}

func (c *Controller) initSearchRoutes() {
	c.Group.POST("/search", c.HandleSearch)
}

// HandleSearch runs a filtered recording search and returns a page of
// results with the total match count.
func (c *Controller) HandleSearch(ctx echo.Context) error {
	var req SearchRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid search request", http.StatusBadRequest)
	}

	filters, err := req.toFilters()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid date filter", http.StatusBadRequest)
	}

	results, total, err := c.DS.SearchRecordings(filters)
	if err != nil {
		return c.HandleError(ctx, err, "Search failed", http.StatusInternalServerError)
	}

	pages := int((total + int64(filters.Limit) - 1) / int64(filters.Limit))
	return ctx.JSON(http.StatusOK, SearchResponse{
		Results:     results,
		Total:       total,
		Pages:       pages,
		CurrentPage: filters.Offset/filters.Limit + 1,
	})
}

// toFilters normalizes pagination and parses the date bounds.
func (r *SearchRequest) toFilters() (*datastore.RecordingSearchFilters, error) {
	page := max(r.Page, 1)
	perPage := r.PerPage
	if perPage < 1 {
		perPage = defaultSearchPageSize
	}
	perPage = min(perPage, maxSearchPageSize)

	filters := &datastore.RecordingSearchFilters{
		Query:           r.Query,
		SpeciesID:       r.SpeciesID,
		StrainID:        r.StrainID,
		SoftwareID:      r.SoftwareID,
		SessionID:       r.SessionID,
		Sex:             r.Sex,
		Genotype:        r.Genotype,
		SamplingRateMin: r.SamplingRateMin,
		SamplingRateMax: r.SamplingRateMax,
		Status:          r.Status,
		Limit:           perPage,
		Offset:          (page - 1) * perPage,
		SortBy:          r.SortBy,
		SortAscending:   r.SortAscending,
	}

	if r.DateStart != "" {
		start, err := time.Parse("2006-01-02", r.DateStart)
		if err != nil {
			return nil, err
		}
		filters.DateStart = &start
	}
	if r.DateEnd != "" {
		end, err := time.Parse("2006-01-02", r.DateEnd)
		if err != nil {
			return nil, err
		}
		// inclusive upper bound, the day runs to midnight
		end = end.Add(24*time.Hour - time.Nanosecond)
		filters.DateEnd = &end
	}
	return filters, nil
}
