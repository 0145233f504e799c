// datasets.go: curated recording collections.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/events"
)

func (c *Controller) initDatasetRoutes() {
	g := c.Group

	g.GET("/datasets", c.ListDatasets)
	g.GET("/datasets/:id", c.GetDataset)
	g.POST("/datasets", c.CreateDataset, c.authRequired())
	g.POST("/datasets/:id/recordings", c.AddDatasetRecordings, c.authRequired())
	g.PUT("/datasets/:id", c.UpdateDataset, c.authRequired())
	g.DELETE("/datasets/:id", c.DeleteDataset, c.adminRequired())
}

func (c *Controller) ListDatasets(ctx echo.Context) error {
	datasets, err := c.DS.ListDatasets()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "dataset")
	}
	return ctx.JSON(http.StatusOK, datasets)
}

func (c *Controller) GetDataset(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid dataset id", http.StatusBadRequest)
	}
	dataset, err := c.DS.GetDataset(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrDatasetNotFound, "dataset")
	}
	return ctx.JSON(http.StatusOK, dataset)
}

func (c *Controller) CreateDataset(ctx echo.Context) error {
	var dataset datastore.Dataset
	if err := ctx.Bind(&dataset); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(dataset.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Dataset name is required", http.StatusBadRequest)
	}
	if err := ValidateDOI(dataset.DOI); err != nil {
		return c.HandleError(ctx, err, "Invalid DOI", http.StatusBadRequest)
	}
	if err := ValidateURL(dataset.Link); err != nil {
		return c.HandleError(ctx, err, "Invalid link", http.StatusBadRequest)
	}
	dataset.ID = 0
	dataset.Name = name
	stampCreator(ctx, &dataset.CreatedByID)

	if err := c.DS.SaveDataset(&dataset); err != nil {
		return c.writeStoreError(ctx, err, nil, "dataset")
	}

	events.Publish(events.NewEvent(events.TypeDatasetCreated, dataset.ID, map[string]any{
		"name": dataset.Name,
	}))
	return ctx.JSON(http.StatusCreated, dataset)
}

func (c *Controller) UpdateDataset(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid dataset id", http.StatusBadRequest)
	}
	dataset, err := c.DS.GetDataset(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrDatasetNotFound, "dataset")
	}

	created := dataset.Audit
	if err := ctx.Bind(&dataset); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	dataset.ID = id
	dataset.Audit = created

	if _, ok := requireName(dataset.Name); !ok {
		return c.HandleError(ctx, nil, "Dataset name is required", http.StatusBadRequest)
	}
	if err := ValidateDOI(dataset.DOI); err != nil {
		return c.HandleError(ctx, err, "Invalid DOI", http.StatusBadRequest)
	}
	if err := ValidateURL(dataset.Link); err != nil {
		return c.HandleError(ctx, err, "Invalid link", http.StatusBadRequest)
	}
	if err := c.DS.SaveDataset(&dataset); err != nil {
		return c.writeStoreError(ctx, err, nil, "dataset")
	}
	return ctx.JSON(http.StatusOK, dataset)
}

func (c *Controller) DeleteDataset(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid dataset id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteDataset(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrDatasetNotFound, "dataset")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AddDatasetRecordings attaches existing recordings to a dataset.
func (c *Controller) AddDatasetRecordings(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid dataset id", http.StatusBadRequest)
	}

	var req struct {
		RecordingIDs []uint `json:"recording_ids"`
	}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if len(req.RecordingIDs) == 0 {
		return c.HandleError(ctx, nil, "recording_ids is required", http.StatusBadRequest)
	}

	if err := c.DS.AddRecordingsToDataset(id, req.RecordingIDs); err != nil {
		switch {
		case errors.Is(err, datastore.ErrDatasetNotFound):
			return c.writeStoreError(ctx, err, datastore.ErrDatasetNotFound, "dataset")
		case errors.Is(err, datastore.ErrRecordingNotFound):
			return c.writeStoreError(ctx, err, datastore.ErrRecordingNotFound, "recording")
		default:
			return c.writeStoreError(ctx, err, nil, "dataset")
		}
	}

	dataset, err := c.DS.GetDataset(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrDatasetNotFound, "dataset")
	}
	return ctx.JSON(http.StatusOK, dataset)
}
