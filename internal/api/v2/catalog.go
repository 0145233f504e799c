// catalog.go: CRUD for the catalog vocabulary entities: species,
// strains, subjects, protocols and the metadata vocabulary.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/security"
)

// initCatalogRoutes registers the vocabulary endpoints. Lists are
// public, mutations need an account, deletions an administrator.
func (c *Controller) initCatalogRoutes() {
	g := c.Group

	g.GET("/species", c.ListSpecies)
	g.GET("/species/:id", c.GetSpecies)
	g.POST("/species", c.CreateSpecies, c.authRequired())
	g.PUT("/species/:id", c.UpdateSpecies, c.authRequired())
	g.DELETE("/species/:id", c.DeleteSpecies, c.adminRequired())

	g.GET("/strains", c.ListStrains)
	g.GET("/strains/:id", c.GetStrain)
	g.POST("/strains", c.CreateStrain, c.authRequired())
	g.PUT("/strains/:id", c.UpdateStrain, c.authRequired())
	g.DELETE("/strains/:id", c.DeleteStrain, c.adminRequired())

	g.GET("/subjects", c.ListSubjects)
	g.GET("/subjects/:id", c.GetSubject)
	g.POST("/subjects", c.CreateSubject, c.authRequired())
	g.PUT("/subjects/:id", c.UpdateSubject, c.authRequired())
	g.DELETE("/subjects/:id", c.DeleteSubject, c.adminRequired())

	g.GET("/protocols", c.ListProtocols)
	g.GET("/protocols/:id", c.GetProtocol)
	g.POST("/protocols", c.CreateProtocol, c.authRequired())
	g.PUT("/protocols/:id", c.UpdateProtocol, c.authRequired())
	g.DELETE("/protocols/:id", c.DeleteProtocol, c.adminRequired())

	g.GET("/metadata", c.ListMetadata)
	g.GET("/metadata/categories", c.ListMetadataCategories)
	g.GET("/metadata/fields", c.ListMetadataFields)
	g.POST("/metadata", c.CreateMetadata, c.authRequired())
	g.DELETE("/metadata/:id", c.DeleteMetadata, c.adminRequired())
}

// parseIDParam reads the numeric :id route parameter.
func parseIDParam(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.Newf("invalid id %q", ctx.Param("id")).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// writeStoreError maps datastore errors to HTTP responses.
func (c *Controller) writeStoreError(ctx echo.Context, err error, notFound error, entity string) error {
	switch {
	case notFound != nil && errors.Is(err, notFound):
		return c.HandleError(ctx, err, entity+" not found", http.StatusNotFound)
	case errors.Is(err, datastore.ErrDuplicateKey):
		return c.HandleError(ctx, err, entity+" already exists", http.StatusConflict)
	default:
		return c.HandleError(ctx, err, "Database operation failed", http.StatusInternalServerError)
	}
}

// stampCreator records the signed-in account on a new row.
func stampCreator(ctx echo.Context, createdBy **uint) {
	if user, ok := security.CurrentUser(ctx); ok {
		*createdBy = &user.ID
	}
}

func requireName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != ""
}

// --- species ---

func (c *Controller) ListSpecies(ctx echo.Context) error {
	species, err := c.DS.ListSpecies()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "species")
	}
	return ctx.JSON(http.StatusOK, species)
}

func (c *Controller) GetSpecies(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid species id", http.StatusBadRequest)
	}
	species, err := c.DS.GetSpecies(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSpeciesNotFound, "species")
	}
	return ctx.JSON(http.StatusOK, species)
}

func (c *Controller) CreateSpecies(ctx echo.Context) error {
	var species datastore.Species
	if err := ctx.Bind(&species); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(species.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Species name is required", http.StatusBadRequest)
	}
	species.ID = 0
	species.Name = name
	stampCreator(ctx, &species.CreatedByID)

	if err := c.DS.SaveSpecies(&species); err != nil {
		return c.writeStoreError(ctx, err, nil, "species")
	}
	return ctx.JSON(http.StatusCreated, species)
}

func (c *Controller) UpdateSpecies(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid species id", http.StatusBadRequest)
	}
	species, err := c.DS.GetSpecies(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSpeciesNotFound, "species")
	}

	created := species.Audit
	if err := ctx.Bind(&species); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	species.ID = id
	species.Audit = created

	if _, ok := requireName(species.Name); !ok {
		return c.HandleError(ctx, nil, "Species name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveSpecies(&species); err != nil {
		return c.writeStoreError(ctx, err, nil, "species")
	}
	return ctx.JSON(http.StatusOK, species)
}

func (c *Controller) DeleteSpecies(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid species id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteSpecies(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSpeciesNotFound, "species")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- strains ---

// ListStrains returns all strains, or those of one species when the
// species_id query parameter is present.
func (c *Controller) ListStrains(ctx echo.Context) error {
	if raw := ctx.QueryParam("species_id"); raw != "" {
		speciesID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid species_id", http.StatusBadRequest)
		}
		strains, err := c.DS.ListStrainsBySpecies(uint(speciesID))
		if err != nil {
			return c.writeStoreError(ctx, err, nil, "strain")
		}
		return ctx.JSON(http.StatusOK, strains)
	}

	strains, err := c.DS.ListStrains()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "strain")
	}
	return ctx.JSON(http.StatusOK, strains)
}

func (c *Controller) GetStrain(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid strain id", http.StatusBadRequest)
	}
	strain, err := c.DS.GetStrain(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrStrainNotFound, "strain")
	}
	return ctx.JSON(http.StatusOK, strain)
}

func (c *Controller) CreateStrain(ctx echo.Context) error {
	var strain datastore.Strain
	if err := ctx.Bind(&strain); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(strain.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Strain name is required", http.StatusBadRequest)
	}
	strain.ID = 0
	strain.Name = name
	stampCreator(ctx, &strain.CreatedByID)

	if err := c.DS.SaveStrain(&strain); err != nil {
		return c.writeStoreError(ctx, err, nil, "strain")
	}
	return ctx.JSON(http.StatusCreated, strain)
}

func (c *Controller) UpdateStrain(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid strain id", http.StatusBadRequest)
	}
	strain, err := c.DS.GetStrain(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrStrainNotFound, "strain")
	}

	created := strain.Audit
	if err := ctx.Bind(&strain); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	strain.ID = id
	strain.Audit = created

	if _, ok := requireName(strain.Name); !ok {
		return c.HandleError(ctx, nil, "Strain name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveStrain(&strain); err != nil {
		return c.writeStoreError(ctx, err, nil, "strain")
	}
	return ctx.JSON(http.StatusOK, strain)
}

func (c *Controller) DeleteStrain(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid strain id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteStrain(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrStrainNotFound, "strain")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- subjects ---

func (c *Controller) ListSubjects(ctx echo.Context) error {
	subjects, err := c.DS.ListSubjects()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "subject")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (c *Controller) GetSubject(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid subject id", http.StatusBadRequest)
	}
	subject, err := c.DS.GetSubject(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSubjectNotFound, "subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (c *Controller) CreateSubject(ctx echo.Context) error {
	var subject datastore.Subject
	if err := ctx.Bind(&subject); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(subject.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Subject name is required", http.StatusBadRequest)
	}
	subject.ID = 0
	subject.Name = name
	stampCreator(ctx, &subject.CreatedByID)

	if err := c.DS.SaveSubject(&subject); err != nil {
		return c.writeStoreError(ctx, err, nil, "subject")
	}
	return ctx.JSON(http.StatusCreated, subject)
}

func (c *Controller) UpdateSubject(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid subject id", http.StatusBadRequest)
	}
	subject, err := c.DS.GetSubject(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSubjectNotFound, "subject")
	}

	created := subject.Audit
	if err := ctx.Bind(&subject); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	subject.ID = id
	subject.Audit = created

	if _, ok := requireName(subject.Name); !ok {
		return c.HandleError(ctx, nil, "Subject name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveSubject(&subject); err != nil {
		return c.writeStoreError(ctx, err, nil, "subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (c *Controller) DeleteSubject(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid subject id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteSubject(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSubjectNotFound, "subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- protocols ---

func (c *Controller) ListProtocols(ctx echo.Context) error {
	protocols, err := c.DS.ListProtocols()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "protocol")
	}
	return ctx.JSON(http.StatusOK, protocols)
}

func (c *Controller) GetProtocol(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid protocol id", http.StatusBadRequest)
	}
	protocol, err := c.DS.GetProtocol(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrProtocolNotFound, "protocol")
	}
	return ctx.JSON(http.StatusOK, protocol)
}

func (c *Controller) CreateProtocol(ctx echo.Context) error {
	var protocol datastore.Protocol
	if err := ctx.Bind(&protocol); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(protocol.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Protocol name is required", http.StatusBadRequest)
	}
	protocol.ID = 0
	protocol.Name = name
	stampCreator(ctx, &protocol.CreatedByID)

	if err := c.DS.SaveProtocol(&protocol); err != nil {
		return c.writeStoreError(ctx, err, nil, "protocol")
	}
	return ctx.JSON(http.StatusCreated, protocol)
}

func (c *Controller) UpdateProtocol(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid protocol id", http.StatusBadRequest)
	}
	protocol, err := c.DS.GetProtocol(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrProtocolNotFound, "protocol")
	}

	created := protocol.Audit
	if err := ctx.Bind(&protocol); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	protocol.ID = id
	protocol.Audit = created

	if _, ok := requireName(protocol.Name); !ok {
		return c.HandleError(ctx, nil, "Protocol name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveProtocol(&protocol); err != nil {
		return c.writeStoreError(ctx, err, nil, "protocol")
	}
	return ctx.JSON(http.StatusOK, protocol)
}

func (c *Controller) DeleteProtocol(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid protocol id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteProtocol(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrProtocolNotFound, "protocol")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- metadata vocabulary ---

// ListMetadata returns the metadata vocabulary, filtered to one
// category when the category query parameter names one.
func (c *Controller) ListMetadata(ctx echo.Context) error {
	if category := ctx.QueryParam("category"); category != "" {
		entries, err := c.DS.ListMetadataForCategory(category)
		if err != nil {
			return c.writeStoreError(ctx, err, nil, "metadata")
		}
		return ctx.JSON(http.StatusOK, entries)
	}

	entries, err := c.DS.ListMetadata()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "metadata")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (c *Controller) ListMetadataCategories(ctx echo.Context) error {
	categories, err := c.DS.ListMetadataCategories()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "metadata category")
	}
	return ctx.JSON(http.StatusOK, categories)
}

func (c *Controller) ListMetadataFields(ctx echo.Context) error {
	fields, err := c.DS.ListMetadataFields()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "metadata field")
	}
	return ctx.JSON(http.StatusOK, fields)
}

func (c *Controller) CreateMetadata(ctx echo.Context) error {
	var entry datastore.Metadata
	if err := ctx.Bind(&entry); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(entry.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Metadata name is required", http.StatusBadRequest)
	}
	entry.ID = 0
	entry.Name = name

	if err := c.DS.SaveMetadata(&entry); err != nil {
		return c.writeStoreError(ctx, err, nil, "metadata")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (c *Controller) DeleteMetadata(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid metadata id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteMetadata(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrMetadataNotFound, "metadata")
	}
	return ctx.NoContent(http.StatusNoContent)
}
