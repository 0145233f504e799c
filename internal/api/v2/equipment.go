// equipment.go: CRUD for the recording chain vocabulary: software,
// hardware, literature references, deposit repositories and contacts.
package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

var (
	softwareTypes = []string{
		datastore.SoftwareTypeAcquisition,
		datastore.SoftwareTypeAnalysis,
		datastore.SoftwareTypeBoth,
	}
	hardwareTypes = []string{
		datastore.HardwareTypeSoundcard,
		datastore.HardwareTypeMicrophone,
		datastore.HardwareTypeSpeaker,
		datastore.HardwareTypeAmplifier,
	}
)

func (c *Controller) initEquipmentRoutes() {
	g := c.Group

	g.GET("/software", c.ListSoftware)
	g.GET("/software/:id", c.GetSoftware)
	g.POST("/software", c.CreateSoftware, c.authRequired())
	g.PUT("/software/:id", c.UpdateSoftware, c.authRequired())
	g.DELETE("/software/:id", c.DeleteSoftware, c.adminRequired())

	g.GET("/hardware", c.ListHardware)
	g.GET("/hardware/:id", c.GetHardware)
	g.POST("/hardware", c.CreateHardware, c.authRequired())
	g.PUT("/hardware/:id", c.UpdateHardware, c.authRequired())
	g.DELETE("/hardware/:id", c.DeleteHardware, c.adminRequired())

	g.GET("/references", c.ListReferences)
	g.GET("/references/:id", c.GetReference)
	g.POST("/references", c.CreateReference, c.authRequired())
	g.PUT("/references/:id", c.UpdateReference, c.authRequired())
	g.DELETE("/references/:id", c.DeleteReference, c.adminRequired())

	g.GET("/repositories", c.ListRepositories)
	g.GET("/repositories/:id", c.GetRepository)
	g.POST("/repositories", c.CreateRepository, c.adminRequired())
	g.PUT("/repositories/:id", c.UpdateRepository, c.adminRequired())
	g.DELETE("/repositories/:id", c.DeleteRepository, c.adminRequired())

	g.GET("/contacts", c.ListContacts)
	g.GET("/contacts/:id", c.GetContact)
	g.POST("/contacts", c.CreateContact, c.authRequired())
	g.PUT("/contacts/:id", c.UpdateContact, c.authRequired())
	g.DELETE("/contacts/:id", c.DeleteContact, c.adminRequired())
}

// --- software ---

// ListSoftware returns all software, narrowed by the type query
// parameter when one is given (acquisition, analysis or both).
func (c *Controller) ListSoftware(ctx echo.Context) error {
	if swType := ctx.QueryParam("type"); swType != "" {
		if !slices.Contains(softwareTypes, swType) {
			return c.HandleError(ctx, nil, "Unknown software type", http.StatusBadRequest)
		}
		software, err := c.DS.ListSoftwareByType(swType)
		if err != nil {
			return c.writeStoreError(ctx, err, nil, "software")
		}
		return ctx.JSON(http.StatusOK, software)
	}

	software, err := c.DS.ListSoftware()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "software")
	}
	return ctx.JSON(http.StatusOK, software)
}

func (c *Controller) GetSoftware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid software id", http.StatusBadRequest)
	}
	software, err := c.DS.GetSoftware(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSoftwareNotFound, "software")
	}
	return ctx.JSON(http.StatusOK, software)
}

func (c *Controller) CreateSoftware(ctx echo.Context) error {
	var software datastore.Software
	if err := ctx.Bind(&software); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(software.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Software name is required", http.StatusBadRequest)
	}
	if software.Type == "" {
		software.Type = datastore.SoftwareTypeAcquisition
	}
	if !slices.Contains(softwareTypes, software.Type) {
		return c.HandleError(ctx, nil, "Unknown software type", http.StatusBadRequest)
	}
	software.ID = 0
	software.Name = name
	stampCreator(ctx, &software.CreatedByID)

	if err := c.DS.SaveSoftware(&software); err != nil {
		return c.writeStoreError(ctx, err, nil, "software")
	}
	return ctx.JSON(http.StatusCreated, software)
}

func (c *Controller) UpdateSoftware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid software id", http.StatusBadRequest)
	}
	software, err := c.DS.GetSoftware(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSoftwareNotFound, "software")
	}

	created := software.Audit
	if err := ctx.Bind(&software); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	software.ID = id
	software.Audit = created

	if _, ok := requireName(software.Name); !ok {
		return c.HandleError(ctx, nil, "Software name is required", http.StatusBadRequest)
	}
	if !slices.Contains(softwareTypes, software.Type) {
		return c.HandleError(ctx, nil, "Unknown software type", http.StatusBadRequest)
	}
	if err := c.DS.SaveSoftware(&software); err != nil {
		return c.writeStoreError(ctx, err, nil, "software")
	}
	return ctx.JSON(http.StatusOK, software)
}

func (c *Controller) DeleteSoftware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid software id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteSoftware(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrSoftwareNotFound, "software")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- hardware ---

func (c *Controller) ListHardware(ctx echo.Context) error {
	if hwType := ctx.QueryParam("type"); hwType != "" {
		if !slices.Contains(hardwareTypes, hwType) {
			return c.HandleError(ctx, nil, "Unknown hardware type", http.StatusBadRequest)
		}
		hardware, err := c.DS.ListHardwareByType(hwType)
		if err != nil {
			return c.writeStoreError(ctx, err, nil, "hardware")
		}
		return ctx.JSON(http.StatusOK, hardware)
	}

	hardware, err := c.DS.ListHardware()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "hardware")
	}
	return ctx.JSON(http.StatusOK, hardware)
}

func (c *Controller) GetHardware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid hardware id", http.StatusBadRequest)
	}
	hardware, err := c.DS.GetHardware(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrHardwareNotFound, "hardware")
	}
	return ctx.JSON(http.StatusOK, hardware)
}

func (c *Controller) CreateHardware(ctx echo.Context) error {
	var hardware datastore.Hardware
	if err := ctx.Bind(&hardware); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(hardware.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Hardware name is required", http.StatusBadRequest)
	}
	if hardware.Type != "" && !slices.Contains(hardwareTypes, hardware.Type) {
		return c.HandleError(ctx, nil, "Unknown hardware type", http.StatusBadRequest)
	}
	hardware.ID = 0
	hardware.Name = name
	stampCreator(ctx, &hardware.CreatedByID)

	if err := c.DS.SaveHardware(&hardware); err != nil {
		return c.writeStoreError(ctx, err, nil, "hardware")
	}
	return ctx.JSON(http.StatusCreated, hardware)
}

func (c *Controller) UpdateHardware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid hardware id", http.StatusBadRequest)
	}
	hardware, err := c.DS.GetHardware(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrHardwareNotFound, "hardware")
	}

	created := hardware.Audit
	if err := ctx.Bind(&hardware); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	hardware.ID = id
	hardware.Audit = created

	if _, ok := requireName(hardware.Name); !ok {
		return c.HandleError(ctx, nil, "Hardware name is required", http.StatusBadRequest)
	}
	if hardware.Type != "" && !slices.Contains(hardwareTypes, hardware.Type) {
		return c.HandleError(ctx, nil, "Unknown hardware type", http.StatusBadRequest)
	}
	if err := c.DS.SaveHardware(&hardware); err != nil {
		return c.writeStoreError(ctx, err, nil, "hardware")
	}
	return ctx.JSON(http.StatusOK, hardware)
}

func (c *Controller) DeleteHardware(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid hardware id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteHardware(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrHardwareNotFound, "hardware")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- references ---

func (c *Controller) ListReferences(ctx echo.Context) error {
	references, err := c.DS.ListReferences()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "reference")
	}
	return ctx.JSON(http.StatusOK, references)
}

func (c *Controller) GetReference(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid reference id", http.StatusBadRequest)
	}
	reference, err := c.DS.GetReference(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrReferenceNotFound, "reference")
	}
	return ctx.JSON(http.StatusOK, reference)
}

func (c *Controller) CreateReference(ctx echo.Context) error {
	var reference datastore.Reference
	if err := ctx.Bind(&reference); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(reference.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Reference name is required", http.StatusBadRequest)
	}
	if err := ValidateDOI(reference.DOI); err != nil {
		return c.HandleError(ctx, err, "Invalid DOI", http.StatusBadRequest)
	}
	if err := ValidateURL(reference.URL); err != nil {
		return c.HandleError(ctx, err, "Invalid URL", http.StatusBadRequest)
	}
	reference.ID = 0
	reference.Name = name
	stampCreator(ctx, &reference.CreatedByID)

	if err := c.DS.SaveReference(&reference); err != nil {
		return c.writeStoreError(ctx, err, nil, "reference")
	}
	return ctx.JSON(http.StatusCreated, reference)
}

func (c *Controller) UpdateReference(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid reference id", http.StatusBadRequest)
	}
	reference, err := c.DS.GetReference(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrReferenceNotFound, "reference")
	}

	created := reference.Audit
	if err := ctx.Bind(&reference); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	reference.ID = id
	reference.Audit = created

	if _, ok := requireName(reference.Name); !ok {
		return c.HandleError(ctx, nil, "Reference name is required", http.StatusBadRequest)
	}
	if err := ValidateDOI(reference.DOI); err != nil {
		return c.HandleError(ctx, err, "Invalid DOI", http.StatusBadRequest)
	}
	if err := ValidateURL(reference.URL); err != nil {
		return c.HandleError(ctx, err, "Invalid URL", http.StatusBadRequest)
	}
	if err := c.DS.SaveReference(&reference); err != nil {
		return c.writeStoreError(ctx, err, nil, "reference")
	}
	return ctx.JSON(http.StatusOK, reference)
}

func (c *Controller) DeleteReference(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid reference id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteReference(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrReferenceNotFound, "reference")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- repositories ---

func (c *Controller) ListRepositories(ctx echo.Context) error {
	repositories, err := c.DS.ListRepositories()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "repository")
	}
	return ctx.JSON(http.StatusOK, repositories)
}

func (c *Controller) GetRepository(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid repository id", http.StatusBadRequest)
	}
	repository, err := c.DS.GetRepository(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRepositoryNotFound, "repository")
	}
	return ctx.JSON(http.StatusOK, repository)
}

func (c *Controller) CreateRepository(ctx echo.Context) error {
	var repository datastore.Repository
	if err := ctx.Bind(&repository); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	name, ok := requireName(repository.Name)
	if !ok {
		return c.HandleError(ctx, nil, "Repository name is required", http.StatusBadRequest)
	}
	if err := ValidateURL(repository.URL); err != nil {
		return c.HandleError(ctx, err, "Invalid URL", http.StatusBadRequest)
	}
	repository.ID = 0
	repository.Name = name
	stampCreator(ctx, &repository.CreatedByID)

	if err := c.DS.SaveRepository(&repository); err != nil {
		return c.writeStoreError(ctx, err, nil, "repository")
	}
	return ctx.JSON(http.StatusCreated, repository)
}

func (c *Controller) UpdateRepository(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid repository id", http.StatusBadRequest)
	}
	repository, err := c.DS.GetRepository(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRepositoryNotFound, "repository")
	}

	created := repository.Audit
	if err := ctx.Bind(&repository); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	repository.ID = id
	repository.Audit = created

	if _, ok := requireName(repository.Name); !ok {
		return c.HandleError(ctx, nil, "Repository name is required", http.StatusBadRequest)
	}
	if err := ValidateURL(repository.URL); err != nil {
		return c.HandleError(ctx, err, "Invalid URL", http.StatusBadRequest)
	}
	if err := c.DS.SaveRepository(&repository); err != nil {
		return c.writeStoreError(ctx, err, nil, "repository")
	}
	return ctx.JSON(http.StatusOK, repository)
}

func (c *Controller) DeleteRepository(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid repository id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteRepository(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrRepositoryNotFound, "repository")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// --- contacts ---

func (c *Controller) ListContacts(ctx echo.Context) error {
	contacts, err := c.DS.ListContacts()
	if err != nil {
		return c.writeStoreError(ctx, err, nil, "contact")
	}
	return ctx.JSON(http.StatusOK, contacts)
}

func (c *Controller) GetContact(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid contact id", http.StatusBadRequest)
	}
	contact, err := c.DS.GetContact(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrContactNotFound, "contact")
	}
	return ctx.JSON(http.StatusOK, contact)
}

func (c *Controller) CreateContact(ctx echo.Context) error {
	var contact datastore.Contact
	if err := ctx.Bind(&contact); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	if strings.TrimSpace(contact.FirstName) == "" && strings.TrimSpace(contact.LastName) == "" {
		return c.HandleError(ctx, nil, "Contact name is required", http.StatusBadRequest)
	}
	contact.ID = 0
	stampCreator(ctx, &contact.CreatedByID)

	if err := c.DS.SaveContact(&contact); err != nil {
		return c.writeStoreError(ctx, err, nil, "contact")
	}
	return ctx.JSON(http.StatusCreated, contact)
}

func (c *Controller) UpdateContact(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid contact id", http.StatusBadRequest)
	}
	contact, err := c.DS.GetContact(id)
	if err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrContactNotFound, "contact")
	}

	created := contact.Audit
	if err := ctx.Bind(&contact); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	contact.ID = id
	contact.Audit = created

	if strings.TrimSpace(contact.FirstName) == "" && strings.TrimSpace(contact.LastName) == "" {
		return c.HandleError(ctx, nil, "Contact name is required", http.StatusBadRequest)
	}
	if err := c.DS.SaveContact(&contact); err != nil {
		return c.writeStoreError(ctx, err, nil, "contact")
	}
	return ctx.JSON(http.StatusOK, contact)
}

func (c *Controller) DeleteContact(ctx echo.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid contact id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteContact(id); err != nil {
		return c.writeStoreError(ctx, err, datastore.ErrContactNotFound, "contact")
	}
	return ctx.NoContent(http.StatusNoContent)
}
