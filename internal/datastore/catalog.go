// catalog.go implements CRUD for the catalog vocabulary: species,
// strains, software, hardware, references, repositories, contacts,
// protocols and the metadata chain.
package datastore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// replaceAssociation swaps the join rows of a many2many association so
// saved rows reflect exactly the IDs the caller provided.
func replaceAssociation(tx *gorm.DB, model any, name string, values any) error {
	return tx.Model(model).Association(name).Replace(values)
}

// --- species ---

func (ds *DataStore) SaveSpecies(species *Species) error {
	if species.Name == "" {
		return validationError("species name is required", "name", species.Name)
	}
	return mapWriteError(ds.DB.Save(species).Error, "save_species", "name", species.Name)
}

func (ds *DataStore) GetSpecies(id uint) (Species, error) {
	var species Species
	if err := ds.DB.First(&species, id).Error; err != nil {
		return Species{}, mapLookupError(err, ErrSpeciesNotFound, "get_species", "id", id)
	}
	return species, nil
}

func (ds *DataStore) GetSpeciesByName(name string) (Species, error) {
	var species Species
	if err := ds.DB.Where("name = ?", name).First(&species).Error; err != nil {
		return Species{}, mapLookupError(err, ErrSpeciesNotFound, "get_species_by_name", "name", name)
	}
	return species, nil
}

func (ds *DataStore) ListSpecies() ([]Species, error) {
	var species []Species
	if err := ds.DB.Order("name ASC").Find(&species).Error; err != nil {
		return nil, dbError(err, "list_species")
	}
	return species, nil
}

func (ds *DataStore) DeleteSpecies(id uint) error {
	return ds.deleteByID(&Species{ID: id}, ErrSpeciesNotFound, "delete_species", id)
}

// --- strains ---

func (ds *DataStore) SaveStrain(strain *Strain) error {
	if strain.Name == "" {
		return validationError("strain name is required", "name", strain.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("References", "Species").Save(strain).Error; err != nil {
			return err
		}
		return replaceAssociation(tx, strain, "References", strain.References)
	})
	return mapWriteError(err, "save_strain", "name", strain.Name)
}

func (ds *DataStore) GetStrain(id uint) (Strain, error) {
	var strain Strain
	err := ds.DB.Preload("Species").Preload("References").First(&strain, id).Error
	if err != nil {
		return Strain{}, mapLookupError(err, ErrStrainNotFound, "get_strain", "id", id)
	}
	return strain, nil
}

func (ds *DataStore) GetStrainByName(name string) (Strain, error) {
	var strain Strain
	err := ds.DB.Preload("Species").Where("name = ?", name).First(&strain).Error
	if err != nil {
		return Strain{}, mapLookupError(err, ErrStrainNotFound, "get_strain_by_name", "name", name)
	}
	return strain, nil
}

func (ds *DataStore) ListStrains() ([]Strain, error) {
	var strains []Strain
	if err := ds.DB.Preload("Species").Order("name ASC").Find(&strains).Error; err != nil {
		return nil, dbError(err, "list_strains")
	}
	return strains, nil
}

func (ds *DataStore) ListStrainsBySpecies(speciesID uint) ([]Strain, error) {
	var strains []Strain
	err := ds.DB.Where("species_id = ?", speciesID).Order("name ASC").Find(&strains).Error
	if err != nil {
		return nil, dbError(err, "list_strains_by_species", "species_id", speciesID)
	}
	return strains, nil
}

func (ds *DataStore) DeleteStrain(id uint) error {
	return ds.deleteByID(&Strain{ID: id}, ErrStrainNotFound, "delete_strain", id)
}

// --- software ---

func (ds *DataStore) SaveSoftware(software *Software) error {
	if software.Name == "" {
		return validationError("software name is required", "name", software.Name)
	}
	if software.Type != "" && !validSoftwareType(software.Type) {
		return validationError("unknown software type", "type", software.Type)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("References", "Contacts").Save(software).Error; err != nil {
			return err
		}
		if err := replaceAssociation(tx, software, "References", software.References); err != nil {
			return err
		}
		return replaceAssociation(tx, software, "Contacts", software.Contacts)
	})
	return mapWriteError(err, "save_software", "name", software.Name)
}

func validSoftwareType(t string) bool {
	switch t {
	case SoftwareTypeAcquisition, SoftwareTypeAnalysis, SoftwareTypeBoth:
		return true
	}
	return false
}

func (ds *DataStore) GetSoftware(id uint) (Software, error) {
	var software Software
	err := ds.DB.Preload("References").Preload("Contacts").First(&software, id).Error
	if err != nil {
		return Software{}, mapLookupError(err, ErrSoftwareNotFound, "get_software", "id", id)
	}
	return software, nil
}

func (ds *DataStore) ListSoftware() ([]Software, error) {
	var software []Software
	err := ds.DB.Preload("References").Preload("Contacts").Order("name ASC").Find(&software).Error
	if err != nil {
		return nil, dbError(err, "list_software")
	}
	return software, nil
}

func (ds *DataStore) ListSoftwareByType(softwareType string) ([]Software, error) {
	if !validSoftwareType(softwareType) {
		return nil, validationError("unknown software type", "type", softwareType)
	}
	var software []Software
	err := ds.DB.Preload("References").Preload("Contacts").
		Where("type = ?", softwareType).
		Order("name ASC").
		Find(&software).Error
	if err != nil {
		return nil, dbError(err, "list_software_by_type", "type", softwareType)
	}
	return software, nil
}

func (ds *DataStore) DeleteSoftware(id uint) error {
	return ds.deleteByID(&Software{ID: id}, ErrSoftwareNotFound, "delete_software", id)
}

// --- hardware ---

func (ds *DataStore) SaveHardware(hardware *Hardware) error {
	if hardware.Name == "" {
		return validationError("hardware name is required", "name", hardware.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("References").Save(hardware).Error; err != nil {
			return err
		}
		return replaceAssociation(tx, hardware, "References", hardware.References)
	})
	return mapWriteError(err, "save_hardware", "name", hardware.Name)
}

func (ds *DataStore) GetHardware(id uint) (Hardware, error) {
	var hardware Hardware
	err := ds.DB.Preload("References").First(&hardware, id).Error
	if err != nil {
		return Hardware{}, mapLookupError(err, ErrHardwareNotFound, "get_hardware", "id", id)
	}
	return hardware, nil
}

func (ds *DataStore) ListHardware() ([]Hardware, error) {
	var hardware []Hardware
	err := ds.DB.Preload("References").Order("name ASC").Find(&hardware).Error
	if err != nil {
		return nil, dbError(err, "list_hardware")
	}
	return hardware, nil
}

func (ds *DataStore) ListHardwareByType(hardwareType string) ([]Hardware, error) {
	var hardware []Hardware
	err := ds.DB.Preload("References").
		Where("type = ?", hardwareType).
		Order("name ASC").
		Find(&hardware).Error
	if err != nil {
		return nil, dbError(err, "list_hardware_by_type", "type", hardwareType)
	}
	return hardware, nil
}

func (ds *DataStore) DeleteHardware(id uint) error {
	return ds.deleteByID(&Hardware{ID: id}, ErrHardwareNotFound, "delete_hardware", id)
}

// --- references ---

func (ds *DataStore) SaveReference(reference *Reference) error {
	if reference.Name == "" {
		return validationError("reference name is required", "name", reference.Name)
	}
	return mapWriteError(ds.DB.Save(reference).Error, "save_reference", "name", reference.Name)
}

func (ds *DataStore) GetReference(id uint) (Reference, error) {
	var reference Reference
	if err := ds.DB.First(&reference, id).Error; err != nil {
		return Reference{}, mapLookupError(err, ErrReferenceNotFound, "get_reference", "id", id)
	}
	return reference, nil
}

func (ds *DataStore) ListReferences() ([]Reference, error) {
	var references []Reference
	if err := ds.DB.Order("name ASC").Find(&references).Error; err != nil {
		return nil, dbError(err, "list_references")
	}
	return references, nil
}

func (ds *DataStore) DeleteReference(id uint) error {
	return ds.deleteByID(&Reference{ID: id}, ErrReferenceNotFound, "delete_reference", id)
}

// --- repositories ---

func (ds *DataStore) SaveRepository(repository *Repository) error {
	if repository.Name == "" {
		return validationError("repository name is required", "name", repository.Name)
	}
	return mapWriteError(ds.DB.Save(repository).Error, "save_repository", "name", repository.Name)
}

func (ds *DataStore) GetRepository(id uint) (Repository, error) {
	var repository Repository
	if err := ds.DB.First(&repository, id).Error; err != nil {
		return Repository{}, mapLookupError(err, ErrRepositoryNotFound, "get_repository", "id", id)
	}
	return repository, nil
}

// GetOrCreateRepository returns the repository with the given name,
// creating it on first use. The deposition pipeline relies on this for
// the built-in Zenodo entry.
func (ds *DataStore) GetOrCreateRepository(name string) (Repository, error) {
	if name == "" {
		return Repository{}, validationError("repository name is required", "name", name)
	}
	var repository Repository
	err := ds.DB.Where(Repository{Name: name}).FirstOrCreate(&repository).Error
	if err != nil {
		return Repository{}, mapWriteError(err, "get_or_create_repository", "name", name)
	}
	return repository, nil
}

func (ds *DataStore) ListRepositories() ([]Repository, error) {
	var repositories []Repository
	if err := ds.DB.Order("name ASC").Find(&repositories).Error; err != nil {
		return nil, dbError(err, "list_repositories")
	}
	return repositories, nil
}

func (ds *DataStore) DeleteRepository(id uint) error {
	return ds.deleteByID(&Repository{ID: id}, ErrRepositoryNotFound, "delete_repository", id)
}

// --- contacts ---

func (ds *DataStore) SaveContact(contact *Contact) error {
	if contact.Email == "" && contact.FirstName == "" && contact.LastName == "" {
		return validationError("contact needs a name or an email", "email", contact.Email)
	}
	return mapWriteError(ds.DB.Save(contact).Error, "save_contact", "email", contact.Email)
}

func (ds *DataStore) GetContact(id uint) (Contact, error) {
	var contact Contact
	if err := ds.DB.First(&contact, id).Error; err != nil {
		return Contact{}, mapLookupError(err, ErrContactNotFound, "get_contact", "id", id)
	}
	return contact, nil
}

func (ds *DataStore) ListContacts() ([]Contact, error) {
	var contacts []Contact
	if err := ds.DB.Order("lastname ASC, firstname ASC").Find(&contacts).Error; err != nil {
		return nil, dbError(err, "list_contacts")
	}
	return contacts, nil
}

func (ds *DataStore) DeleteContact(id uint) error {
	return ds.deleteByID(&Contact{ID: id}, ErrContactNotFound, "delete_contact", id)
}

// --- protocols ---

func (ds *DataStore) SaveProtocol(protocol *Protocol) error {
	if protocol.Name == "" {
		return validationError("protocol name is required", "name", protocol.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Metadata", "References").Save(protocol).Error; err != nil {
			return err
		}
		if err := replaceAssociation(tx, protocol, "Metadata", protocol.Metadata); err != nil {
			return err
		}
		return replaceAssociation(tx, protocol, "References", protocol.References)
	})
	return mapWriteError(err, "save_protocol", "name", protocol.Name)
}

func (ds *DataStore) GetProtocol(id uint) (Protocol, error) {
	var protocol Protocol
	err := ds.DB.Preload("Metadata").Preload("References").First(&protocol, id).Error
	if err != nil {
		return Protocol{}, mapLookupError(err, ErrProtocolNotFound, "get_protocol", "id", id)
	}
	return protocol, nil
}

func (ds *DataStore) ListProtocols() ([]Protocol, error) {
	var protocols []Protocol
	err := ds.DB.Preload("Metadata").Preload("References").Order("name ASC").Find(&protocols).Error
	if err != nil {
		return nil, dbError(err, "list_protocols")
	}
	return protocols, nil
}

func (ds *DataStore) DeleteProtocol(id uint) error {
	return ds.deleteByID(&Protocol{ID: id}, ErrProtocolNotFound, "delete_protocol", id)
}

// --- metadata vocabulary ---

func (ds *DataStore) SaveMetadataCategory(category *MetadataCategory) error {
	if category.Name == "" {
		return validationError("metadata category name is required", "name", category.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories").Save(category).Error; err != nil {
			return err
		}
		return replaceAssociation(tx, category, "Categories", category.Categories)
	})
	return mapWriteError(err, "save_metadata_category", "name", category.Name)
}

func (ds *DataStore) ListMetadataCategories() ([]MetadataCategory, error) {
	var categories []MetadataCategory
	err := ds.DB.Preload("Categories").Order("name ASC").Find(&categories).Error
	if err != nil {
		return nil, dbError(err, "list_metadata_categories")
	}
	return categories, nil
}

func (ds *DataStore) SaveMetadataField(field *MetadataField) error {
	if field.Name == "" {
		return validationError("metadata field name is required", "name", field.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories").Save(field).Error; err != nil {
			return err
		}
		return replaceAssociation(tx, field, "Categories", field.Categories)
	})
	return mapWriteError(err, "save_metadata_field", "name", field.Name)
}

func (ds *DataStore) ListMetadataFields() ([]MetadataField, error) {
	var fields []MetadataField
	err := ds.DB.Preload("Categories").Order("name ASC").Find(&fields).Error
	if err != nil {
		return nil, dbError(err, "list_metadata_fields")
	}
	return fields, nil
}

func (ds *DataStore) SaveMetadata(metadata *Metadata) error {
	if metadata.Name == "" {
		return validationError("metadata name is required", "name", metadata.Name)
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Fields").Save(metadata).Error; err != nil {
			return err
		}
		return replaceAssociation(tx, metadata, "Fields", metadata.Fields)
	})
	return mapWriteError(err, "save_metadata", "name", metadata.Name)
}

func (ds *DataStore) GetMetadata(id uint) (Metadata, error) {
	var metadata Metadata
	err := ds.DB.Preload("Fields").Preload("Fields.Categories").First(&metadata, id).Error
	if err != nil {
		return Metadata{}, mapLookupError(err, ErrMetadataNotFound, "get_metadata", "id", id)
	}
	return metadata, nil
}

func (ds *DataStore) GetMetadataByName(name string) (Metadata, error) {
	var metadata Metadata
	err := ds.DB.Preload("Fields").Where("name = ?", name).First(&metadata).Error
	if err != nil {
		return Metadata{}, mapLookupError(err, ErrMetadataNotFound, "get_metadata_by_name", "name", name)
	}
	return metadata, nil
}

func (ds *DataStore) ListMetadata() ([]Metadata, error) {
	var metadata []Metadata
	err := ds.DB.Preload("Fields").Order("name ASC").Find(&metadata).Error
	if err != nil {
		return nil, dbError(err, "list_metadata")
	}
	return metadata, nil
}

// ListMetadataForCategory returns metadata whose field belongs to a
// category nested under the named parent category. This powers the
// per-domain vocabulary pickers, e.g. every metadata entry usable on a
// protocol.
func (ds *DataStore) ListMetadataForCategory(categoryName string) ([]Metadata, error) {
	var metadata []Metadata
	err := ds.DB.
		Distinct("metadata.*").
		Joins("JOIN metadata_field_links mfl ON mfl.metadata_id = metadata.id").
		Joins("JOIN metadata_field_categories mfc ON mfc.metadata_field_id = mfl.metadata_field_id").
		Joins("JOIN metadata_category_links mcl ON mcl.child_id = mfc.metadata_category_id").
		Joins("JOIN metadata_categories parent ON parent.id = mcl.parent_id").
		Where("parent.name = ?", categoryName).
		Order("metadata.name ASC").
		Find(&metadata).Error
	if err != nil {
		return nil, dbError(err, "list_metadata_for_category", "category", categoryName)
	}
	return metadata, nil
}

func (ds *DataStore) DeleteMetadata(id uint) error {
	return ds.deleteByID(&Metadata{ID: id}, ErrMetadataNotFound, "delete_metadata", id)
}

// deleteByID removes a row and its association join rows, mapping a
// missing row to the entity sentinel.
func (ds *DataStore) deleteByID(model any, sentinel error, operation string, id uint) error {
	result := ds.DB.Select(clause.Associations).Delete(model)
	if result.Error != nil {
		return dbError(result.Error, operation, "id", id)
	}
	if result.RowsAffected == 0 {
		return sentinel
	}
	return nil
}
