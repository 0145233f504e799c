package importer

import (
	"context"
	"encoding/csv"
	"os"
	"strings"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// readRows reads a CSV file with a header line and returns one map per
// data row, keyed by lowercased column name. All named columns must be
// present in the header.
func readRows(path string, required ...string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close csv file", "path", path, "error", closeErr)
		}
	}()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if len(records) == 0 {
		return nil, errors.Newf("csv file is empty: %s", path).
			Component("importer").
			Category(errors.CategoryValidation).
			Build()
	}

	header := make([]string, len(records[0]))
	seen := make(map[string]bool, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
		seen[header[i]] = true
	}
	for _, name := range required {
		if !seen[name] {
			return nil, errors.Newf("csv file %s is missing the %q column", path, name).
				Component("importer").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, value := range record {
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ImportSpecies loads species from a CSV with a name column. Names
// already in the catalog are skipped.
func (i *Importer) ImportSpecies(ctx context.Context, path string) (*Result, error) {
	rows, err := readRows(path, "name")
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := row["name"]
		if name == "" {
			result.Skipped++
			continue
		}

		_, err := i.ds.GetSpeciesByName(name)
		switch {
		case err == nil:
			result.Skipped++
		case errors.Is(err, datastore.ErrSpeciesNotFound):
			if err := i.ds.SaveSpecies(&datastore.Species{Name: name}); err != nil {
				return result, err
			}
			result.Created++
		default:
			return result, err
		}
	}

	logger.Info("species import finished",
		"path", path, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

// ImportStrains loads strains from a CSV with columns name, species,
// background and bibliography. Unknown species are created on the fly,
// existing strains get missing details filled in.
func (i *Importer) ImportStrains(ctx context.Context, path string) (*Result, error) {
	rows, err := readRows(path, "name")
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := row["name"]
		if name == "" {
			result.Skipped++
			continue
		}

		var speciesID *uint
		if speciesName := row["species"]; speciesName != "" {
			species, err := i.speciesByNameOrCreate(speciesName)
			if err != nil {
				return result, err
			}
			speciesID = &species.ID
		}

		strain, err := i.ds.GetStrainByName(name)
		switch {
		case err == nil:
			if updateStrain(&strain, row, speciesID) {
				if err := i.ds.SaveStrain(&strain); err != nil {
					return result, err
				}
				result.Updated++
			} else {
				result.Skipped++
			}
		case errors.Is(err, datastore.ErrStrainNotFound):
			strain = datastore.Strain{
				Name:         name,
				SpeciesID:    speciesID,
				Background:   row["background"],
				Bibliography: row["bibliography"],
			}
			if err := i.ds.SaveStrain(&strain); err != nil {
				return result, err
			}
			result.Created++
		default:
			return result, err
		}
	}

	logger.Info("strain import finished", "path", path,
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

// updateStrain fills empty strain details from a CSV row and reports
// whether anything changed.
func updateStrain(strain *datastore.Strain, row map[string]string, speciesID *uint) bool {
	changed := false
	if background := row["background"]; background != "" && strain.Background == "" {
		strain.Background = background
		changed = true
	}
	if bibliography := row["bibliography"]; bibliography != "" && strain.Bibliography == "" {
		strain.Bibliography = bibliography
		changed = true
	}
	if speciesID != nil && strain.SpeciesID == nil {
		strain.SpeciesID = speciesID
		changed = true
	}
	return changed
}

func (i *Importer) speciesByNameOrCreate(name string) (datastore.Species, error) {
	species, err := i.ds.GetSpeciesByName(name)
	if err == nil {
		return species, nil
	}
	if !errors.Is(err, datastore.ErrSpeciesNotFound) {
		return datastore.Species{}, err
	}
	species = datastore.Species{Name: name}
	if err := i.ds.SaveSpecies(&species); err != nil {
		return datastore.Species{}, err
	}
	return species, nil
}

// ImportMetadataVocabulary loads metadata entries from a CSV with
// columns name, field and description. Each row names a vocabulary
// entry and optionally one field to attach to it; repeating the entry
// name across rows attaches several fields.
func (i *Importer) ImportMetadataVocabulary(ctx context.Context, path string) (*Result, error) {
	rows, err := readRows(path, "name")
	if err != nil {
		return nil, err
	}

	fieldsByName, err := i.metadataFieldIndex()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := row["name"]
		if name == "" {
			result.Skipped++
			continue
		}

		entry, created, err := i.metadataByNameOrCreate(name)
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		}

		fieldName := row["field"]
		if fieldName == "" {
			if !created {
				result.Skipped++
			}
			continue
		}

		field, ok := fieldsByName[fieldName]
		if !ok {
			field = datastore.MetadataField{
				Name:        fieldName,
				Description: row["description"],
			}
			if err := i.ds.SaveMetadataField(&field); err != nil {
				return result, err
			}
			fieldsByName[fieldName] = field
		}

		if metadataHasField(&entry, field.ID) {
			if !created {
				result.Skipped++
			}
			continue
		}
		entry.Fields = append(entry.Fields, field)
		if err := i.ds.SaveMetadata(&entry); err != nil {
			return result, err
		}
		if !created {
			result.Updated++
		}
	}

	logger.Info("metadata vocabulary import finished", "path", path,
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

func (i *Importer) metadataFieldIndex() (map[string]datastore.MetadataField, error) {
	fields, err := i.ds.ListMetadataFields()
	if err != nil {
		return nil, err
	}
	index := make(map[string]datastore.MetadataField, len(fields))
	for _, field := range fields {
		index[field.Name] = field
	}
	return index, nil
}

func (i *Importer) metadataByNameOrCreate(name string) (datastore.Metadata, bool, error) {
	entry, err := i.ds.GetMetadataByName(name)
	if err == nil {
		return entry, false, nil
	}
	if !errors.Is(err, datastore.ErrMetadataNotFound) {
		return datastore.Metadata{}, false, err
	}
	entry = datastore.Metadata{Name: name}
	if err := i.ds.SaveMetadata(&entry); err != nil {
		return datastore.Metadata{}, false, err
	}
	return entry, true, nil
}

func metadataHasField(entry *datastore.Metadata, fieldID uint) bool {
	for _, field := range entry.Fields {
		if field.ID == fieldID {
			return true
		}
	}
	return false
}

// ImportProtocols loads protocols from a CSV with columns name,
// description and metadata, the latter a semicolon-separated list of
// vocabulary entry names to tag the protocol with. Missing vocabulary
// entries are created.
func (i *Importer) ImportProtocols(ctx context.Context, path string) (*Result, error) {
	rows, err := readRows(path, "name")
	if err != nil {
		return nil, err
	}

	existing, err := i.ds.ListProtocols()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]datastore.Protocol, len(existing))
	for _, protocol := range existing {
		byName[protocol.Name] = protocol
	}

	result := &Result{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := row["name"]
		if name == "" {
			result.Skipped++
			continue
		}
		if _, ok := byName[name]; ok {
			result.Skipped++
			continue
		}

		protocol := datastore.Protocol{
			Name:        name,
			Description: row["description"],
		}
		for _, tag := range splitList(row["metadata"]) {
			entry, _, err := i.metadataByNameOrCreate(tag)
			if err != nil {
				return result, err
			}
			protocol.Metadata = append(protocol.Metadata, entry)
		}

		if err := i.ds.SaveProtocol(&protocol); err != nil {
			return result, err
		}
		byName[name] = protocol
		result.Created++
	}

	logger.Info("protocol import finished",
		"path", path, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}

// splitList cuts a semicolon-separated cell into trimmed, non-empty
// values.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
