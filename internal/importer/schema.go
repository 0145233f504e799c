package importer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
)

// ImportMetadataSchema loads metadata categories and fields from a JSON
// schema file. Objects with properties become categories nested under
// their parent, terminal properties become fields attached to the
// enclosing category.
func (i *Importer) ImportMetadataSchema(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	schema, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, errors.New(err).
			Component("importer").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	walker, err := i.newSchemaWalker()
	if err != nil {
		return nil, err
	}

	rootName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := walker.walk(ctx, schema, nil, rootName); err != nil {
		return walker.result, err
	}

	logger.Info("metadata schema import finished", "path", path,
		"created", walker.result.Created,
		"updated", walker.result.Updated,
		"skipped", walker.result.Skipped)
	return walker.result, nil
}

// schemaWalker carries the category and field indexes through the
// recursive descent.
type schemaWalker struct {
	importer   *Importer
	categories map[string]datastore.MetadataCategory
	fields     map[string]datastore.MetadataField
	result     *Result
}

func (i *Importer) newSchemaWalker() (*schemaWalker, error) {
	categories, err := i.ds.ListMetadataCategories()
	if err != nil {
		return nil, err
	}
	fields, err := i.ds.ListMetadataFields()
	if err != nil {
		return nil, err
	}

	walker := &schemaWalker{
		importer:   i,
		categories: make(map[string]datastore.MetadataCategory, len(categories)),
		fields:     make(map[string]datastore.MetadataField, len(fields)),
		result:     &Result{},
	}
	for _, category := range categories {
		walker.categories[category.Name] = category
	}
	for _, field := range fields {
		walker.fields[field.Name] = field
	}
	return walker, nil
}

func (w *schemaWalker) walk(ctx context.Context, node *jason.Object, parent *datastore.MetadataCategory, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nodeType, _ := node.GetString("type")
	description, _ := node.GetString("description")
	properties, propErr := node.GetObject("properties")

	if nodeType == "object" && propErr == nil {
		categoryName := name
		if categoryName == "" {
			if title, err := node.GetString("title"); err == nil && title != "" {
				categoryName = title
			} else {
				categoryName = "Root"
			}
		}

		category, err := w.category(categoryName, description, parent)
		if err != nil {
			return err
		}

		// Sorted keys keep the import order stable across runs.
		props := properties.Map()
		names := make([]string, 0, len(props))
		for propName := range props {
			names = append(names, propName)
		}
		sort.Strings(names)

		for _, propName := range names {
			child, err := props[propName].Object()
			if err != nil {
				logger.Warn("skipping non-object schema property",
					"category", categoryName, "property", propName)
				continue
			}
			if err := w.walk(ctx, child, &category, propName); err != nil {
				return err
			}
		}
		return nil
	}

	// Terminal node, an unnamed one carries nothing to record.
	if name == "" {
		return nil
	}
	return w.field(name, description, parent)
}

// category gets or creates a category and links it under its parent.
func (w *schemaWalker) category(name, description string, parent *datastore.MetadataCategory) (datastore.MetadataCategory, error) {
	category, exists := w.categories[name]
	changed := false

	if !exists {
		category = datastore.MetadataCategory{Name: name, Description: description}
		changed = true
	} else if description != "" && category.Description == "" {
		category.Description = description
		changed = true
	}

	if parent != nil && !categoryHasParent(&category, parent.ID) {
		category.Categories = append(category.Categories, &datastore.MetadataCategory{ID: parent.ID, Name: parent.Name})
		changed = true
	}

	if changed {
		if err := w.importer.ds.SaveMetadataCategory(&category); err != nil {
			return datastore.MetadataCategory{}, err
		}
		if exists {
			w.result.Updated++
		} else {
			w.result.Created++
		}
	} else {
		w.result.Skipped++
	}

	w.categories[name] = category
	return category, nil
}

// field gets or creates a field and attaches it to its category.
func (w *schemaWalker) field(name, description string, category *datastore.MetadataCategory) error {
	field, exists := w.fields[name]
	changed := false

	if !exists {
		field = datastore.MetadataField{Name: name, Description: description}
		changed = true
	} else if description != "" && field.Description == "" {
		field.Description = description
		changed = true
	}

	if category != nil && !fieldHasCategory(&field, category.ID) {
		field.Categories = append(field.Categories, datastore.MetadataCategory{ID: category.ID, Name: category.Name})
		changed = true
	}

	if changed {
		if err := w.importer.ds.SaveMetadataField(&field); err != nil {
			return err
		}
		if exists {
			w.result.Updated++
		} else {
			w.result.Created++
		}
	} else {
		w.result.Skipped++
	}

	w.fields[name] = field
	return nil
}

func categoryHasParent(category *datastore.MetadataCategory, parentID uint) bool {
	for _, parent := range category.Categories {
		if parent.ID == parentID {
			return true
		}
	}
	return false
}

func fieldHasCategory(field *datastore.MetadataField, categoryID uint) bool {
	for _, category := range field.Categories {
		if category.ID == categoryID {
			return true
		}
	}
	return false
}
