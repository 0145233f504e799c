package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

const subjectSchemaFixture = `{
  "type": "object",
  "description": "Everything known about the recorded animal",
  "properties": {
    "environment": {
      "type": "object",
      "description": "Housing conditions",
      "properties": {
        "temperature": {"type": "number", "description": "Room temperature in celsius"},
        "light_cycle": {"type": "string"}
      }
    },
    "weight": {"type": "number", "description": "Body weight in grams"}
  }
}`

func TestImportMetadataSchema(t *testing.T) {
	imp, ds := newTestImporter(t)
	path := writeFixture(t, "subject.json", subjectSchemaFixture)

	result, err := imp.ImportMetadataSchema(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created, "two categories and three fields")
	assert.Equal(t, 0, result.Updated)

	categories, err := ds.ListMetadataCategories()
	require.NoError(t, err)
	require.Len(t, categories, 2)

	byName := make(map[string]datastore.MetadataCategory, len(categories))
	for _, category := range categories {
		byName[category.Name] = category
	}

	// The file stem names the root category.
	root, ok := byName["subject"]
	require.True(t, ok)
	assert.Equal(t, "Everything known about the recorded animal", root.Description)
	assert.Empty(t, root.Categories)

	environment, ok := byName["environment"]
	require.True(t, ok)
	assert.Equal(t, "Housing conditions", environment.Description)
	require.Len(t, environment.Categories, 1)
	assert.Equal(t, root.ID, environment.Categories[0].ID)

	fields, err := ds.ListMetadataFields()
	require.NoError(t, err)
	require.Len(t, fields, 3)

	fieldCategory := make(map[string]uint, len(fields))
	for _, field := range fields {
		require.Len(t, field.Categories, 1, field.Name)
		fieldCategory[field.Name] = field.Categories[0].ID
	}
	assert.Equal(t, environment.ID, fieldCategory["temperature"])
	assert.Equal(t, environment.ID, fieldCategory["light_cycle"])
	assert.Equal(t, root.ID, fieldCategory["weight"])
}

func TestImportMetadataSchemaIdempotent(t *testing.T) {
	imp, _ := newTestImporter(t)
	path := writeFixture(t, "subject.json", subjectSchemaFixture)

	_, err := imp.ImportMetadataSchema(context.Background(), path)
	require.NoError(t, err)

	again, err := imp.ImportMetadataSchema(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 5, again.Skipped)
}

func TestImportMetadataSchemaBackfillsDescriptions(t *testing.T) {
	imp, ds := newTestImporter(t)
	require.NoError(t, ds.SaveMetadataCategory(&datastore.MetadataCategory{Name: "environment"}))
	require.NoError(t, ds.SaveMetadataField(&datastore.MetadataField{Name: "weight"}))

	path := writeFixture(t, "subject.json", subjectSchemaFixture)
	result, err := imp.ImportMetadataSchema(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 2, result.Updated, "existing category and field get linked and described")

	categories, err := ds.ListMetadataCategories()
	require.NoError(t, err)
	for _, category := range categories {
		if category.Name == "environment" {
			assert.Equal(t, "Housing conditions", category.Description)
			assert.Len(t, category.Categories, 1)
		}
	}
}

func TestImportMetadataSchemaRejectsBadJSON(t *testing.T) {
	imp, _ := newTestImporter(t)
	path := writeFixture(t, "broken.json", `{"type": "object",`)

	_, err := imp.ImportMetadataSchema(context.Background(), path)
	require.Error(t, err)
}

func TestImportMetadataSchemaMissingFile(t *testing.T) {
	imp, _ := newTestImporter(t)

	_, err := imp.ImportMetadataSchema(context.Background(), "/nonexistent/schema.json")
	require.Error(t, err)
}
