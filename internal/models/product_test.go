package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductRecord(t *testing.T) {
	record := NewProductRecord("B000TEST01")

	assert.Equal(t, "B000TEST01", record.ID)
	assert.NotNil(t, record.ImageURLs)
	assert.Empty(t, record.ImageURLs)
	assert.False(t, record.HasTitle())
	assert.False(t, record.HasDescription())
	assert.Empty(t, record.Validate())
}

func TestProductRecordValidate(t *testing.T) {
	record := &ProductRecord{}

	errs := record.Validate()
	assert.Contains(t, errs, "ID is required")
	assert.Contains(t, errs, "ImageURLs must not be nil")
}

func TestProductRecordJSONShape(t *testing.T) {
	record := NewProductRecord("abc")
	record.Title = StringPtr("Widget")

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","title":"Widget","description":null,"image_urls":[]}`, string(data))
}
