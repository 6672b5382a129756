package models

// ProductRecord is the data extracted from a single product page.
// Title and Description are nil when the page does not carry them.
type ProductRecord struct {
	ID          string   `json:"id"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	ImageURLs   []string `json:"image_urls"`
}

func NewProductRecord(id string) *ProductRecord {
	return &ProductRecord{
		ID:        id,
		ImageURLs: make([]string, 0),
	}
}

func (p *ProductRecord) HasTitle() bool {
	return p.Title != nil
}

func (p *ProductRecord) HasDescription() bool {
	return p.Description != nil
}

// Validate reports the invariants a record must hold before it is persisted.
func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.ID == "" {
		errors = append(errors, "ID is required")
	}

	if p.ImageURLs == nil {
		errors = append(errors, "ImageURLs must not be nil")
	}

	return errors
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
