package api

import (
	"github.com/iteam-company/blockpress/internal/models"
)

// ConvertRequest is the JSON body of POST /convert.
type ConvertRequest struct {
	Source string `json:"source" example:"---\ntitle: Hello\n---\n# Hi" validate:"required"`
	// Format is "markdown" or "html"; detected from Source when empty.
	Format   string                   `json:"format,omitempty" example:"markdown"`
	Metadata *models.DocumentMetadata `json:"metadata,omitempty"`
	// Images maps image alt text to a URL, data URI or base64 payload.
	Images map[string]string `json:"images,omitempty"`
	// Slug and Overwrite apply when the result is stored.
	Slug      string `json:"slug,omitempty" example:"hello"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// InlineRequest is the JSON body of POST /inline.
type InlineRequest struct {
	Text string `json:"text" example:"**bold** and [a link](https://example.com)" validate:"required"`
}

// InlineResponse lists the resolved inline nodes.
type InlineResponse struct {
	Children []models.Inline `json:"children" validate:"required"`
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentSummary `json:"documents" validate:"required"`
	Total     int                      `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}
