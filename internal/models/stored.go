package models

import (
	"encoding/json"
	"time"
)

// StoredDocument is a persisted conversion result. Blocks are kept in their
// encoded form so reads never need to decode the block tree.
type StoredDocument struct {
	Slug        string           `json:"slug"`
	SourcePath  string           `json:"source_path,omitempty"`
	Metadata    DocumentMetadata `json:"metadata"`
	Blocks      json.RawMessage  `json:"blocks"`
	BlockCount  int              `json:"block_count"`
	Checksum    string           `json:"checksum"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// DocumentSummary is a lightweight representation returned by list operations.
type DocumentSummary struct {
	Slug       string    `json:"slug"`
	SourcePath string    `json:"source_path,omitempty"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	BlockCount int       `json:"block_count"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SearchHit is one full-text search result.
type SearchHit struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SourceFile describes a file under the content root.
type SourceFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
