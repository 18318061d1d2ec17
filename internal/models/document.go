package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DocumentMetadata is the descriptive header of a converted document.
type DocumentMetadata struct {
	Title              string `json:"title" yaml:"title"`
	Category           string `json:"category" yaml:"category"`
	PreviewDescription string `json:"previewDescription" yaml:"previewDescription"`
}

// Empty reports whether no metadata field is set.
func (m DocumentMetadata) Empty() bool {
	return m.Title == "" && m.Category == "" && m.PreviewDescription == ""
}

// Document is the result of a conversion.
type Document struct {
	Metadata    DocumentMetadata `json:"metadata"`
	Blocks      []Block          `json:"blocks"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// MarshalJSON keeps "blocks" an array when no block was produced.
func (d Document) MarshalJSON() ([]byte, error) {
	type document Document
	if d.Blocks == nil {
		d.Blocks = []Block{}
	}
	return json.Marshal(document(d))
}

// PlainText joins the visible text of every block, one block per line.
func (d Document) PlainText() string {
	parts := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		if t := b.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// ArticleData is the CMS article payload.
type ArticleData struct {
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	PreviewDescription string    `json:"previewDescription"`
	Article            []Block   `json:"Article"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	PublishedAt        time.Time `json:"publishedAt"`
}

// ArticleEnvelope wraps ArticleData as {"data": ...}.
type ArticleEnvelope struct {
	Data ArticleData `json:"data"`
}

// Article returns the document in the CMS article envelope.
func (d Document) Article() ArticleEnvelope {
	blocks := d.Blocks
	if blocks == nil {
		blocks = []Block{}
	}
	return ArticleEnvelope{Data: ArticleData{
		Title:              d.Metadata.Title,
		Category:           d.Metadata.Category,
		PreviewDescription: d.Metadata.PreviewDescription,
		Article:            blocks,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		PublishedAt:        d.PublishedAt,
	}}
}
