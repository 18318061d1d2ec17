package store

import "github.com/iteam-company/blockpress/internal/models"

// DocumentIndex defines the persistence operations used by the document
// service. Consumers depend on this interface rather than *DB.
type DocumentIndex interface {
	UpsertDocument(doc models.StoredDocument, body string) error
	GetDocument(slug string) (*models.StoredDocument, error)
	DeleteDocument(slug string) error
	DeleteBySource(path string) (string, error)
	SlugForSource(path string) (string, error)
	ListDocuments(opts ListOptions) ([]models.DocumentSummary, int, error)
	Search(query string, limit int) ([]models.SearchHit, error)
	AllChecksums() (map[string]string, error)
	GetChecksum(path string) (string, error)
	Close() error
}

var _ DocumentIndex = (*DB)(nil)
