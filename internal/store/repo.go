package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/models"
)

const defaultLimit = 50

// ListOptions filters and pages ListDocuments.
type ListOptions struct {
	Limit    int
	Offset   int
	Category string
	// Sort is one of "updated" (default, newest first) or "title".
	Sort string
}

// UpsertDocument inserts or replaces a document and its search entry in one
// transaction. body is the plain text used for search.
func (db *DB) UpsertDocument(doc models.StoredDocument, body string) error {
	if doc.Slug == "" {
		return fmt.Errorf("store: upsert: empty slug: %w", apperr.ErrInvalidDocument)
	}
	blocks := doc.Blocks
	if len(blocks) == 0 {
		blocks = json.RawMessage("[]")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (slug, source_path, title, category, preview_description,
			checksum, blocks, block_count, body, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			source_path         = excluded.source_path,
			title               = excluded.title,
			category            = excluded.category,
			preview_description = excluded.preview_description,
			checksum            = excluded.checksum,
			blocks              = excluded.blocks,
			block_count         = excluded.block_count,
			body                = excluded.body,
			updated_at          = excluded.updated_at,
			published_at        = excluded.published_at
	`, doc.Slug, doc.SourcePath, doc.Metadata.Title, doc.Metadata.Category, doc.Metadata.PreviewDescription,
		doc.Checksum, string(blocks), doc.BlockCount, body, doc.CreatedAt, doc.UpdatedAt, doc.PublishedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("store: upsert %s: %w", doc.Slug, apperr.ErrConflict)
		}
		return fmt.Errorf("store: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, doc.Slug, doc.Metadata.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDocument returns the stored document with the given slug.
func (db *DB) GetDocument(slug string) (*models.StoredDocument, error) {
	var (
		doc    models.StoredDocument
		blocks string
	)
	err := db.conn.QueryRow(`
		SELECT slug, source_path, title, category, preview_description, checksum,
		       blocks, block_count, created_at, updated_at, published_at
		FROM documents WHERE slug = ?
	`, slug).Scan(&doc.Slug, &doc.SourcePath, &doc.Metadata.Title, &doc.Metadata.Category,
		&doc.Metadata.PreviewDescription, &doc.Checksum, &blocks, &doc.BlockCount,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: document %s: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	doc.Blocks = json.RawMessage(blocks)
	return &doc, nil
}

// DeleteDocument removes a document and its search entry.
func (db *DB) DeleteDocument(slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM documents WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: document %s: %w", slug, apperr.ErrNotFound)
	}
	ftsDelete(tx, slug)
	return tx.Commit()
}

// DeleteBySource removes the document converted from a content file and
// returns its slug. A path with no document is not an error.
func (db *DB) DeleteBySource(path string) (string, error) {
	slug, err := db.SlugForSource(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if err := db.DeleteDocument(slug); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}
	return slug, nil
}

// SlugForSource returns the slug of the document converted from path.
func (db *DB) SlugForSource(path string) (string, error) {
	var slug string
	err := db.conn.QueryRow(`SELECT slug FROM documents WHERE source_path = ? AND source_path != ''`, path).Scan(&slug)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: source %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: slug for source: %w", err)
	}
	return slug, nil
}

// ListDocuments returns a page of summaries and the total count matching
// the filter.
func (db *DB) ListDocuments(opts ListOptions) ([]models.DocumentSummary, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := max(opts.Offset, 0)

	where := ""
	args := []any{}
	if opts.Category != "" {
		where = "WHERE category = ?"
		args = append(args, opts.Category)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count documents: %w", err)
	}

	order := "updated_at DESC, slug"
	if opts.Sort == "title" {
		order = "title COLLATE NOCASE, slug"
	}
	rows, err := db.conn.Query(`
		SELECT slug, source_path, title, category, block_count, checksum, updated_at
		FROM documents `+where+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentSummary{}
	for rows.Next() {
		var s models.DocumentSummary
		if err := rows.Scan(&s.Slug, &s.SourcePath, &s.Title, &s.Category, &s.BlockCount, &s.Checksum, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// AllChecksums maps the source path of every file-backed document to the
// checksum it was converted from.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT source_path, checksum FROM documents WHERE source_path != ''`)
	if err != nil {
		return nil, fmt.Errorf("store: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetChecksum returns the stored checksum for a source path, or "" when the
// path has no document.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE source_path = ? AND source_path != ''`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get checksum: %w", err)
	}
	return cs, nil
}
