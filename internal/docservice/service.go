// Package docservice coordinates conversion, validation and persistence of
// block documents.
package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/goliatone/go-slug"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/checksum"
	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/schema"
	"github.com/iteam-company/blockpress/internal/storage"
	"github.com/iteam-company/blockpress/internal/store"
)

// Event kinds passed to a Notifier.
const (
	EventConverted = "converted"
	EventRemoved   = "removed"
)

// Notifier is called after every successful store mutation with the event
// kind and the document slug.
type Notifier func(kind, slug string)

// PublishOptions controls how Publish stores a conversion.
type PublishOptions struct {
	// Slug overrides the slug derived from the document title.
	Slug string
	// Overwrite replaces an existing document with the same slug.
	Overwrite bool
}

// SyncResult counts the outcome of a Sync pass.
type SyncResult struct {
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Service coordinates the converter, the schema validator, the document
// store and the content directory.
type Service struct {
	conv      *converter.Converter
	validator *schema.Validator
	db        store.DocumentIndex
	content   storage.Provider
	exts      []string
	logger    *slog.Logger
	notify    Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithValidator validates every converted document before it is returned or
// stored.
func WithValidator(v *schema.Validator) Option {
	return func(s *Service) { s.validator = v }
}

// WithContent enables file indexing over the content directory. Only files
// whose extension is in exts are converted.
func WithContent(p storage.Provider, exts []string) Option {
	return func(s *Service) {
		s.content = p
		s.exts = exts
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier registers the mutation callback.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// New creates a Service.
func New(conv *converter.Converter, db store.DocumentIndex, opts ...Option) *Service {
	s := &Service{
		conv:   conv,
		db:     db,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Extensions returns the content extensions the service converts.
func (s *Service) Extensions() []string { return s.exts }

// Convert converts req and validates the result without storing it.
func (s *Service) Convert(ctx context.Context, req converter.Request) (*models.Document, error) {
	doc, err := s.conv.Convert(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator.ValidateDocument(doc); err != nil {
			return nil, fmt.Errorf("docservice: %w", err)
		}
	}
	return doc, nil
}

// Publish converts req and stores the document under a slug derived from
// its title. It fails with ErrAlreadyExists when the slug is taken and
// opts.Overwrite is false.
func (s *Service) Publish(ctx context.Context, req converter.Request, opts PublishOptions) (*models.StoredDocument, error) {
	doc, err := s.Convert(ctx, req)
	if err != nil {
		return nil, err
	}

	key := opts.Slug
	if key == "" {
		key = doc.Metadata.Title
	}
	id, err := s.slugFor(key, []byte(req.Source))
	if err != nil {
		return nil, err
	}

	existing, err := s.db.GetDocument(id)
	switch {
	case err == nil:
		if !opts.Overwrite {
			return nil, fmt.Errorf("docservice: publish %s: %w", id, apperr.ErrAlreadyExists)
		}
		if existing.SourcePath != "" {
			return nil, fmt.Errorf("docservice: %s is backed by %s: %w", id, existing.SourcePath, apperr.ErrConflict)
		}
		doc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	stored, err := toStored(id, "", checksum.Sum([]byte(req.Source)), doc)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertDocument(stored, doc.PlainText()); err != nil {
		return nil, err
	}
	s.logger.Info("document published", slog.String("slug", id), slog.Int("blocks", stored.BlockCount))
	s.emit(EventConverted, id)
	return &stored, nil
}

// Get returns a stored document.
func (s *Service) Get(_ context.Context, slug string) (*models.StoredDocument, error) {
	return s.db.GetDocument(slug)
}

// List returns a page of document summaries and the total count.
func (s *Service) List(_ context.Context, opts store.ListOptions) ([]models.DocumentSummary, int, error) {
	return s.db.ListDocuments(opts)
}

// Search runs a full-text query over stored documents.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	hits, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return hits, nil
}

// Delete removes a stored document. For a file-backed document the source
// file is removed too, otherwise the next sync would bring it back.
func (s *Service) Delete(_ context.Context, slug string) error {
	doc, err := s.db.GetDocument(slug)
	if err != nil {
		return err
	}
	if doc.SourcePath != "" && s.content != nil {
		if err := s.content.Delete(doc.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: delete source: %w", err)
		}
	}
	if err := s.db.DeleteDocument(slug); err != nil {
		return err
	}
	s.emit(EventRemoved, slug)
	return nil
}

// IndexFile converts the content file at path and stores the result. The
// slug is kept stable across re-conversions of the same file.
func (s *Service) IndexFile(ctx context.Context, path string, data []byte) (string, error) {
	format, ok := converter.FormatForPath(path)
	if !ok {
		return "", fmt.Errorf("docservice: %s: unsupported extension: %w", path, apperr.ErrInvalidDocument)
	}

	id, err := s.db.SlugForSource(path)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		if id, err = s.slugFor(stem(path), data); err != nil {
			return "", err
		}
	}

	doc, err := s.Convert(ctx, converter.Request{Source: string(data), Format: format})
	if err != nil {
		return "", fmt.Errorf("docservice: convert %s: %w", path, err)
	}

	if existing, err := s.db.GetDocument(id); err == nil {
		if existing.SourcePath != path {
			return "", fmt.Errorf("docservice: slug %s already used by %q: %w", id, existing.SourcePath, apperr.ErrConflict)
		}
		doc.CreatedAt = existing.CreatedAt
	}

	stored, err := toStored(id, path, checksum.Sum(data), doc)
	if err != nil {
		return "", err
	}
	if err := s.db.UpsertDocument(stored, doc.PlainText()); err != nil {
		return "", err
	}
	s.emit(EventConverted, id)
	return id, nil
}

// RemoveFile drops the document converted from path. It returns the removed
// slug, or "" when path had no document.
func (s *Service) RemoveFile(_ context.Context, path string) (string, error) {
	id, err := s.db.DeleteBySource(path)
	if err != nil {
		return "", err
	}
	if id != "" {
		s.emit(EventRemoved, id)
	}
	return id, nil
}

// Sync walks the content directory and brings the store up to date:
//   - new/changed files are converted and upserted
//   - documents whose file is gone are removed
//
// Per-file failures are logged and counted, never returned.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	if s.content == nil {
		return res, nil
	}
	files, err := s.content.List("", s.exts)
	if err != nil {
		return res, fmt.Errorf("docservice: sync list: %w", err)
	}
	checksums, err := s.db.AllChecksums()
	if err != nil {
		return res, err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		disk[f.Path] = struct{}{}
		if checksums[f.Path] == f.Checksum {
			continue
		}
		data, err := s.content.Read(f.Path)
		if err != nil {
			res.Failed++
			s.logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := s.IndexFile(ctx, f.Path, data); err != nil {
			res.Failed++
			s.logger.Warn("sync: convert failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		res.Indexed++
		s.logger.Debug("sync: converted", slog.String("path", f.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if _, err := s.RemoveFile(ctx, p); err != nil {
			s.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
		s.logger.Debug("sync: removed stale", slog.String("path", p))
	}

	s.logger.Info("sync complete",
		slog.Int("indexed", res.Indexed),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// Reconcile runs Sync and only logs its error. The watcher calls it after
// renames.
func (s *Service) Reconcile(ctx context.Context) {
	if _, err := s.Sync(ctx); err != nil {
		s.logger.Warn("reconcile failed", slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, slug string) {
	if s.notify != nil {
		s.notify(kind, slug)
	}
}

// slugFor normalizes key into a slug. Keys with nothing sluggable fall back
// to a content hash.
func (s *Service) slugFor(key string, data []byte) (string, error) {
	if key != "" {
		id, err := slug.Normalize(key)
		if err == nil && id != "" {
			return id, nil
		}
	}
	if len(data) == 0 {
		return "", fmt.Errorf("docservice: cannot derive slug: %w", apperr.ErrInvalidDocument)
	}
	return "doc-" + checksum.Short(data, 12), nil
}

func stem(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

func toStored(id, source, sum string, doc *models.Document) (models.StoredDocument, error) {
	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return models.StoredDocument{}, fmt.Errorf("docservice: encode blocks: %w", err)
	}
	if doc.Blocks == nil {
		blocks = []byte("[]")
	}
	return models.StoredDocument{
		Slug:        id,
		SourcePath:  source,
		Metadata:    doc.Metadata,
		Blocks:      blocks,
		BlockCount:  len(doc.Blocks),
		Checksum:    sum,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PublishedAt: doc.PublishedAt,
	}, nil
}
