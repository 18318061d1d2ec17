// Package media resolves image references into stored image records.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/checksum"
	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/storage"
)

const (
	DefaultMaxSize    = 10 << 20 // 10 MB
	DefaultPublicPath = "/attachments"
)

// Resolver decodes or downloads images, stores them and builds their
// records. It satisfies mapper.ImageResolver.
type Resolver struct {
	store        storage.Provider
	publicPath   string
	publicDomain string
	maxSize      int64
	allowRemote  bool
	client       *http.Client
	checkHost    func(host string) error
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPublicPath sets the URL path under which stored files are served.
func WithPublicPath(p string) Option {
	return func(r *Resolver) {
		if p != "" {
			r.publicPath = "/" + strings.Trim(p, "/")
		}
	}
}

// WithPublicDomain makes record URLs absolute.
func WithPublicDomain(d string) Option {
	return func(r *Resolver) { r.publicDomain = d }
}

func WithMaxSize(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// WithRemoteFetch enables downloading http(s) image URLs.
func WithRemoteFetch(enabled bool) Option {
	return func(r *Resolver) { r.allowRemote = enabled }
}

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver that stores files in store.
func NewResolver(store storage.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		publicPath: DefaultPublicPath,
		maxSize:    DefaultMaxSize,
		client:     &http.Client{Timeout: 30 * time.Second},
		checkHost:  checkBlockedHost,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve loads the image named by ref, stores it under a content-addressed
// file name and returns its record. ref.Source may be a data URI, an
// http(s) URL (when remote fetching is enabled) or a bare base64 payload.
func (r *Resolver) Resolve(ctx context.Context, ref models.ImageRef) (*models.ImageRecord, error) {
	data, ext, err := r.load(ctx, ref.Source)
	if err != nil {
		return nil, fmt.Errorf("media: resolve: %w", err)
	}
	if ext == "" {
		ext = strings.ToLower(path.Ext(urlPath(ref.Source)))
	}
	if err := r.check(data, ext); err != nil {
		return nil, fmt.Errorf("media: resolve: %w", err)
	}
	ext = normalizeExt(ext)
	return r.persist(baseName(ref.Name, ref.Source, ext), ref.Name, data, ext)
}

// Upload stores raw image bytes under a name derived from filename.
func (r *Resolver) Upload(_ context.Context, filename string, data []byte) (*models.ImageRecord, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if err := r.check(data, ext); err != nil {
		return nil, fmt.Errorf("media: upload: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	ext = normalizeExt(ext)
	return r.persist(baseName(stem, "", ext), "", data, ext)
}

func (r *Resolver) check(data []byte, ext string) error {
	if int64(len(data)) > r.maxSize {
		return fmt.Errorf("file too large: %d bytes (max %d): %w", len(data), r.maxSize, apperr.ErrUnsupportedImage)
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file extension %q: %w", ext, apperr.ErrUnsupportedImage)
	}
	return validateMagicBytes(data, ext)
}

// persist writes data under a content-addressed file name and builds its
// record. Identical content is written once.
func (r *Resolver) persist(name, alt string, data []byte, ext string) (*models.ImageRecord, error) {
	hash := checksum.Short(data, 16)
	filename := hash[:8] + "-" + name

	if !r.store.Exists(filename) {
		if err := r.store.Write(filename, data); err != nil {
			return nil, fmt.Errorf("media: store %s: %w", filename, err)
		}
	}

	width, height := dimensions(data)
	now := r.now()
	rec := &models.ImageRecord{
		Name:            name,
		AlternativeText: models.AltText(alt),
		Width:           width,
		Height:          height,
		Hash:            hash,
		Ext:             ext,
		Mime:            extToMime[ext],
		Size:            kilobytes(len(data)),
		URL:             path.Join(r.publicPath, filename),
		Provider:        models.ProviderLocal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	AbsoluteURLs(rec, r.publicDomain)

	r.logger.Debug("image stored",
		slog.String("file", filename),
		slog.Int("bytes", len(data)),
	)
	return rec, nil
}

func normalizeExt(ext string) string {
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ext
}

// Open returns the stored file for a public file name.
func (r *Resolver) Open(filename string) ([]byte, string, error) {
	clean := filepath.Base(filename)
	if clean != filename || !r.store.Exists(clean) {
		return nil, "", fmt.Errorf("media: %s: %w", filename, apperr.ErrNotFound)
	}
	data, err := r.store.Read(clean)
	if err != nil {
		return nil, "", fmt.Errorf("media: open: %w", err)
	}
	mime := extToMime[strings.ToLower(filepath.Ext(clean))]
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (r *Resolver) load(ctx context.Context, src string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if !r.allowRemote {
			return nil, "", fmt.Errorf("remote fetching disabled: %w", apperr.ErrUnsupportedImage)
		}
		return r.fetchHTTP(ctx, src)
	default:
		return decodePayload(src)
	}
}

// AbsoluteURLs prefixes the relative URL of rec and of every present
// format with domain. A trailing slash on domain is ignored.
func AbsoluteURLs(rec *models.ImageRecord, domain string) {
	domain = strings.TrimRight(domain, "/")
	if domain == "" {
		return
	}
	abs := func(u string) string {
		if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "//") {
			return u
		}
		if !strings.HasPrefix(u, "/") {
			u = "/" + u
		}
		return domain + u
	}
	rec.URL = abs(rec.URL)
	rec.Formats.Each(func(f *models.ImageFormat) { f.URL = abs(f.URL) })
}

func dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func kilobytes(n int) float64 {
	return math.Round(float64(n)/1024*100) / 100
}

func urlPath(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i]
	}
	return src
}
