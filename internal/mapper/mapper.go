// Package mapper turns tokens into blocks of the document model.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/parser"
	"github.com/iteam-company/blockpress/internal/tokenizer"
)

// ImageResolver persists an image reference and returns its record.
type ImageResolver interface {
	Resolve(ctx context.Context, ref models.ImageRef) (*models.ImageRecord, error)
}

// FailurePolicy decides what replaces an image whose resolution failed.
type FailurePolicy string

const (
	// PolicyLocal synthesizes a local record from the reference URL.
	PolicyLocal FailurePolicy = "local"
	// PolicyParagraph keeps the raw image markup as a paragraph.
	PolicyParagraph FailurePolicy = "paragraph"
	// PolicySkip drops the block.
	PolicySkip FailurePolicy = "skip"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	switch p {
	case PolicyLocal, PolicyParagraph, PolicySkip:
		return true
	}
	return false
}

const defaultConcurrency = 4

// ImageError records a failed resolution of one image block.
type ImageError struct {
	Ref models.ImageRef
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("resolve image %q: %v", e.Ref.Name, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Mapper converts tokens to blocks.
type Mapper struct {
	resolver    ImageResolver
	policy      FailurePolicy
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithResolver sets the image resolver. Without one, images get a locally
// synthesized record.
func WithResolver(r ImageResolver) Option {
	return func(m *Mapper) { m.resolver = r }
}

// WithFailurePolicy sets the fallback for failed image resolutions.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(m *Mapper) {
		if p.Valid() {
			m.policy = p
		}
	}
}

// WithConcurrency bounds concurrent image resolutions.
func WithConcurrency(n int) Option {
	return func(m *Mapper) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the time source for synthesized image records.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		policy:      PolicyLocal,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MapTokens maps every token to at most one block, in token order. images
// maps alt text to an image payload that replaces the URL of a matching
// Markdown image. Image resolutions run concurrently; a failed resolution
// is handled by the failure policy and never aborts the mapping.
func (m *Mapper) MapTokens(ctx context.Context, tokens []tokenizer.Token, images map[string]string) []models.Block {
	slots := make([]models.Block, len(tokens))

	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for i, tok := range tokens {
		if tok.Kind == tokenizer.KindImage && tok.Source == tokenizer.SourceMarkdown && m.resolver != nil {
			ref := models.ImageRef{Name: tok.Alt, Source: tok.Src}
			if payload, ok := images[tok.Alt]; ok && payload != "" {
				ref.Source = payload
			}
			g.Go(func() error {
				slots[i] = m.resolveImage(ctx, tok, ref)
				return nil
			})
			continue
		}
		slots[i] = m.mapToken(tok)
	}
	_ = g.Wait()

	blocks := make([]models.Block, 0, len(slots))
	for _, b := range slots {
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func (m *Mapper) resolveImage(ctx context.Context, tok tokenizer.Token, ref models.ImageRef) models.Block {
	rec, err := m.resolver.Resolve(ctx, ref)
	if err == nil && rec != nil {
		return models.NewImageBlock(*rec)
	}
	if err == nil {
		err = errors.New("resolver returned no record")
	}
	ierr := &ImageError{Ref: ref, Err: err}
	m.logger.Warn("image resolution failed",
		slog.String("alt", tok.Alt),
		slog.String("source", abbreviate(tok.Src)),
		slog.String("policy", string(m.policy)),
		slog.String("error", ierr.Error()),
	)

	switch m.policy {
	case PolicyParagraph:
		return models.ParagraphBlock{Children: parser.ResolveInline(tok.Text)}
	case PolicySkip:
		return nil
	default:
		return models.NewImageBlock(synthesize(tok.Src, tok.Alt, 0, 0, m.now()))
	}
}

func (m *Mapper) mapToken(tok tokenizer.Token) models.Block {
	switch tok.Kind {
	case tokenizer.KindHeading:
		return models.HeadingBlock{Level: tok.Depth, Children: m.inline(tok)}
	case tokenizer.KindParagraph:
		return models.ParagraphBlock{Children: m.inline(tok)}
	case tokenizer.KindQuote:
		return models.QuoteBlock{Children: m.inline(tok)}
	case tokenizer.KindCode:
		return models.NewCodeBlock(tok.Text)
	case tokenizer.KindList:
		return m.list(tok)
	case tokenizer.KindImage:
		return models.NewImageBlock(synthesize(tok.Src, tok.Alt, tok.Width, tok.Height, m.now()))
	case tokenizer.KindElement:
		children := HTMLInline(tok.Node)
		if len(children) == 0 {
			return nil
		}
		return models.ParagraphBlock{Children: children}
	default:
		m.logger.Debug("dropped unmapped block", slog.String("kind", tok.Name))
		return nil
	}
}

func (m *Mapper) inline(tok tokenizer.Token) []models.Inline {
	if tok.Source == tokenizer.SourceHTML {
		if tok.Node == nil {
			return []models.Inline{models.TextSpan{Text: tok.Text}}
		}
		return HTMLInline(tok.Node)
	}
	return parser.ResolveInline(tok.Text)
}

func (m *Mapper) list(tok tokenizer.Token) models.ListBlock {
	format := models.ListUnordered
	if tok.Ordered {
		format = models.ListOrdered
	}
	list := models.ListBlock{Format: format, Children: []models.ListItem{}}
	if tok.Source == tokenizer.SourceHTML {
		for c := tok.Node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			list.Children = append(list.Children, models.ListItem{Children: HTMLInline(c)})
		}
		return list
	}
	for _, item := range tok.Items {
		list.Children = append(list.Children, models.ListItem{Children: parser.ResolveInline(item)})
	}
	return list
}

func abbreviate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
