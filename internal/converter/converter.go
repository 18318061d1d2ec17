// Package converter turns Markdown or HTML documents into block documents.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/mapper"
	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/parser"
	"github.com/iteam-company/blockpress/internal/tokenizer"
)

// Format is the syntax of a source document.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// HTMLMode selects how HTML bodies are tokenized.
type HTMLMode string

const (
	// HTMLModeDOM maps the DOM directly. Images are never uploaded.
	HTMLModeDOM HTMLMode = "dom"
	// HTMLModeMarkdown converts HTML to Markdown first, so images go
	// through the image resolver.
	HTMLModeMarkdown HTMLMode = "markdown"
)

// Request describes one conversion.
type Request struct {
	Source string
	// Format is detected from Source when empty.
	Format Format
	// Metadata, when set, replaces frontmatter extraction and the whole
	// Source is treated as body.
	Metadata *models.DocumentMetadata
	// Images maps image alt text to a payload (URL, data URI or base64).
	Images map[string]string
}

// Converter runs frontmatter extraction, tokenization and block mapping.
type Converter struct {
	logger          *slog.Logger
	now             func() time.Time
	requireMetadata bool
	htmlMode        HTMLMode

	resolver    mapper.ImageResolver
	policy      mapper.FailurePolicy
	concurrency int

	mapper *mapper.Mapper
}

// New creates a Converter. Metadata is required by default.
func New(opts ...Option) *Converter {
	c := &Converter{
		logger:          slog.Default(),
		now:             func() time.Time { return time.Now().UTC() },
		requireMetadata: true,
		htmlMode:        HTMLModeDOM,
		policy:          mapper.PolicyLocal,
	}
	for _, o := range opts {
		o(c)
	}

	mopts := []mapper.Option{
		mapper.WithLogger(c.logger),
		mapper.WithClock(c.now),
		mapper.WithFailurePolicy(c.policy),
		mapper.WithConcurrency(c.concurrency),
	}
	if c.resolver != nil {
		mopts = append(mopts, mapper.WithResolver(c.resolver))
	}
	c.mapper = mapper.New(mopts...)
	return c
}

// ConvertMarkdown converts a Markdown document.
func (c *Converter) ConvertMarkdown(ctx context.Context, src string, meta *models.DocumentMetadata) (*models.Document, error) {
	return c.Convert(ctx, Request{Source: src, Format: FormatMarkdown, Metadata: meta})
}

// ConvertHTML converts an HTML document.
func (c *Converter) ConvertHTML(ctx context.Context, src string, meta *models.DocumentMetadata) (*models.Document, error) {
	return c.Convert(ctx, Request{Source: src, Format: FormatHTML, Metadata: meta})
}

// Convert converts req into a document. It fails with ErrMissingMetadata
// when no metadata was supplied or found and metadata is required, and with
// the context error when ctx ends during image resolution. A failed image
// never fails the conversion.
func (c *Converter) Convert(ctx context.Context, req Request) (*models.Document, error) {
	format := req.Format
	if format == "" {
		format = DetectFormat(req.Source)
	}

	var (
		meta   models.DocumentMetadata
		found  bool
		tokens []tokenizer.Token
		err    error
	)
	switch format {
	case FormatMarkdown:
		meta, found, tokens = c.markdown(req)
	case FormatHTML:
		meta, found, tokens, err = c.html(req)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("converter: unknown format %q: %w", format, apperr.ErrInvalidDocument)
	}

	if req.Metadata != nil {
		meta, found = *req.Metadata, true
	}
	if !found && c.requireMetadata {
		return nil, fmt.Errorf("converter: %w", apperr.ErrMissingMetadata)
	}

	blocks := c.mapper.MapTokens(ctx, tokens, req.Images)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("converter: %w", err)
	}

	now := c.now()
	doc := &models.Document{
		Metadata:    meta,
		Blocks:      blocks,
		CreatedAt:   now,
		UpdatedAt:   now,
		PublishedAt: now,
	}
	c.logger.Debug("document converted",
		slog.String("format", string(format)),
		slog.String("title", meta.Title),
		slog.Int("tokens", len(tokens)),
		slog.Int("blocks", len(blocks)),
	)
	return doc, nil
}

func (c *Converter) markdown(req Request) (models.DocumentMetadata, bool, []tokenizer.Token) {
	if req.Metadata != nil {
		return *req.Metadata, true, tokenizer.Markdown(req.Source)
	}
	fm := parser.ExtractFrontmatter(req.Source)
	return fm.Metadata, fm.Found, tokenizer.Markdown(fm.Body)
}

func (c *Converter) html(req Request) (models.DocumentMetadata, bool, []tokenizer.Token, error) {
	body := req.Source
	var (
		meta  models.DocumentMetadata
		found bool
	)
	if req.Metadata == nil {
		fm := parser.ExtractFrontmatter(req.Source)
		meta, found, body = fm.Metadata, fm.Found, fm.Body
	}

	tokens, doc, err := tokenizer.HTML(body)
	if err != nil {
		return meta, false, nil, fmt.Errorf("converter: %w", err)
	}

	if !found && req.Metadata == nil {
		title, desc, category := tokenizer.Metadata(doc)
		meta = models.DocumentMetadata{Title: title, Category: category, PreviewDescription: desc}
		found = title != "" || desc != ""
	}

	if c.htmlMode == HTMLModeMarkdown {
		root := tokenizer.Body(doc)
		if root == nil {
			return meta, found, nil, nil
		}
		out, err := htmltomarkdown.ConvertNode(root)
		if err != nil {
			return meta, found, nil, fmt.Errorf("converter: html to markdown: %w", err)
		}
		tokens = tokenizer.Markdown(string(out))
	}
	return meta, found, tokens, nil
}

var (
	leadingCommentRe = regexp.MustCompile(`^(?s)<!--.*?-->\s*`)
	documentStartRe  = regexp.MustCompile(`(?i)^<(!doctype\s|html[\s>]|head[\s>]|body[\s>])`)
	tagStartRe       = regexp.MustCompile(`^<[A-Za-z][A-Za-z0-9-]*[\s/>]`)
	markdownBlockRe  = regexp.MustCompile("(?m)^ {0,3}(#{1,6}\\s|[-*+]\\s|\\d+[.)]\\s|>|```|~~~)")
)

// DetectFormat guesses the format of src. Leading HTML comments are
// skipped. A doctype or <html>/<head>/<body> start means HTML; any other
// leading tag means HTML only when no line carries Markdown block syntax.
func DetectFormat(src string) Format {
	s := strings.TrimSpace(src)
	for {
		loc := leadingCommentRe.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = s[loc[1]:]
	}
	switch {
	case documentStartRe.MatchString(s):
		return FormatHTML
	case tagStartRe.MatchString(s) && !markdownBlockRe.MatchString(s):
		return FormatHTML
	}
	return FormatMarkdown
}

// FormatForPath returns the format implied by a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".html", ".htm":
		return FormatHTML, true
	}
	return "", false
}
