package converter

import (
	"log/slog"
	"time"

	"github.com/iteam-company/blockpress/internal/mapper"
)

// Option configures a Converter.
type Option func(*Converter)

// WithImageResolver sets the capability that persists Markdown images.
func WithImageResolver(r mapper.ImageResolver) Option {
	return func(c *Converter) { c.resolver = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

func WithImageConcurrency(n int) Option {
	return func(c *Converter) { c.concurrency = n }
}

func WithImageFailurePolicy(p mapper.FailurePolicy) Option {
	return func(c *Converter) { c.policy = p }
}

func WithHTMLMode(m HTMLMode) Option {
	return func(c *Converter) {
		if m == HTMLModeDOM || m == HTMLModeMarkdown {
			c.htmlMode = m
		}
	}
}

// WithRequireMetadata controls whether a document without any metadata is
// rejected.
func WithRequireMetadata(v bool) Option {
	return func(c *Converter) { c.requireMetadata = v }
}
