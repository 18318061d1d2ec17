package models

import (
	"encoding/json"
	"strings"
)

// Block type discriminants of the wire format.
const (
	BlockHeading   = "heading"
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockCode      = "code"
	BlockQuote     = "quote"
	BlockImage     = "image"
)

// ListFormat is the "format" field of a list block.
type ListFormat string

// List formats.
const (
	ListOrdered   ListFormat = "ordered"
	ListUnordered ListFormat = "unordered"
)

// Block is a top-level unit of document content. The set of implementations is
// closed: HeadingBlock, ParagraphBlock, ListBlock, CodeBlock, QuoteBlock, ImageBlock.
type Block interface {
	BlockType() string
	// PlainText returns the visible text of the block.
	PlainText() string
	block()
}

// HeadingBlock is a heading of level 1 to 6.
type HeadingBlock struct {
	Level    int      `json:"level"`
	Children []Inline `json:"children"`
}

// ParagraphBlock is a paragraph of inline content.
type ParagraphBlock struct {
	Children []Inline `json:"children"`
}

// ListItem is one entry of a ListBlock.
type ListItem struct {
	Children []Inline `json:"children"`
}

// ListBlock is an ordered or unordered list.
type ListBlock struct {
	Format   ListFormat `json:"format"`
	Children []ListItem `json:"children"`
}

// CodeBlock holds raw code text in a single unformatted span.
type CodeBlock struct {
	Children []TextSpan `json:"children"`
}

// QuoteBlock is a block quote of inline content.
type QuoteBlock struct {
	Children []Inline `json:"children"`
}

// ImageBlock carries an image record. Children is a single empty span required
// by the downstream schema.
type ImageBlock struct {
	Image    ImageRecord `json:"image"`
	Children []TextSpan  `json:"children"`
}

// NewCodeBlock wraps raw code text.
func NewCodeBlock(code string) CodeBlock {
	return CodeBlock{Children: []TextSpan{{Text: code}}}
}

// NewImageBlock wraps an image record with the placeholder child.
func NewImageBlock(img ImageRecord) ImageBlock {
	return ImageBlock{Image: img, Children: []TextSpan{{Text: ""}}}
}

func (HeadingBlock) BlockType() string   { return BlockHeading }
func (ParagraphBlock) BlockType() string { return BlockParagraph }
func (ListBlock) BlockType() string      { return BlockList }
func (CodeBlock) BlockType() string      { return BlockCode }
func (QuoteBlock) BlockType() string     { return BlockQuote }
func (ImageBlock) BlockType() string     { return BlockImage }

func (HeadingBlock) block()   {}
func (ParagraphBlock) block() {}
func (ListBlock) block()      {}
func (CodeBlock) block()      {}
func (QuoteBlock) block()     {}
func (ImageBlock) block()     {}

func (b HeadingBlock) PlainText() string   { return InlineText(b.Children) }
func (b ParagraphBlock) PlainText() string { return InlineText(b.Children) }
func (b QuoteBlock) PlainText() string     { return InlineText(b.Children) }

func (b ListBlock) PlainText() string {
	lines := make([]string, 0, len(b.Children))
	for _, item := range b.Children {
		lines = append(lines, InlineText(item.Children))
	}
	return strings.Join(lines, "\n")
}

func (b CodeBlock) PlainText() string {
	var sb strings.Builder
	for _, c := range b.Children {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func (b ImageBlock) PlainText() string {
	if b.Image.AlternativeText != nil {
		return *b.Image.AlternativeText
	}
	return ""
}

func (b HeadingBlock) MarshalJSON() ([]byte, error) {
	type heading HeadingBlock
	b.Children = nonNilInline(b.Children)
	return json.Marshal(struct {
		Type string `json:"type"`
		heading
	}{BlockHeading, heading(b)})
}

func (b ParagraphBlock) MarshalJSON() ([]byte, error) {
	type paragraph ParagraphBlock
	b.Children = nonNilInline(b.Children)
	return json.Marshal(struct {
		Type string `json:"type"`
		paragraph
	}{BlockParagraph, paragraph(b)})
}

func (i ListItem) MarshalJSON() ([]byte, error) {
	type item ListItem
	i.Children = nonNilInline(i.Children)
	return json.Marshal(struct {
		Type string `json:"type"`
		item
	}{NodeListItem, item(i)})
}

func (b ListBlock) MarshalJSON() ([]byte, error) {
	type list ListBlock
	if b.Children == nil {
		b.Children = []ListItem{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		list
	}{BlockList, list(b)})
}

func (b CodeBlock) MarshalJSON() ([]byte, error) {
	type code CodeBlock
	if b.Children == nil {
		b.Children = []TextSpan{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		code
	}{BlockCode, code(b)})
}

func (b QuoteBlock) MarshalJSON() ([]byte, error) {
	type quote QuoteBlock
	b.Children = nonNilInline(b.Children)
	return json.Marshal(struct {
		Type string `json:"type"`
		quote
	}{BlockQuote, quote(b)})
}

func (b ImageBlock) MarshalJSON() ([]byte, error) {
	type image ImageBlock
	if b.Children == nil {
		b.Children = []TextSpan{{Text: ""}}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		image
	}{BlockImage, image(b)})
}

func nonNilInline(s []Inline) []Inline {
	if s == nil {
		return []Inline{}
	}
	return s
}
