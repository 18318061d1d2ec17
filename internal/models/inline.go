// Package models defines the block document model produced by the converter.
package models

import (
	"encoding/json"
	"strings"
)

// Node type discriminants of the inline wire format.
const (
	NodeText     = "text"
	NodeLink     = "link"
	NodeListItem = "list-item"
)

// Inline is one element of a block's inline content: a TextSpan or a LinkSpan.
type Inline interface {
	// NodeType returns the wire discriminant ("text" or "link").
	NodeType() string
	// PlainText returns the visible text of the node.
	PlainText() string
}

// TextSpan is a run of text with independent style flags.
type TextSpan struct {
	Text          string `json:"text"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
}

// NodeType implements Inline.
func (TextSpan) NodeType() string { return NodeText }

// PlainText implements Inline.
func (s TextSpan) PlainText() string { return s.Text }

// Plain reports whether no style flag is set.
func (s TextSpan) Plain() bool {
	return !s.Bold && !s.Italic && !s.Code && !s.Strikethrough && !s.Underline
}

// MarshalJSON adds the "text" discriminant.
func (s TextSpan) MarshalJSON() ([]byte, error) {
	type span TextSpan
	return json.Marshal(struct {
		Type string `json:"type"`
		span
	}{NodeText, span(s)})
}

// LinkSpan wraps the label of a link. Children always hold exactly the label text.
type LinkSpan struct {
	URL      string     `json:"url"`
	Children []TextSpan `json:"children"`
}

// NewLink builds a LinkSpan with a single plain child.
func NewLink(url, label string) LinkSpan {
	return LinkSpan{URL: url, Children: []TextSpan{{Text: label}}}
}

// NodeType implements Inline.
func (LinkSpan) NodeType() string { return NodeLink }

// PlainText implements Inline.
func (l LinkSpan) PlainText() string {
	var b strings.Builder
	for _, c := range l.Children {
		b.WriteString(c.Text)
	}
	return b.String()
}

// MarshalJSON adds the "link" discriminant.
func (l LinkSpan) MarshalJSON() ([]byte, error) {
	type link LinkSpan
	if l.Children == nil {
		l.Children = []TextSpan{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		link
	}{NodeLink, link(l)})
}

// InlineText concatenates the visible text of nodes.
func InlineText(nodes []Inline) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.PlainText())
	}
	return b.String()
}
