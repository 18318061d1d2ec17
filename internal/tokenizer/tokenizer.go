// Package tokenizer segments a document body into a flat sequence of
// block-level tokens.
package tokenizer

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Kind classifies a token.
type Kind int

const (
	KindOther Kind = iota
	KindHeading
	KindParagraph
	KindList
	KindCode
	KindQuote
	KindImage
	// KindElement is an HTML element with no dedicated mapping.
	KindElement
)

var kindNames = [...]string{"other", "heading", "paragraph", "list", "code", "quote", "image", "element"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Source is the syntax a token came from.
type Source int

const (
	SourceMarkdown Source = iota
	SourceHTML
)

// Token is one top-level syntactic unit. Which fields are set depends on
// Kind and Source: Markdown tokens carry raw inline text, HTML tokens carry
// the element in Node.
type Token struct {
	Kind   Kind
	Source Source
	// Depth is the heading level.
	Depth int
	// Text is the raw inline text (Markdown), the trimmed text of a bare
	// text node (HTML) or the verbatim code.
	Text    string
	Ordered bool
	// Items holds the raw text of each Markdown list item.
	Items []string
	// Image fields, set for KindImage.
	Alt    string
	Src    string
	Width  int
	Height int
	// Name is the syntax node name of a dropped token.
	Name string
	Node *html.Node
}

var imageParagraphRe = regexp.MustCompile(`^!\[(.*?)\]\((.*?)\)$`)

// MatchImage reports whether text consists of exactly one image reference.
func MatchImage(text string) (alt, src string, ok bool) {
	m := imageParagraphRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseInt reads a leading decimal integer the way lenient attribute
// parsing does: leading spaces and a sign are allowed, trailing garbage is
// ignored, and anything unparsable is 0.
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
