package tokenizer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown lexes body into top-level tokens. Block types without a mapping
// (tables, thematic breaks, raw HTML) come back as KindOther.
func Markdown(body string) []Token {
	src := []byte(body)
	doc := md.Parser().Parse(text.NewReader(src))

	var tokens []Token
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		tokens = append(tokens, markdownToken(n, src))
	}
	return tokens
}

func markdownToken(n ast.Node, src []byte) Token {
	switch node := n.(type) {
	case *ast.Heading:
		return Token{Kind: KindHeading, Depth: node.Level, Text: lineText(node, src)}
	case *ast.Paragraph:
		raw := lineText(node, src)
		if alt, url, ok := MatchImage(raw); ok {
			return Token{Kind: KindImage, Text: raw, Alt: alt, Src: url}
		}
		return Token{Kind: KindParagraph, Text: raw}
	case *ast.List:
		return Token{Kind: KindList, Ordered: node.IsOrdered(), Items: listItems(node, src)}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return Token{Kind: KindCode, Text: codeText(n, src)}
	case *ast.Blockquote:
		return Token{Kind: KindQuote, Text: strings.Join(quoteLines(node, src), "\n")}
	default:
		return Token{Kind: KindOther, Name: n.Kind().String()}
	}
}

// lineText joins the source lines of a block without their line endings.
func lineText(n ast.Node, src []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(src)), "\r\n"))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func codeText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// listItems flattens nested lists into the item sequence of the outer list.
func listItems(list *ast.List, src []byte) []string {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var (
			lines  []string
			nested []string
		)
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, listItems(sub, src)...)
				continue
			}
			if t := lineText(c, src); t != "" {
				lines = append(lines, t)
			}
		}
		items = append(items, strings.Join(lines, "\n"))
		items = append(items, nested...)
	}
	return items
}

func quoteLines(n ast.Node, src []byte) []string {
	var out []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.Blockquote, *ast.List, *ast.ListItem:
			out = append(out, quoteLines(c, src)...)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			out = append(out, codeText(c, src))
		default:
			if t := lineText(c, src); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
