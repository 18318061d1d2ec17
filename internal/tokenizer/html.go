package tokenizer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML parses src and returns one token per top-level node of the body,
// together with the parsed document.
func HTML(src string) ([]Token, *html.Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, nil, fmt.Errorf("tokenizer: parse html: %w", err)
	}
	body := Body(doc)
	if body == nil {
		return nil, doc, nil
	}

	var tokens []Token
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if tok, ok := htmlToken(n); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens, doc, nil
}

func htmlToken(n *html.Node) (Token, bool) {
	switch n.Type {
	case html.TextNode:
		t := strings.TrimSpace(n.Data)
		if t == "" {
			return Token{}, false
		}
		return Token{Kind: KindParagraph, Source: SourceHTML, Text: t}, true
	case html.ElementNode:
	default:
		return Token{}, false
	}

	tok := Token{Source: SourceHTML, Node: n}
	switch n.DataAtom {
	case atom.P:
		tok.Kind = KindParagraph
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		tok.Kind = KindHeading
		tok.Depth = int(n.Data[1] - '0')
	case atom.Ul, atom.Ol:
		tok.Kind = KindList
		tok.Ordered = n.DataAtom == atom.Ol
	case atom.Pre:
		tok.Kind = KindCode
		tok.Text = TextContent(n)
	case atom.Blockquote:
		tok.Kind = KindQuote
	case atom.Img:
		tok.Kind = KindImage
		tok.Src = Attr(n, "src")
		tok.Alt = Attr(n, "alt")
		tok.Width = ParseInt(Attr(n, "width"))
		tok.Height = ParseInt(Attr(n, "height"))
	default:
		tok.Kind = KindElement
		tok.Name = n.Data
	}
	return tok, true
}

// Body returns the <body> element of a parsed document, or nil.
func Body(doc *html.Node) *html.Node {
	return findElement(doc, atom.Body)
}

// Attr returns the value of the named attribute or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// TextContent concatenates every text node below n.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return b.String()
}

// Metadata reads the document <title> and the description and category
// <meta> tags.
func Metadata(doc *html.Node) (title, description, category string) {
	if t := findElement(doc, atom.Title); t != nil {
		title = strings.TrimSpace(TextContent(t))
	}
	var findMeta func(*html.Node)
	findMeta = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			content := strings.TrimSpace(Attr(n, "content"))
			switch Attr(n, "name") {
			case "description":
				if description == "" {
					description = content
				}
			case "category":
				if category == "" {
					category = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findMeta(c)
		}
	}
	findMeta(doc)
	return title, description, category
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
