package mapper

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/tokenizer"
)

// HTMLInline walks the children of n and returns its inline content. Each
// formatting element sets exactly one flag on a span holding its trimmed
// text; unknown elements are flattened into their children.
func HTMLInline(n *html.Node) []models.Inline {
	out := []models.Inline{}
	if n == nil {
		return out
	}
	return appendInline(out, n)
}

func appendInline(out []models.Inline, n *html.Node) []models.Inline {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				out = append(out, models.TextSpan{Text: c.Data})
			}
			continue
		case html.ElementNode:
		default:
			continue
		}

		text := strings.TrimSpace(tokenizer.TextContent(c))
		if text == "" {
			continue
		}
		switch c.DataAtom {
		case atom.Strong, atom.B:
			out = append(out, models.TextSpan{Text: text, Bold: true})
		case atom.Em, atom.I:
			out = append(out, models.TextSpan{Text: text, Italic: true})
		case atom.Code:
			out = append(out, models.TextSpan{Text: text, Code: true})
		case atom.Strike, atom.S:
			out = append(out, models.TextSpan{Text: text, Strikethrough: true})
		case atom.U:
			out = append(out, models.TextSpan{Text: text, Underline: true})
		case atom.A:
			out = append(out, models.NewLink(tokenizer.Attr(c, "href"), text))
		default:
			out = appendInline(out, c)
		}
	}
	return out
}
