package parser

import (
	"regexp"
	"sort"

	"github.com/iteam-company/blockpress/internal/models"
)

var (
	codeRe       = regexp.MustCompile("`([^`]+)`")
	boldItalicRe = []*regexp.Regexp{
		regexp.MustCompile(`\*\*\*(.+?)\*\*\*`),
		regexp.MustCompile(`___(.+?)___`),
	}
	boldRe = []*regexp.Regexp{
		regexp.MustCompile(`\*\*(.*?)\*\*`),
		regexp.MustCompile(`__(.*?)__`),
	}
	linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// Run is one resolved node together with the source range it consumed.
type Run struct {
	Start, End int
	Node       models.Inline
}

type candidate struct {
	start, end int
	inner      string
	style      models.TextSpan
	url        string
	link       bool
}

func (c candidate) overlaps(o candidate) bool {
	return c.start < o.end && o.start < c.end
}

func (c candidate) node() models.Inline {
	if c.link {
		return models.NewLink(c.url, c.inner)
	}
	span := c.style
	span.Text = c.inner
	return span
}

// ResolveInline partitions text into styled text and link nodes. Overlapping
// markup is resolved by scan order: code, bold+italic, bold, italic. Links
// are scanned last and replace any style match they overlap. Link labels
// are kept verbatim, markers included: "[`a`](u)" yields the label "`a`".
func ResolveInline(text string) []models.Inline {
	runs := ResolveRuns(text)
	out := make([]models.Inline, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Node)
	}
	return out
}

// ResolveRuns is ResolveInline with source offsets. The runs tile
// [0, len(text)) in order without gaps or overlap.
func ResolveRuns(text string) []Run {
	var accepted []candidate
	accept := func(c candidate) {
		for _, a := range accepted {
			if a.overlaps(c) {
				return
			}
		}
		accepted = append(accepted, c)
	}

	for _, c := range scan(text, codeRe, models.TextSpan{Code: true}) {
		accept(c)
	}
	for _, re := range boldItalicRe {
		for _, c := range scan(text, re, models.TextSpan{Bold: true, Italic: true}) {
			accept(c)
		}
	}
	for _, re := range boldRe {
		for _, c := range scan(text, re, models.TextSpan{Bold: true}) {
			accept(c)
		}
	}
	for _, marker := range []byte{'*', '_'} {
		for _, c := range scanItalic(text, marker) {
			accept(c)
		}
	}

	for _, m := range linkRe.FindAllStringSubmatchIndex(text, -1) {
		link := candidate{
			start: m[0],
			end:   m[1],
			inner: text[m[2]:m[3]],
			url:   text[m[4]:m[5]],
			link:  true,
		}
		kept := accepted[:0]
		for _, a := range accepted {
			if !a.overlaps(link) {
				kept = append(kept, a)
			}
		}
		accepted = append(kept, link)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	runs := make([]Run, 0, 2*len(accepted)+1)
	pos := 0
	for _, c := range accepted {
		if c.start > pos {
			runs = append(runs, Run{Start: pos, End: c.start, Node: models.TextSpan{Text: text[pos:c.start]}})
		}
		runs = append(runs, Run{Start: c.start, End: c.end, Node: c.node()})
		pos = c.end
	}
	if pos < len(text) {
		runs = append(runs, Run{Start: pos, End: len(text), Node: models.TextSpan{Text: text[pos:]}})
	}
	return runs
}

func scan(text string, re *regexp.Regexp, style models.TextSpan) []candidate {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, candidate{start: m[0], end: m[1], inner: text[m[2]:m[3]], style: style})
	}
	return out
}

// scanItalic finds single-marker emphasis. A marker adjacent to another
// marker of the same kind never opens or closes a match, so double and
// triple markers are left to the bold scans.
func scanItalic(text string, marker byte) []candidate {
	var out []candidate
	for i := 0; i < len(text); i++ {
		if text[i] != marker || (i > 0 && text[i-1] == marker) {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] != marker {
			j++
		}
		if j >= len(text) {
			break
		}
		if j == i+1 || (j+1 < len(text) && text[j+1] == marker) {
			continue
		}
		out = append(out, candidate{
			start: i,
			end:   j + 1,
			inner: text[i+1 : j],
			style: models.TextSpan{Italic: true},
		})
		i = j
	}
	return out
}
