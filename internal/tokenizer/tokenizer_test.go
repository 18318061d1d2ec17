package tokenizer

import (
	"reflect"
	"testing"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Kind)
	}
	return out
}

func TestMarkdown_BlockOrder(t *testing.T) {
	body := "# Title\n\nFirst **para**.\n\n- a\n- b\n\n```go\nx := `a` **b**\n```\n\n> quoted\n\n![alt](img.png)\n"
	tokens := Markdown(body)
	want := []Kind{KindHeading, KindParagraph, KindList, KindCode, KindQuote, KindImage}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if tokens[0].Depth != 1 || tokens[0].Text != "Title" {
		t.Errorf("heading = %+v", tokens[0])
	}
	if tokens[1].Text != "First **para**." {
		t.Errorf("paragraph text = %q", tokens[1].Text)
	}
	if tokens[2].Ordered || !reflect.DeepEqual(tokens[2].Items, []string{"a", "b"}) {
		t.Errorf("list = %+v", tokens[2])
	}
	if tokens[3].Text != "x := `a` **b**" {
		t.Errorf("code = %q", tokens[3].Text)
	}
	if tokens[4].Text != "quoted" {
		t.Errorf("quote = %q", tokens[4].Text)
	}
	if tokens[5].Alt != "alt" || tokens[5].Src != "img.png" {
		t.Errorf("image = %+v", tokens[5])
	}
}

func TestMarkdown_OrderedAndNestedList(t *testing.T) {
	tokens := Markdown("1. one\n2. two\n   - inner\n3. three\n")
	if len(tokens) != 1 || tokens[0].Kind != KindList {
		t.Fatalf("tokens = %+v", tokens)
	}
	if !tokens[0].Ordered {
		t.Error("expected ordered list")
	}
	want := []string{"one", "two", "inner", "three"}
	if !reflect.DeepEqual(tokens[0].Items, want) {
		t.Errorf("items = %q, want %q", tokens[0].Items, want)
	}
}

func TestMarkdown_UnmappedBlocksAreOther(t *testing.T) {
	tokens := Markdown("| a | b |\n|---|---|\n| 1 | 2 |\n\n---\n\ntext\n")
	want := []Kind{KindOther, KindOther, KindParagraph}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
}

func TestMarkdown_ImageWithTrailingTextIsParagraph(t *testing.T) {
	tokens := Markdown("![a](b.png) caption\n")
	if len(tokens) != 1 || tokens[0].Kind != KindParagraph {
		t.Fatalf("tokens = %+v", tokens)
	}
}

func TestHTML_TopLevelMapping(t *testing.T) {
	src := `<h2>Head</h2>loose text<p>Para</p><ul><li>a</li></ul><ol><li>b</li></ol>` +
		`<pre>  raw <b>x</b></pre><blockquote>q</blockquote><img src="/a.png" alt="pic" width="640px" height="x">` +
		`<div>box</div><section>  </section>`
	tokens, doc, err := HTML(src)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if doc == nil {
		t.Fatal("expected parsed document")
	}
	want := []Kind{KindHeading, KindParagraph, KindParagraph, KindList, KindList, KindCode, KindQuote, KindImage, KindElement, KindElement}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if tokens[0].Depth != 2 {
		t.Errorf("depth = %d", tokens[0].Depth)
	}
	if tokens[1].Text != "loose text" || tokens[1].Node != nil {
		t.Errorf("text token = %+v", tokens[1])
	}
	if tokens[3].Ordered || !tokens[4].Ordered {
		t.Error("list ordering flags wrong")
	}
	if tokens[5].Text != "  raw x" {
		t.Errorf("pre text = %q", tokens[5].Text)
	}
	img := tokens[7]
	if img.Src != "/a.png" || img.Alt != "pic" || img.Width != 640 || img.Height != 0 {
		t.Errorf("img = %+v", img)
	}
}

func TestMetadata(t *testing.T) {
	src := `<html><head><title> Page </title><meta name="description" content="About it">` +
		`<meta name="category" content="Docs"></head><body><p>x</p></body></html>`
	_, doc, err := HTML(src)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	title, desc, cat := Metadata(doc)
	if title != "Page" || desc != "About it" || cat != "Docs" {
		t.Errorf("metadata = %q %q %q", title, desc, cat)
	}
}

func TestParseInt(t *testing.T) {
	cases := map[string]int{"": 0, "12": 12, " 7px": 7, "-3": -3, "abc": 0, "+5": 5}
	for in, want := range cases {
		if got := ParseInt(in); got != want {
			t.Errorf("ParseInt(%q) = %d, want %d", in, got, want)
		}
	}
}
