package mapper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/tokenizer"
)

type fakeResolver struct {
	calls atomic.Int32
	fn    func(ref models.ImageRef) (*models.ImageRecord, error)
}

func (f *fakeResolver) Resolve(_ context.Context, ref models.ImageRef) (*models.ImageRecord, error) {
	f.calls.Add(1)
	return f.fn(ref)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapTokens_MarkdownBlocks(t *testing.T) {
	tokens := tokenizer.Markdown("## Sub *x*\n\ntext\n\n1. a\n2. **b**\n\n```\n**raw**\n```\n\n> q\n\n| t |\n|---|\n| 1 |\n")
	blocks := New(WithLogger(quietLogger())).MapTokens(context.Background(), tokens, nil)

	if len(blocks) != 5 {
		t.Fatalf("len(blocks) = %d, want 5 (table dropped)", len(blocks))
	}
	h, ok := blocks[0].(models.HeadingBlock)
	if !ok || h.Level != 2 {
		t.Fatalf("block 0 = %#v", blocks[0])
	}
	wantHeading := []models.Inline{models.TextSpan{Text: "Sub "}, models.TextSpan{Text: "x", Italic: true}}
	if !reflect.DeepEqual(h.Children, wantHeading) {
		t.Errorf("heading children = %#v", h.Children)
	}
	list, ok := blocks[2].(models.ListBlock)
	if !ok || list.Format != models.ListOrdered || len(list.Children) != 2 {
		t.Fatalf("block 2 = %#v", blocks[2])
	}
	if !reflect.DeepEqual(list.Children[1].Children, []models.Inline{models.TextSpan{Text: "b", Bold: true}}) {
		t.Errorf("item 2 = %#v", list.Children[1].Children)
	}
	code, ok := blocks[3].(models.CodeBlock)
	if !ok || !reflect.DeepEqual(code.Children, []models.TextSpan{{Text: "**raw**"}}) {
		t.Errorf("code = %#v", blocks[3])
	}
	if _, ok := blocks[4].(models.QuoteBlock); !ok {
		t.Errorf("block 4 = %#v, want quote", blocks[4])
	}
}

func TestMapTokens_LocalImageWithoutResolver(t *testing.T) {
	tokens := tokenizer.Markdown("![alt](img.png)\n")
	blocks := New().MapTokens(context.Background(), tokens, nil)
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d", len(blocks))
	}
	img, ok := blocks[0].(models.ImageBlock)
	if !ok {
		t.Fatalf("block = %#v, want image", blocks[0])
	}
	rec := img.Image
	if rec.Ext != ".png" || rec.Mime != "image/png" || rec.AlternativeText == nil || *rec.AlternativeText != "alt" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Provider != models.ProviderLocal || rec.Name != "img.png" || rec.Hash == "" {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(img.Children, []models.TextSpan{{Text: ""}}) {
		t.Errorf("children = %#v", img.Children)
	}
}

func TestMapTokens_ResolverKeepsOrder(t *testing.T) {
	r := &fakeResolver{fn: func(ref models.ImageRef) (*models.ImageRecord, error) {
		// Earlier images finish later.
		if ref.Name == "first" {
			time.Sleep(30 * time.Millisecond)
		}
		return &models.ImageRecord{Name: ref.Name, URL: ref.Source}, nil
	}}
	tokens := tokenizer.Markdown("![first](a.png)\n\nmiddle\n\n![second](b.png)\n")
	blocks := New(WithResolver(r), WithConcurrency(2)).MapTokens(context.Background(), tokens, map[string]string{"second": "data:image/png;base64,AAAA"})

	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d", len(blocks))
	}
	first := blocks[0].(models.ImageBlock)
	second := blocks[2].(models.ImageBlock)
	if first.Image.Name != "first" || second.Image.Name != "second" {
		t.Errorf("order = %q, %q", first.Image.Name, second.Image.Name)
	}
	if second.Image.URL != "data:image/png;base64,AAAA" {
		t.Errorf("payload lookup not used: %q", second.Image.URL)
	}
	if r.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", r.calls.Load())
	}
}

func TestMapTokens_FailurePolicies(t *testing.T) {
	failing := &fakeResolver{fn: func(models.ImageRef) (*models.ImageRecord, error) {
		return nil, errors.New("upload refused")
	}}
	tokens := tokenizer.Markdown("before\n\n![pic](https://cdn.example/p.webp?w=2)\n\nafter\n")

	cases := []struct {
		policy FailurePolicy
		check  func(t *testing.T, blocks []models.Block)
	}{
		{PolicyLocal, func(t *testing.T, blocks []models.Block) {
			if len(blocks) != 3 {
				t.Fatalf("len = %d", len(blocks))
			}
			img := blocks[1].(models.ImageBlock)
			if img.Image.Ext != ".webp" || img.Image.Name != "p.webp" {
				t.Errorf("record = %+v", img.Image)
			}
		}},
		{PolicyParagraph, func(t *testing.T, blocks []models.Block) {
			if len(blocks) != 3 {
				t.Fatalf("len = %d", len(blocks))
			}
			p := blocks[1].(models.ParagraphBlock)
			want := []models.Inline{
				models.TextSpan{Text: "!"},
				models.NewLink("https://cdn.example/p.webp?w=2", "pic"),
			}
			if !reflect.DeepEqual(p.Children, want) {
				t.Errorf("paragraph = %#v", p.Children)
			}
		}},
		{PolicySkip, func(t *testing.T, blocks []models.Block) {
			if len(blocks) != 2 {
				t.Fatalf("len = %d", len(blocks))
			}
		}},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			m := New(WithResolver(failing), WithFailurePolicy(tc.policy), WithLogger(quietLogger()))
			tc.check(t, m.MapTokens(context.Background(), tokens, nil))
		})
	}
}

func TestMapTokens_HTML(t *testing.T) {
	src := `<h1>Hi <em>there</em></h1><p>A <strong>bold</strong> <a href="/x">link</a></p>` +
		`<ul><li>one</li><li><u>two</u></li></ul><pre>code <b>x</b></pre>` +
		`<img src="/i.gif" alt="" width="10" height="20"><div><span>wrapped <s>old</s></span></div><div> </div>`
	tokens, _, err := tokenizer.HTML(src)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	blocks := New().MapTokens(context.Background(), tokens, nil)

	types := make([]string, 0, len(blocks))
	for _, b := range blocks {
		types = append(types, b.BlockType())
	}
	want := []string{"heading", "paragraph", "list", "code", "image", "paragraph"}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %v, want %v", types, want)
	}

	p := blocks[1].(models.ParagraphBlock)
	wantP := []models.Inline{
		models.TextSpan{Text: "A "},
		models.TextSpan{Text: "bold", Bold: true},
		models.NewLink("/x", "link"),
	}
	if !reflect.DeepEqual(p.Children, wantP) {
		t.Errorf("paragraph = %#v", p.Children)
	}
	list := blocks[2].(models.ListBlock)
	if list.Format != models.ListUnordered || len(list.Children) != 2 || !list.Children[1].Children[0].(models.TextSpan).Underline {
		t.Errorf("list = %#v", list)
	}
	if blocks[3].PlainText() != "code x" {
		t.Errorf("code = %q", blocks[3].PlainText())
	}
	img := blocks[4].(models.ImageBlock).Image
	if img.Width != 10 || img.Height != 20 || img.Ext != ".gif" || img.AlternativeText != nil {
		t.Errorf("img = %+v", img)
	}
	div := blocks[5].(models.ParagraphBlock)
	if !strings.Contains(models.InlineText(div.Children), "wrapped") {
		t.Errorf("div = %#v", div.Children)
	}
}

func TestSynthesizeImage_DataURI(t *testing.T) {
	rec := SynthesizeImage("data:image/png;base64,iVBOR", "", 0, 0)
	if rec.Ext != ".png" || rec.Mime != "image/png" || rec.Name != "image" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSynthesizeImage_Defaults(t *testing.T) {
	rec := SynthesizeImage("https://example.com/", "x", 0, 0)
	if rec.Ext != ".jpg" || rec.Mime != "image/jpeg" || rec.Name != "image" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Hash == SynthesizeImage("https://example.com/", "x", 0, 0).Hash {
		t.Error("expected random hashes")
	}
}

func TestSynthesizeImage_OddExtensionFallsBack(t *testing.T) {
	cases := map[string]string{
		"pic.we_bp":         ".jpg",
		"":                  ".jpg",
		"/img/a.PNG":        ".png",
		"http://x/a.b/c":    ".jpg",
		"http://x/p.webp?s": ".webp",
	}
	for src, want := range cases {
		if got := SynthesizeImage(src, "", 0, 0).Ext; got != want {
			t.Errorf("SynthesizeImage(%q).Ext = %q, want %q", src, got, want)
		}
	}
}
