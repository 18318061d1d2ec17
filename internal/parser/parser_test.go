package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/models"
)

func TestExtractFrontmatter_MetadataAndBody(t *testing.T) {
	input := "---\ntitle: Hello\ncategory: News\npreviewDescription: Short intro\n---\n# Hello\nBody text.\n"
	fm := ExtractFrontmatter(input)
	if !fm.Found {
		t.Fatal("expected frontmatter to be found")
	}
	want := models.DocumentMetadata{Title: "Hello", Category: "News", PreviewDescription: "Short intro"}
	if fm.Metadata != want {
		t.Errorf("metadata = %+v, want %+v", fm.Metadata, want)
	}
	if strings.TrimSpace(fm.Body) != "# Hello\nBody text." {
		t.Errorf("body = %q", fm.Body)
	}
}

func TestExtractFrontmatter_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	fm := ExtractFrontmatter(input)
	if fm.Found {
		t.Error("expected Found = false")
	}
	if !fm.Metadata.Empty() {
		t.Errorf("expected empty metadata, got %+v", fm.Metadata)
	}
	if fm.Body != input {
		t.Errorf("body = %q, want entire input", fm.Body)
	}
}

func TestExtractFrontmatter_InvalidYAMLFallsBackToKeys(t *testing.T) {
	input := "---\ntitle: Go: a tour\ncategory: \"Dev\"\n---\nBody\n"
	fm := ExtractFrontmatter(input)
	if !fm.Found {
		t.Fatal("expected frontmatter to be found")
	}
	if fm.Metadata.Title != "Go: a tour" {
		t.Errorf("title = %q", fm.Metadata.Title)
	}
	if fm.Metadata.Category != "Dev" {
		t.Errorf("category = %q", fm.Metadata.Category)
	}
	if fm.Body != "Body\n" {
		t.Errorf("body = %q", fm.Body)
	}
}

func TestRequireFrontmatter_Missing(t *testing.T) {
	_, err := RequireFrontmatter("plain text")
	if !errors.Is(err, apperr.ErrMissingFrontmatter) {
		t.Fatalf("err = %v, want ErrMissingFrontmatter", err)
	}
}

func TestSplitFrontmatter_Unclosed(t *testing.T) {
	_, body, ok := splitFrontmatter("---\ntitle: x\nno end")
	if ok {
		t.Fatal("expected ok = false for unclosed block")
	}
	if body != "---\ntitle: x\nno end" {
		t.Errorf("body = %q", body)
	}
}
