// Package parser extracts document frontmatter and resolves inline markup
// into styled spans.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/models"
)

const delim = "---"

var (
	yamlFormat = frontmatter.NewFormat(delim, delim, yaml.Unmarshal)

	titleRe       = keyRe("title")
	categoryRe    = keyRe("category")
	descriptionRe = keyRe("previewDescription")
)

func keyRe(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^[ \t]*` + key + `:[ \t]*(.*?)[ \t]*$`)
}

// Frontmatter is the result of splitting a document.
type Frontmatter struct {
	Metadata models.DocumentMetadata
	Body     string
	// Found is true when a delimited block was present at the start.
	Found bool
}

// ExtractFrontmatter splits doc into metadata and body. A document without a
// frontmatter block yields empty metadata and the whole input as body.
func ExtractFrontmatter(doc string) Frontmatter {
	var meta models.DocumentMetadata
	body, err := frontmatter.MustParse(strings.NewReader(doc), &meta, yamlFormat)
	switch {
	case err == nil:
		return Frontmatter{Metadata: trimMetadata(meta), Body: string(body), Found: true}
	case errors.Is(err, frontmatter.ErrNotFound):
		return Frontmatter{Body: doc}
	}

	// The block is present but not valid YAML (for example an unquoted colon
	// in a title). Fall back to line-based key matching.
	block, rest, ok := splitFrontmatter(doc)
	if !ok {
		return Frontmatter{Body: doc}
	}
	return Frontmatter{
		Metadata: models.DocumentMetadata{
			Title:              matchKey(titleRe, block),
			Category:           matchKey(categoryRe, block),
			PreviewDescription: matchKey(descriptionRe, block),
		},
		Body:  rest,
		Found: true,
	}
}

// RequireFrontmatter is the strict variant of ExtractFrontmatter.
func RequireFrontmatter(doc string) (Frontmatter, error) {
	fm := ExtractFrontmatter(doc)
	if !fm.Found {
		return fm, fmt.Errorf("parser: frontmatter: %w", apperr.ErrMissingFrontmatter)
	}
	return fm, nil
}

// splitFrontmatter separates the raw block between the leading delimiters
// from the body.
func splitFrontmatter(doc string) (block, body string, ok bool) {
	trimmed := strings.TrimLeft(doc, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return "", doc, false
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return "", doc, false
	}
	block = rest[:idx]
	after := rest[idx+1+len(delim):]
	// Drop the remainder of the closing delimiter line.
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = ""
	}
	return block, after, true
}

func matchKey(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return unquote(m[1])
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func trimMetadata(m models.DocumentMetadata) models.DocumentMetadata {
	m.Title = strings.TrimSpace(m.Title)
	m.Category = strings.TrimSpace(m.Category)
	m.PreviewDescription = strings.TrimSpace(m.PreviewDescription)
	return m
}
