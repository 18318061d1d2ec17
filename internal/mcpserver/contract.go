package mcpserver

// BlockFormatContract describes the input format the converter accepts and
// the block document it produces.
const BlockFormatContract = `# Blockpress Document Contract

## Input

Markdown with YAML frontmatter, or HTML.

` + "```" + `markdown
---
title: Human-readable title           # REQUIRED unless metadata is passed separately
category: news                        # OPTIONAL
previewDescription: One-line teaser   # OPTIONAL
---

# Heading

A paragraph with **bold**, *italic*, ***both***, ` + "`" + `code` + "`" + ` and [links](https://example.com).

- unordered item
1. ordered item

> a quote

![Alt text](https://example.com/cover.png)
` + "```" + `

Rules:

1. Frontmatter fences must be the first thing in the file.
2. Only headings, paragraphs, lists, fenced or indented code, block quotes and
   image-only paragraphs become blocks. Tables, rules and raw HTML blocks are dropped.
3. Nested lists are flattened into their parent list.
4. An image must be alone in its paragraph to become an image block.
5. Image sources may be URLs, data URIs, or the alt text of an entry in the
   ` + "`" + `images` + "`" + ` map (name to base64 payload).
6. HTML documents without frontmatter take their title from ` + "`" + `<title>` + "`" + ` and
   their preview description from ` + "`" + `<meta name="description">` + "`" + `.

## Output

` + "```" + `json
{
  "metadata": {"title": "...", "category": "...", "previewDescription": "..."},
  "blocks": [
    {"type": "heading", "level": 1, "children": [{"type": "text", "text": "Heading"}]},
    {"type": "paragraph", "children": [
      {"type": "text", "text": "bold", "bold": true},
      {"type": "link", "url": "https://example.com", "children": [{"type": "text", "text": "links"}]}
    ]},
    {"type": "list", "format": "unordered", "children": [
      {"type": "list-item", "children": [{"type": "text", "text": "unordered item"}]}
    ]},
    {"type": "code", "children": [{"type": "text", "text": "raw code"}]},
    {"type": "quote", "children": [{"type": "text", "text": "a quote"}]},
    {"type": "image", "image": {"url": "/attachments/...", "mime": "image/png", "...": "..."},
     "children": [{"type": "text", "text": ""}]}
  ],
  "createdAt": "...", "updatedAt": "...", "publishedAt": "..."
}
` + "```" + `

Text spans carry independent ` + "`" + `bold` + "`" + `, ` + "`" + `italic` + "`" + `, ` + "`" + `code` + "`" + `,
` + "`" + `strikethrough` + "`" + ` and ` + "`" + `underline` + "`" + ` flags. Link labels are never
formatted. The full JSON Schema is available as the blockpress://block-format resource.
`
