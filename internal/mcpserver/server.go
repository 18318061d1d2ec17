// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes blockpress conversion tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/docservice"
	"github.com/iteam-company/blockpress/internal/models"
	"github.com/iteam-company/blockpress/internal/parser"
	"github.com/iteam-company/blockpress/internal/schema"
	"github.com/iteam-company/blockpress/internal/store"
)

// BlockFormatURI names the JSON Schema resource.
const BlockFormatURI = "blockpress://block-format"

// ConvertArgs are the arguments of the convert_document tool.
type ConvertArgs struct {
	Source             string            `json:"source"`
	Format             string            `json:"format"`
	Title              string            `json:"title"`
	Category           string            `json:"category"`
	PreviewDescription string            `json:"previewDescription"`
	Images             map[string]string `json:"images"`
	Store              bool              `json:"store"`
	Slug               string            `json:"slug"`
	Overwrite          bool              `json:"overwrite"`
	Envelope           string            `json:"envelope"`
}

// ListArgs are the arguments of the list_documents tool.
type ListArgs struct {
	Category string `json:"category"`
	Sort     string `json:"sort"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// Server wraps the MCP server with blockpress tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Blockpress",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_document",
		mcp.WithDescription("Convert a Markdown (with YAML frontmatter) or HTML document into "+
			"a typed block document. Read the contract first via get_block_contract."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Raw document text")),
		mcp.WithString("format", mcp.Description("markdown or html; detected when empty"), mcp.Enum("markdown", "html")),
		mcp.WithString("title", mcp.Description("Document title; when set, frontmatter is not parsed")),
		mcp.WithString("category", mcp.Description("Document category (with title)")),
		mcp.WithString("previewDescription", mcp.Description("Preview description (with title)")),
		mcp.WithObject("images", mcp.Description("Map of image alt text to URL, data URI or base64 payload")),
		mcp.WithBoolean("store", mcp.Description("Persist the converted document")),
		mcp.WithString("slug", mcp.Description("Slug for the stored document; derived from the title when empty")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace an existing stored document with the same slug")),
		mcp.WithString("envelope", mcp.Description("Set to article for the CMS article envelope"), mcp.Enum("article")),
	), mcp.NewTypedToolHandler(s.convertDocument))

	s.mcp.AddTool(mcp.NewTool("resolve_inline",
		mcp.WithDescription("Split a text run into styled text and link spans."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Inline Markdown text")),
	), s.resolveInline)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a stored block document by slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Document slug")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents."),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithString("sort", mcp.Description("updated (default) or title"), mcp.Enum("updated", "title")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), mcp.NewTypedToolHandler(s.listDocuments))

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through stored document titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_block_contract",
		mcp.WithDescription("Returns the accepted input format and the block document shape. "+
			"Call this before converting documents."),
	), s.getBlockContract)

	s.mcp.AddResource(
		mcp.NewResource(BlockFormatURI, "Block Document Schema",
			mcp.WithResourceDescription("JSON Schema (draft 2020-12) of converted block documents."),
			mcp.WithMIMEType("application/schema+json"),
		),
		s.readBlockFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) convertDocument(ctx context.Context, _ mcp.CallToolRequest, args ConvertArgs) (*mcp.CallToolResult, error) {
	if args.Source == "" {
		return mcp.NewToolResultError("source is required"), nil
	}
	req := converter.Request{
		Source: args.Source,
		Format: converter.Format(args.Format),
		Images: args.Images,
	}
	if args.Title != "" {
		req.Metadata = &models.DocumentMetadata{
			Title:              args.Title,
			Category:           args.Category,
			PreviewDescription: args.PreviewDescription,
		}
	}

	if args.Store {
		stored, err := s.svc.Publish(ctx, req, docservice.PublishOptions{Slug: args.Slug, Overwrite: args.Overwrite})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(stored)
	}

	doc, err := s.svc.Convert(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	if args.Envelope == "article" {
		return jsonResult(doc.Article())
	}
	return jsonResult(doc)
}

func (s *Server) resolveInline(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(parser.ResolveInline(text))
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, slug)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(doc)
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.List(ctx, store.ListOptions{
		Limit:    args.Limit,
		Offset:   args.Offset,
		Category: args.Category,
		Sort:     args.Sort,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"documents": items, "total": total})
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) getBlockContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BlockFormatContract), nil
}

func (s *Server) readBlockFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      BlockFormatURI,
			MIMEType: "application/schema+json",
			Text:     string(schema.Source()),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, apperr.ErrMissingMetadata):
		return mcp.NewToolResultError("document has no metadata: add YAML frontmatter with a title or pass title explicitly")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("document already exists: pass overwrite=true to replace it")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
