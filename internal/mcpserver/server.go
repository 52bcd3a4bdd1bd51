// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes checkdoc tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartyoni/checkdoc/internal/docservice"
	"github.com/smartyoni/checkdoc/internal/models"
)

// Server wraps the MCP server with checkdoc tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all checkdoc tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"checkdoc",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents (id, title, kind), newest first."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read one document including its checklist."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document of the given kind. When a template "+
			"exists for that kind the document is seeded from it (checklist copied, "+
			"all items unchecked)."),
		mcp.WithString("kind", mcp.Required(),
			mcp.Description("One of: task, contract, jangeuum, dailyNote")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Update an existing document's title and content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("content", mcp.Description("New body text (optional)")),
	), s.saveDocument)

	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List all templates with their category."),
	), s.listTemplates)

	s.mcp.AddTool(mcp.NewTool("set_favorite",
		mcp.WithDescription("Point the favorite pointer at a document. The favorite "+
			"is auto-loaded on startup."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.setFavorite)

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

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs := s.svc.Documents()
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", d.ID, d.EffectiveKind(), d.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.CreateDocument(ctx, models.Category(kind))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", doc.ID, doc.Title)), nil
}

func (s *Server) saveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if title, err := req.RequireString("title"); err == nil && title != "" {
		doc.Title = title
	}
	if content, err := req.RequireString("content"); err == nil && content != "" {
		doc.Content = content
	}
	saved, err := s.svc.Save(ctx, doc, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", saved.ID)), nil
}

func (s *Server) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates := s.svc.Templates()
	lines := make([]string, 0, len(templates))
	for _, t := range templates {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", t.ID, t.TemplateCategory, t.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no templates"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) setFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetFavorite(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("favorite set: %s", id)), nil
}
