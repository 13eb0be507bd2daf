// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the entry database to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pAIrprogio/synscript-sub000/internal/entryservice"
)

// EntryFormatURI is the resource URI of the entry format contract.
const EntryFormatURI = "mddb://entry-format"

// Server wraps the MCP server with entry database tools.
type Server struct {
	mcp *server.MCPServer
	svc *entryservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *entryservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mddb",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("match_entries",
		mcp.WithDescription("Return every entry whose frontmatter query matches the input object, "+
			"in path order. An entry is skipped when one of its ancestors does not match."),
		mcp.WithObject("input", mcp.Required(), mcp.Description("Input object the entry queries are evaluated against")),
		mcp.WithBoolean("skip_empty", mcp.Description("Drop matching entries without body content")),
	), s.matchEntries)

	s.mcp.AddTool(mcp.NewTool("match_any_entries",
		mcp.WithDescription("Match several input objects and return the union of matching entries, "+
			"each entry once, ordered by file path."),
		mcp.WithArray("inputs", mcp.Required(),
			mcp.Description("Input objects"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithBoolean("skip_empty", mcp.Description("Drop matching entries without body content")),
	), s.matchAnyEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Read one entry by id, including its ancestor ids."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id (e.g. buttons/variants)")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List entries in path order with optional type filter and pagination."),
		mcp.WithString("type", mcp.Description("Only entries with this type tag (from name.type.md)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Text search through entry ids, content and frontmatter."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("refresh_entries",
		mcp.WithDescription("Drop all caches and reload every entry from disk."),
	), s.refreshEntries)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create a new entry file and reload the database. "+
			"Content MUST follow the entry format contract; read it first via "+
			"get_entry_contract or the "+EntryFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the database root (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown with optional YAML frontmatter holding the query")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete the file backing an entry and reload the database."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.deleteEntry)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the entry format contract. "+
			"Call this before creating entries to ensure correct structure."),
	), s.getEntryContract)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource(EntryFormatURI, "Entry Format Contract",
			mcp.WithResourceDescription("Markdown entry format, id rules and query language."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) matchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, ok := req.GetArguments()["input"]
	if !ok {
		return mcp.NewToolResultError(`required argument "input" not found`), nil
	}
	entries, err := s.svc.Match(ctx, input, req.GetBool("skip_empty", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

func (s *Server) matchAnyEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["inputs"]
	if !ok {
		return mcp.NewToolResultError(`required argument "inputs" not found`), nil
	}
	inputs, ok := raw.([]any)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf(`argument "inputs" must be an array, got %T`, raw)), nil
	}
	entries, err := s.svc.MatchAny(ctx, inputs, req.GetBool("skip_empty", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(entry)
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListEntries(ctx,
		req.GetInt("limit", 50),
		req.GetInt("offset", 0),
		req.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"entries": items, "total": total})
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) refreshEntries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Create(ctx, path, []byte(content))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", entry.ID, entry.File.RelPath)), nil
}

func (s *Server) deleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted: " + id), nil
}

func (s *Server) getEntryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      EntryFormatURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
