// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the page index to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/coordinator"
	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/tracker"
)

const syntaxURI = "tabdex://query-syntax"

// Server wraps the MCP server with page index tools.
type Server struct {
	mcp     *server.MCPServer
	coord   *coordinator.Service
	tracker *tracker.Tracker
}

// New creates a new MCP server with all tools registered.
func New(coord *coordinator.Service, tr *tracker.Tracker, version string) *Server {
	s := &Server{coord: coord, tracker: tr}

	s.mcp = server.NewMCPServer(
		"Tabdex",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through every page captured from the browser. "+
			"Read the query syntax via the "+syntaxURI+" resource."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("start", mcp.Description("Number of hits to skip")),
		mcp.WithNumber("length", mcp.Description("Maximum number of hits (default 30)")),
		mcp.WithString("lang", mcp.Description("Stemmer language (default english)")),
		mcp.WithBoolean("spell_correction", mcp.Description("Tolerate typos")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the stored content of a captured page."),
		mcp.WithString("guid", mcp.Required(), mcp.Description("Page guid from a search hit")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("page_snippet",
		mcp.WithDescription("Highlighted excerpt of a hit of the most recent search."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Hit index in the last search")),
		mcp.WithNumber("size", mcp.Description("Excerpt size in bytes (default 300)")),
	), s.pageSnippet)

	s.mcp.AddTool(mcp.NewTool("recent_pages",
		mcp.WithDescription("List the most recently captured pages."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pages (default 50)")),
		mcp.WithBoolean("pinned", mcp.Description("Only pinned pages")),
	), s.recentPages)

	s.mcp.AddTool(mcp.NewTool("pending_jobs",
		mcp.WithDescription("Tabs waiting to be indexed, with their status (new, stale or removed)."),
	), s.pendingJobs)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Query Syntax",
			mcp.WithResourceDescription("How search queries are matched and ranked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
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

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.coord.Search(ctx, models.SearchParams{
		Query:           query,
		Start:           req.GetInt("start", coordinator.DefaultStart),
		Length:          req.GetInt("length", coordinator.DefaultLength),
		Lang:            req.GetString("lang", ""),
		SpellCorrection: req.GetBool("spell_correction", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	guid, err := req.RequireString("guid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.coord.Body(ctx, guid)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", guid)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) pageSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snip, err := s.coord.Snippet(ctx, coordinator.SnippetRequest{
		Index: index,
		Size:  req.GetInt("size", 0),
		Omit:  "…",
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(snip), nil
}

func (s *Server) recentPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.coord.Recent(ctx, req.GetInt("limit", 0), req.GetBool("pinned", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Bodies can be large; read_page returns them on demand.
	for i := range recs {
		recs[i].Body = ""
	}
	return jsonResult(recs)
}

func (s *Server) pendingJobs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := s.tracker.DrainQueue(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(q) == 0 {
		return mcp.NewToolResultText("no pending jobs"), nil
	}
	out := make(map[string]string, len(q))
	for id, d := range q {
		out[id.String()] = d.String()
	}
	return jsonResult(out)
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
