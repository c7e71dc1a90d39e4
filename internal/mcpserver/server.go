// Package mcpserver exposes the web_search tool over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/internal/search"
	"github.com/young1lin/browsersearch/pkg/logger"
)

// ToolName is the name clients call.
const ToolName = "web_search"

const toolDescription = "Search the web with Google through a headless browser. " +
	"Returns titles, URLs and short summaries of the top organic results."

// Searcher runs validated searches
type Searcher interface {
	Search(ctx context.Context, query string, limit any) (*models.SearchResponse, error)
}

// Server wraps an MCP server with the web_search tool registered.
type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	log      *zap.Logger
}

// New creates a Server
func New(s Searcher, version string, log *zap.Logger) *Server {
	srv := &Server{
		mcp:      server.NewMCPServer("browsersearch", version, server.WithToolCapabilities(false)),
		searcher: s,
		log:      logger.OrNop(log).Named("mcp"),
	}
	srv.mcp.AddTool(Tool(), srv.handleWebSearch)
	return srv
}

// Tool describes web_search and its input schema.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(toolDescription),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (%d-%d, default %d)",
				search.MinLimit, search.MaxLimit, search.DefaultLimit)),
			mcp.Min(search.MinLimit),
			mcp.Max(search.MaxLimit),
		),
	)
}

// Serve speaks MCP over the given streams until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	s.log.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleWebSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// limit is passed through untouched; the search layer normalizes it
	limit := req.GetArguments()["limit"]

	resp, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		s.log.Warn("web_search failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode results: %v", err)), nil
	}

	s.log.Info("web_search completed",
		zap.String("query", resp.Query),
		zap.Int("results", len(resp.Results)),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(search.FormatResults(resp)),
			mcp.NewTextContent(string(body)),
		},
	}, nil
}
