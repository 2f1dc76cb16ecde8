// Package mcptools exposes the Lean session over MCP so agent
// tooling can query proof state without a terminal.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leantools/leanview/internal/app"
)

// Version is the MCP server version advertised during initialization.
const Version = "0.1.0"

// NewServer builds the MCP server with all Lean tools registered.
func NewServer(a *app.App) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leanview",
		Version: Version,
	}, nil)
	registerTools(server, a)
	return server
}

// Serve runs the MCP server over stdio until the client disconnects,
// then stops the language clients.
func Serve(ctx context.Context, a *app.App) error {
	server := NewServer(a)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return err
	}
	return a.Shutdown(ctx)
}

// TextResult wraps plain text in an MCP CallToolResult.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrResult wraps an error in an MCP CallToolResult.
func ErrResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
