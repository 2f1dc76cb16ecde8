package mcptools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leantools/leanview/internal/app"
	"github.com/leantools/leanview/internal/infoview"
	"github.com/leantools/leanview/internal/lsp"
	"github.com/leantools/leanview/internal/project"
)

// Tool argument types.

type fileArg struct {
	File string `json:"file" jsonschema:"path to the .lean file"`
}

type positionArg struct {
	File string `json:"file" jsonschema:"path to the .lean file"`
	Line int    `json:"line" jsonschema:"0-indexed line number"`
	Col  int    `json:"col" jsonschema:"0-indexed UTF-16 column number"`
}

// goalTracker remembers the last view per file so lean_goal can render
// deltas across successive calls.
type goalTracker struct {
	mu   sync.Mutex
	prev map[string]*infoview.GoalView
}

func (g *goalTracker) swap(path string, view *infoview.GoalView) *infoview.GoalView {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.prev[path]
	g.prev[path] = view
	return prev
}

// registerTools registers all MCP tools on the server.
func registerTools(server *mcp.Server, a *app.App) {
	tracker := &goalTracker{prev: make(map[string]*infoview.GoalView)}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_open",
		Description: "Open a .lean file. Starts the project's Lean language server on first use and must be called before other operations on the file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		client, _, err := a.OpenFile(ctx, args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		version := a.VersionService().Version(client.Root())
		if version == "" {
			version = project.DefaultLeanVersion
		}
		return TextResult(fmt.Sprintf("Opened %s (root %s, toolchain %s)", args.File, client.Root(), version)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_close",
		Description: "Close a .lean file and release its server-side resources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		client, path, err := clientFor(ctx, a, args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		if err := client.CloseDocument(ctx, path); err != nil {
			return ErrResult(err), nil, nil
		}
		return TextResult("Closed " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_sync",
		Description: "Re-read a .lean file from disk after editing it. Required after using Edit/Write tools.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		client, path, err := clientFor(ctx, a, args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		if err := client.UpdateDocument(ctx, path, string(content)); err != nil {
			return ErrResult(err), nil, nil
		}
		return TextResult("Synced " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_goal",
		Description: "Get the proof goals at a position: hypotheses, conclusions, and diagnostics near the cursor. Hypotheses added or removed since the previous lean_goal call on the same file are marked +/-.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args positionArg) (*mcp.CallToolResult, any, error) {
		path, err := filepath.Abs(args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		pos := lsp.Position{Line: args.Line, Character: args.Col}
		view, diags, err := a.RequestGoals(ctx, path, pos)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		prev := tracker.swap(path, view)
		return TextResult(infoview.RenderDelta(prev, view, diags)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_term_goal",
		Description: "Get the expected type of the term at a position.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args positionArg) (*mcp.CallToolResult, any, error) {
		client, path, err := clientFor(ctx, a, args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		pos := lsp.Position{Line: args.Line, Character: args.Col}
		term, err := client.PlainTermGoal(ctx, path, pos)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		if term == nil {
			return TextResult("No term goal at this position."), nil, nil
		}
		return TextResult("Expected type: " + term.Goal), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_diagnostics",
		Description: "List all diagnostics (errors, warnings, infos) the server has reported for a file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		client, path, err := clientFor(ctx, a, args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		diags := client.Diagnostics(path)
		if len(diags) == 0 {
			return TextResult("No diagnostics."), nil, nil
		}
		return TextResult(infoview.RenderFull(nil, diags)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lean_restart",
		Description: "Restart the Lean language server for a file's project, preserving open documents. Use after changing the project's toolchain.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		path, err := filepath.Abs(args.File)
		if err != nil {
			return ErrResult(err), nil, nil
		}
		if err := a.Restart(ctx, path); err != nil {
			return ErrResult(err), nil, nil
		}
		return TextResult("Restarted server for " + args.File), nil, nil
	})
}

// clientFor resolves a file argument to its already-running client.
func clientFor(ctx context.Context, a *app.App, file string) (*lsp.Client, string, error) {
	path, err := filepath.Abs(file)
	if err != nil {
		return nil, "", err
	}
	client, err := a.ClientProvider().ClientForPath(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return client, path, nil
}
