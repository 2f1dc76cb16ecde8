package main

import (
	"github.com/spf13/cobra"

	"github.com/leantools/leanview/internal/mcptools"
)

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve Lean proof-state tools over MCP on stdio",
		Long: `mcp runs a Model Context Protocol server on stdin/stdout. Clients
get tools to open Lean files, query goals and diagnostics, and restart
language servers. Logs must go to a file in this mode; stdout belongs
to the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := buildApp()
			if err != nil {
				return err
			}
			defer cleanup()
			return mcptools.Serve(cmd.Context(), a)
		},
	}
}
