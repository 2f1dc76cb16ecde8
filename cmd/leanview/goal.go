package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leantools/leanview/internal/infoview"
	"github.com/leantools/leanview/internal/lsp"
)

func newGoalCommand() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "goal FILE:LINE:COL",
		Short: "Print the proof goals at a position and exit",
		Long: `goal starts the file's language server, waits for elaboration to
reach the position, and prints the goals there. Line and column are
1-based, matching editor displays.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, pos, err := parseLocation(args[0])
			if err != nil {
				return err
			}

			a, cleanup, err := buildApp()
			if err != nil {
				return err
			}
			defer cleanup()
			defer func() { _ = a.Shutdown(context.Background()) }()

			ctx := cmd.Context()
			client, _, err := a.OpenFile(ctx, path)
			if err != nil {
				return err
			}
			if err := waitForElaboration(ctx, client, path, pos, wait); err != nil {
				return err
			}

			view, diags, err := a.RequestGoals(ctx, path, pos)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), infoview.RenderFull(view, diags))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "How long to wait for elaboration to reach the position")
	return cmd
}

// parseLocation splits FILE:LINE:COL into its parts, converting the
// 1-based line and column to protocol positions.
func parseLocation(arg string) (string, lsp.Position, error) {
	i := strings.LastIndex(arg, ":")
	if i < 0 {
		return "", lsp.Position{}, fmt.Errorf("invalid location %q: want FILE:LINE:COL", arg)
	}
	j := strings.LastIndex(arg[:i], ":")
	if j < 0 {
		return "", lsp.Position{}, fmt.Errorf("invalid location %q: want FILE:LINE:COL", arg)
	}

	line, err := strconv.Atoi(arg[j+1 : i])
	if err != nil || line < 1 {
		return "", lsp.Position{}, fmt.Errorf("invalid line in %q", arg)
	}
	col, err := strconv.Atoi(arg[i+1:])
	if err != nil || col < 1 {
		return "", lsp.Position{}, fmt.Errorf("invalid column in %q", arg)
	}

	return arg[:j], lsp.Position{Line: line - 1, Character: col - 1}, nil
}

// waitForElaboration polls until the server has elaborated past the
// position or the wait budget runs out. The first fileProgress
// notification can lag the open, so an empty progress cache counts as
// processing for the first second.
func waitForElaboration(ctx context.Context, client *lsp.Client, path string, pos lsp.Position, wait time.Duration) error {
	start := time.Now()
	deadline := start.Add(wait)
	for {
		infos := client.Processing(path)
		processing := len(infos) == 0 && time.Since(start) < time.Second
		for _, info := range infos {
			if info.Range.Start.Line <= pos.Line && pos.Line <= info.Range.End.Line {
				processing = true
				break
			}
		}
		if !processing {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("elaboration did not reach %s:%d within %s", path, pos.Line+1, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
