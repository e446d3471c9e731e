package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	mcpserver "github.com/memmcp/memmcp/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server on stdio.

The transport owns stdout, so all diagnostics go to stderr or the
configured log file. In indexed mode the sync workers start alongside
the server and a full reconcile runs in the background.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := buildApp(ctx, buildOptions{startSync: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// First run creates the base state; later runs only recover the
	// JSON index so startup is not blocked on a full reconcile.
	if a.manager.Initialized() {
		if _, err := a.index.LoadOrRebuild(a.files); err != nil {
			return fmt.Errorf("load file index: %w", err)
		}
	} else if _, err := a.manager.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize memory: %w", err)
	}

	// Catch up on files changed while the server was down.
	if a.service != nil {
		go func() {
			if err := a.service.SyncAll(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("startup reconcile failed", "error", err)
			}
		}()
	}

	srv, err := mcpserver.NewServer(a.manager, a.engine, a.syncer)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
