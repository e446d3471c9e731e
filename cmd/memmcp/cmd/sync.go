package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memmcp/memmcp/internal/store"
	"github.com/memmcp/memmcp/internal/ui"
)

func newSyncCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the file tree into the search index",
		Long: `Walk the memory tree, re-index files whose content changed, and
drop index rows for files that no longer exist. Requires database mode.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), cmd, statusOnly)
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "Show per-file sync records without reconciling")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, statusOnly bool) error {
	a, err := buildApp(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.syncer.Enabled() {
		return fmt.Errorf("database mode is disabled; nothing to sync")
	}

	out := cmd.OutOrStdout()
	styles := ui.StylesFor(out)

	if !statusOnly {
		if err := a.syncer.SyncAll(ctx); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		_, _ = fmt.Fprintln(out, styles.Success.Render("Sync complete"))
	}

	records, err := a.syncer.Status(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, styles.Dim.Render("No files tracked yet"))
		return nil
	}

	var completed, pending, failed int
	for _, rec := range records {
		switch rec.Status {
		case store.SyncCompleted:
			completed++
		case store.SyncFailed:
			failed++
		default:
			pending++
		}
	}
	_, _ = fmt.Fprintf(out, "\n%s %d synced, %d pending, %d failed\n\n",
		styles.Label.Render("Files:"), completed, pending, failed)

	for _, rec := range records {
		line := fmt.Sprintf("  %-40s %s", rec.FilePath, rec.Status)
		if rec.LastSyncedAt != nil {
			line += "  " + styles.Dim.Render(ui.FormatTime(*rec.LastSyncedAt))
		}
		switch rec.Status {
		case store.SyncFailed:
			_, _ = fmt.Fprintln(out, styles.Error.Render(line))
			if rec.ErrorMessage != "" {
				_, _ = fmt.Fprintf(out, "    %s\n", styles.Dim.Render(rec.ErrorMessage))
			}
		default:
			_, _ = fmt.Fprintln(out, line)
		}
	}
	return nil
}
