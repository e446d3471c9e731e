package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/memmcp/memmcp/internal/store"
	"github.com/memmcp/memmcp/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show memory and index health",
		Long: `Display the memory tree location, file counts, database
reachability, index statistics, and the embedding configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	// File-only wiring: an unreachable database is a finding to report,
	// not a reason for the command to fail.
	a, err := buildApp(ctx, buildOptions{skipDatabase: true})
	if err != nil {
		return err
	}
	defer a.Close()

	info := ui.StatusInfo{
		MemoryPath:     a.cfg.MemoryPath(),
		Initialized:    a.manager.Initialized(),
		Mode:           "file-only",
		DatabaseStatus: "disabled",
		WatcherEnabled: a.cfg.Files.WatchEnabled,
	}
	if listing, err := a.manager.List(""); err == nil {
		info.FileCount = listing.Total
	}

	if a.cfg.Database.Enabled {
		info.Mode = "indexed"
		info.EmbeddingProvider = a.cfg.Embedding.Provider
		info.EmbeddingModel = a.cfg.Embedding.Model
		info.EmbeddingDimension = a.cfg.Embedding.Dimension
		probeDatabase(ctx, a, &info)
	}

	out := cmd.OutOrStdout()
	renderer := ui.NewStatusRenderer(out, ui.DetectNoColor() || !ui.IsTTY(out))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// probeDatabase fills the index store fields, downgrading connection
// failures to an "unreachable" status.
func probeDatabase(ctx context.Context, a *app, info *ui.StatusInfo) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := store.New(ctx, a.cfg.DatabaseURL(), a.cfg.Database.PoolMin, a.cfg.Database.PoolMax)
	if err != nil {
		info.DatabaseStatus = "unreachable"
		return
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		info.DatabaseStatus = "unreachable"
		return
	}
	info.DatabaseStatus = "ready"

	if stats, err := db.Stats(ctx); err == nil {
		info.IndexedFiles = stats.Files
		info.IndexedChunks = stats.Chunks
		info.EmbeddedChunks = stats.EmbeddedChunks
		info.PendingFiles = stats.PendingFiles
		info.FailedFiles = stats.FailedFiles
	}
}
