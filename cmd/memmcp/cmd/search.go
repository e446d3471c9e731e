package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memmcp/memmcp/internal/search"
	"github.com/memmcp/memmcp/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	mode       string
	categories []string
	tags       []string
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory from the command line",
		Long: `Search memory with the same engine the MCP search tool uses.

Examples:
  memmcp search "connection pooling"
  memmcp search "pgvector" --mode fulltext --limit 5
  memmcp search "auth" --category concepts --tag security`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of hits (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: hybrid, vector, fulltext")
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "Filter by category (repeatable)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Require tag (repeatable)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output hits as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := buildApp(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	limit := opts.limit
	if limit == 0 {
		limit = -1 // engine default
	}
	res, err := a.engine.Search(ctx, search.Query{
		Text:       query,
		Mode:       search.Mode(opts.mode),
		Limit:      limit,
		Categories: opts.categories,
		Tags:       opts.tags,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	styles := ui.StylesFor(out)
	if res.Degraded {
		_, _ = fmt.Fprintln(out, styles.Warning.Render("warning: one search backend was unavailable, results are degraded"))
	}
	if len(res.Hits) == 0 {
		_, _ = fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s\n\n", styles.Header.Render(fmt.Sprintf("Found %d results for %q", len(res.Hits), query)))
	for i, hit := range res.Hits {
		location := hit.FilePath
		if len(hit.HeaderPath) > 0 {
			location += styles.Dim.Render(" > " + strings.Join(hit.HeaderPath, " > "))
		}
		_, _ = fmt.Fprintf(out, "%d. %s %s\n", i+1, styles.Accent.Render(location),
			styles.Label.Render(fmt.Sprintf("(score: %.3f)", hit.Score)))
		for _, line := range snippet(hit.Content, 3) {
			_, _ = fmt.Fprintf(out, "   %s\n", line)
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

// snippet returns the first n non-empty-trailing lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
